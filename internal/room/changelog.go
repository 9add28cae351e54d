package room

import "github.com/annel0/blockverse/internal/protocol"

// DefaultChangeLogCap - ёмкость журнала изменений по умолчанию
const DefaultChangeLogCap = 10000

// ChangeLog - ограниченный журнал правок мира комнаты. При переполнении
// остаются ровно cap/2 последних записей.
type ChangeLog struct {
	cap     int
	records []protocol.WorldChangeRecord
	total   uint64 // сколько записей добавлено за всё время
}

// NewChangeLog создаёт журнал; ёмкость меньше 2 поднимается до 2
func NewChangeLog(capacity int) *ChangeLog {
	if capacity < 2 {
		capacity = 2
	}
	return &ChangeLog{cap: capacity}
}

// Append добавляет запись
func (l *ChangeLog) Append(rec protocol.WorldChangeRecord) {
	l.records = append(l.records, rec)
	l.total++

	if len(l.records) > l.cap {
		keep := l.cap / 2
		trimmed := make([]protocol.WorldChangeRecord, keep, l.cap)
		copy(trimmed, l.records[len(l.records)-keep:])
		l.records = trimmed
	}
}

// Records возвращает копию записей от старых к новым
func (l *ChangeLog) Records() []protocol.WorldChangeRecord {
	out := make([]protocol.WorldChangeRecord, len(l.records))
	copy(out, l.records)
	return out
}

func (l *ChangeLog) Len() int      { return len(l.records) }
func (l *ChangeLog) Cap() int      { return l.cap }
func (l *ChangeLog) Total() uint64 { return l.total }
