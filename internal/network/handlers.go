package network

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/annel0/blockverse/internal/eventbus"
	"github.com/annel0/blockverse/internal/protocol"
	"github.com/annel0/blockverse/internal/room"
	"github.com/annel0/blockverse/internal/transport"
)

const (
	maxNameLen = 32
	maxChatLen = 256

	// Страница журнала занимает не больше половины кадра
	syncPageBytes   = transport.MaxFrameSize / 2
	maxSyncPageSize = 4000
)

// Тексты ошибок, которые видит игрок
const (
	errTextRoomNotFound = "Комната не найдена"
	errTextRoomFull     = "Комната заполнена"
	errTextNotInRoom    = "Вы не находитесь в комнате"
	errTextRoomClosed   = "Комната закрыта администратором"
)

// route передаёт сообщение обработчику его типа. Возвращает причину
// отказа или пустую строку.
func (d *Dispatcher) route(p *peer, msg protocol.ClientMessage) string {
	switch m := msg.(type) {
	case protocol.GetRooms:
		return d.handleGetRooms(p, m)
	case protocol.CreateRoom:
		return d.handleCreateRoom(p, m)
	case protocol.JoinRoom:
		return d.handleJoinRoom(p, m)
	case protocol.LeaveRoom:
		return d.handleLeaveRoom(p, m)
	case protocol.PlayerUpdate:
		return d.handlePlayerUpdate(p, m)
	case protocol.BlockChange:
		return d.handleBlockChange(p, m)
	case protocol.Chat:
		return d.handleChat(p, m)
	case protocol.RequestWorldSync:
		return d.handleRequestWorldSync(p, m)
	default:
		d.logger.Warn("Нет обработчика для %s", msg.Type())
		return "unhandled"
	}
}

// reject отправляет игроку error и считает отказ
func (d *Dispatcher) reject(p *peer, reason, text string) string {
	d.metrics.Rejected.WithLabelValues(reason).Inc()
	d.send(p, protocol.Error{Message: text})
	return reason
}

func (d *Dispatcher) currentRoom(p *peer) *room.Room {
	if !p.inRoom() {
		return nil
	}
	r, err := d.state.Rooms.Get(p.roomID)
	if err != nil {
		// Комнату удалили, а ссылка осталась
		p.roomID = ""
		return nil
	}
	return r
}

func cleanName(name, fallbackID string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		short := fallbackID
		if len(short) > 4 {
			short = short[:4]
		}
		return "Игрок-" + short
	}
	return truncate(name, maxNameLen)
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

func (d *Dispatcher) handleGetRooms(p *peer, _ protocol.GetRooms) string {
	rooms := d.state.Rooms.List()
	summaries := make([]protocol.RoomSummary, 0, len(rooms))
	for _, r := range rooms {
		summaries = append(summaries, r.Summary())
	}
	d.send(p, protocol.RoomList{Rooms: summaries})
	return ""
}

func (d *Dispatcher) handleCreateRoom(p *peer, m protocol.CreateRoom) string {
	maxPlayers := m.MaxPlayers
	if maxPlayers <= 0 {
		maxPlayers = d.cfg.DefaultMaxPlayers
	}
	if maxPlayers > d.cfg.MaxPlayersLimit {
		maxPlayers = d.cfg.MaxPlayersLimit
	}

	// Создатель уходит из прежней комнаты
	d.leaveRoom(p)
	if m.PlayerName != "" || p.name == "" {
		p.name = cleanName(m.PlayerName, p.id)
	}

	r := d.state.Rooms.Create(truncate(strings.TrimSpace(m.Name), maxNameLen), maxPlayers, d.now())
	r.AddPlayer(protocol.PlayerState{ID: p.id, Name: p.name})
	p.roomID = r.ID

	d.metrics.Rooms.Set(float64(d.state.Rooms.Len()))
	d.metrics.Players.Inc()
	d.logger.Info("🏠 Игрок %s создал комнату %s «%s» (до %d игроков, сид %d)",
		p.id, r.ID, r.Name, r.MaxPlayers, r.Seed)

	d.send(p, protocol.RoomCreated{RoomID: r.ID, Seed: r.Seed, IsHost: true})
	d.publish(eventbus.RoomCreated, 5, roomEvent(r))
	return ""
}

func (d *Dispatcher) handleJoinRoom(p *peer, m protocol.JoinRoom) string {
	r, err := d.state.Rooms.Get(m.RoomID)
	if err != nil {
		d.logger.Debug("Игрок %s: %v", p.id, err)
		return d.reject(p, "room_not_found", errTextRoomNotFound)
	}
	if r.Has(p.id) {
		// Повторный вход: просто пересылаем состояние
		d.sendRoomJoined(p, r)
		return ""
	}
	if r.IsFull() {
		return d.reject(p, "room_full", errTextRoomFull)
	}

	d.leaveRoom(p)
	p.name = cleanName(m.PlayerName, p.id)

	state := protocol.PlayerState{ID: p.id, Name: p.name}
	if !r.AddPlayer(state) {
		return d.reject(p, "room_full", errTextRoomFull)
	}
	p.roomID = r.ID
	d.metrics.Players.Inc()

	d.logger.Info("➡️ Игрок %s (%s) вошёл в комнату %s (%d/%d)", p.id, p.name, r.ID, r.Len(), r.MaxPlayers)

	d.sendRoomJoined(p, r)
	d.broadcast(r, protocol.PlayerJoin{Player: state}, p.id)
	d.publish(eventbus.RoomUpdated, 5, roomEvent(r))
	return ""
}

// sendRoomJoined отправляет room_joined с первой страницей журнала, остальные
// страницы уходят следом как world_sync
func (d *Dispatcher) sendRoomJoined(p *peer, r *room.Room) {
	pages := d.pageChanges(r.Log().Records())
	d.send(p, protocol.RoomJoined{
		RoomID:       r.ID,
		Seed:         r.Seed,
		IsHost:       r.HostID == p.id,
		Players:      r.Members(),
		WorldChanges: pages[0],
	})
	for _, page := range pages[1:] {
		d.send(p, protocol.WorldSync{WorldChanges: page})
	}
}

// pageChanges режет журнал на страницы не длиннее SyncPageSize записей и
// не больше syncPageBytes в JSON. Всегда есть хотя бы одна страница.
func (d *Dispatcher) pageChanges(records []protocol.WorldChangeRecord) [][]protocol.WorldChangeRecord {
	var pages [][]protocol.WorldChangeRecord
	start, size := 0, 0
	for i, rec := range records {
		n := recordBytes(rec)
		if i > start && (i-start >= d.cfg.SyncPageSize || size+n > syncPageBytes) {
			pages = append(pages, records[start:i])
			start, size = i, 0
		}
		size += n
	}
	return append(pages, records[start:])
}

// recordBytes - оценка сверху размера записи в JSON: ключи и числа плюс
// строки с учётом худшего экранирования (\u00XX)
func recordBytes(rec protocol.WorldChangeRecord) int {
	return 192 + 6*(len(rec.Action)+len(rec.PlayerID))
}

func (d *Dispatcher) handleLeaveRoom(p *peer, _ protocol.LeaveRoom) string {
	if !p.inRoom() {
		d.logger.Debug("Игрок %s не в комнате, leave_room пропущен", p.id)
		return ""
	}
	d.leaveRoom(p)
	return ""
}

// leaveRoom выводит игрока из текущей комнаты: остальные получают
// player_leave, пустая комната удаляется (или ждёт очистки при ненулевой
// отсрочке).
func (d *Dispatcher) leaveRoom(p *peer) {
	r := d.currentRoom(p)
	p.roomID = ""
	if r == nil {
		return
	}

	removed, hostChanged := r.RemovePlayer(p.id, d.now())
	if !removed {
		return
	}
	d.metrics.Players.Dec()

	leave := protocol.PlayerLeave{PlayerID: p.id}
	if hostChanged {
		leave.HostID = r.HostID
		d.logger.Info("👑 Хостом комнаты %s стал %s", r.ID, r.HostID)
	}
	d.broadcast(r, leave, "")
	d.logger.Info("⬅️ Игрок %s покинул комнату %s (%d/%d)", p.id, r.ID, r.Len(), r.MaxPlayers)

	if r.IsEmpty() && d.cfg.EmptyRoomGrace <= 0 {
		d.state.Rooms.Delete(r.ID)
		d.metrics.Rooms.Set(float64(d.state.Rooms.Len()))
		d.logger.Info("🗑️ Комната %s опустела и удалена", r.ID)
		d.publish(eventbus.RoomDeleted, 5, roomEvent(r))
		return
	}
	d.publish(eventbus.RoomUpdated, 5, roomEvent(r))
}

func (d *Dispatcher) handlePlayerUpdate(p *peer, m protocol.PlayerUpdate) string {
	r := d.currentRoom(p)
	if r == nil {
		// Без комнаты обновление просто отбрасывается
		return "not_in_room"
	}

	state := m.Player
	state.ID = p.id
	state.Name = p.name
	state.LastUpdate = d.now().UnixMilli()
	r.UpdatePlayer(state)

	d.broadcast(r, protocol.PlayerUpdateBroadcast{Player: state}, p.id)
	return ""
}

// handleBlockChange журналирует правку и пересылает её остальным. Сервер
// не проверяет правку: у него нет мира, только журнал.
func (d *Dispatcher) handleBlockChange(p *peer, m protocol.BlockChange) string {
	r := d.currentRoom(p)
	if r == nil {
		return d.reject(p, "not_in_room", errTextNotInRoom)
	}

	r.Log().Append(m.Record(p.id, d.now().UnixMilli()))
	d.metrics.BlockChanges.Inc()
	d.broadcast(r, m.Broadcast(p.id), p.id)

	d.publish(eventbus.BlockChanged, 1, eventbus.BlockEvent{
		RoomID:    r.ID,
		PlayerID:  p.id,
		X:         m.X,
		Y:         m.Y,
		Z:         m.Z,
		BlockType: m.BlockType,
		Action:    m.Action,
	})
	return ""
}

func (d *Dispatcher) handleChat(p *peer, m protocol.Chat) string {
	r := d.currentRoom(p)
	if r == nil {
		return d.reject(p, "not_in_room", errTextNotInRoom)
	}

	text := strings.TrimSpace(m.Message)
	if text == "" {
		return "empty_chat"
	}

	d.broadcast(r, protocol.ChatBroadcast{
		PlayerID:   p.id,
		PlayerName: p.name,
		Message:    truncate(text, maxChatLen),
	}, "")
	return ""
}

func (d *Dispatcher) handleRequestWorldSync(p *peer, _ protocol.RequestWorldSync) string {
	r := d.currentRoom(p)
	if r == nil {
		return d.reject(p, "not_in_room", errTextNotInRoom)
	}
	for _, page := range d.pageChanges(r.Log().Records()) {
		d.send(p, protocol.WorldSync{WorldChanges: page})
	}
	return ""
}

// closeRoom выгоняет всех из комнаты и удаляет её
func (d *Dispatcher) closeRoom(id string) error {
	r, err := d.state.Rooms.Get(id)
	if err != nil {
		return err
	}

	for _, pid := range r.MemberIDs() {
		p, ok := d.state.players[pid]
		if !ok {
			continue
		}
		d.send(p, protocol.Error{Message: errTextRoomClosed})
		p.roomID = ""
		d.metrics.Players.Dec()
	}

	if !d.state.Rooms.Delete(id) {
		return fmt.Errorf("%w: %s", room.ErrRoomNotFound, id)
	}
	d.metrics.Rooms.Set(float64(d.state.Rooms.Len()))
	d.publish(eventbus.RoomDeleted, 5, roomEvent(r))
	return nil
}
