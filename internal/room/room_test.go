package room

import (
	"testing"
	"time"

	"github.com/annel0/blockverse/internal/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func player(id string) protocol.PlayerState {
	return protocol.PlayerState{ID: id, Name: "игрок-" + id}
}

func TestAddPlayerRespectsCapacity(t *testing.T) {
	now := time.Now()
	r := NewRoom("r1", "test", 2, 42, 100, now)

	assert.True(t, r.AddPlayer(player("A")))
	assert.True(t, r.AddPlayer(player("B")))
	assert.False(t, r.AddPlayer(player("C")), "Комната заполнена")
	assert.False(t, r.Has("C"))
	assert.Equal(t, 2, r.Len())

	assert.False(t, r.AddPlayer(player("A")), "Повторный вход")
	assert.Equal(t, "A", r.HostID)
	assert.True(t, r.EmptySince.IsZero())
}

func TestHostReassignment(t *testing.T) {
	now := time.Now()
	r := NewRoom("r1", "test", 4, 1, 100, now)
	r.AddPlayer(player("A"))
	r.AddPlayer(player("B"))
	r.AddPlayer(player("C"))

	removed, hostChanged := r.RemovePlayer("B", now)
	assert.True(t, removed)
	assert.False(t, hostChanged)
	assert.Equal(t, "A", r.HostID)

	removed, hostChanged = r.RemovePlayer("A", now)
	assert.True(t, removed)
	assert.True(t, hostChanged)
	assert.Equal(t, "C", r.HostID, "Хостом становится самый ранний из оставшихся")

	removed, _ = r.RemovePlayer("nobody", now)
	assert.False(t, removed)

	later := now.Add(time.Minute)
	removed, hostChanged = r.RemovePlayer("C", later)
	assert.True(t, removed)
	assert.False(t, hostChanged)
	assert.Empty(t, r.HostID)
	assert.True(t, r.IsEmpty())
	assert.Equal(t, later, r.EmptySince)
}

func TestMembersInJoinOrder(t *testing.T) {
	r := NewRoom("r1", "test", 8, 1, 100, time.Now())
	for _, id := range []string{"C", "A", "B"} {
		r.AddPlayer(player(id))
	}
	assert.Equal(t, []string{"C", "A", "B"}, r.MemberIDs())

	members := r.Members()
	require.Len(t, members, 3)
	assert.Equal(t, "игрок-A", members[1].Name)
}

func TestUpdatePlayerKeepsName(t *testing.T) {
	r := NewRoom("r1", "test", 8, 1, 100, time.Now())
	r.AddPlayer(player("A"))

	upd := protocol.PlayerState{ID: "A", Flying: true}
	upd.Position.Y = 33
	assert.True(t, r.UpdatePlayer(upd))

	got, ok := r.Player("A")
	require.True(t, ok)
	assert.Equal(t, "игрок-A", got.Name)
	assert.Equal(t, 33.0, got.Position.Y)
	assert.True(t, got.Flying)

	assert.False(t, r.UpdatePlayer(protocol.PlayerState{ID: "Z"}))
}

func TestSummary(t *testing.T) {
	r := NewRoom("r1", "Замок", 4, 1, 100, time.Now())
	r.AddPlayer(player("A"))
	assert.Equal(t, protocol.RoomSummary{ID: "r1", Name: "Замок", Players: 1, MaxPlayers: 4, HostID: "A"}, r.Summary())
}

func TestChangeLogOverflowKeepsRecentHalf(t *testing.T) {
	log := NewChangeLog(10)
	for i := 1; i <= 11; i++ {
		log.Append(protocol.WorldChangeRecord{X: i})
	}

	recs := log.Records()
	require.Len(t, recs, 5)
	for i, rec := range recs {
		assert.Equal(t, 7+i, rec.X)
	}
	assert.Equal(t, uint64(11), log.Total())
}

func TestChangeLogNeverExceedsCap(t *testing.T) {
	log := NewChangeLog(7)
	for i := 0; i < 1000; i++ {
		log.Append(protocol.WorldChangeRecord{X: i})
		require.LessOrEqual(t, log.Len(), log.Cap())
	}
	recs := log.Records()
	assert.Equal(t, 999, recs[len(recs)-1].X, "Порядок записей сохраняется")
	for i := 1; i < len(recs); i++ {
		assert.Equal(t, recs[i-1].X+1, recs[i].X)
	}

	assert.Equal(t, 2, NewChangeLog(0).Cap())
}

func TestChangeLogRecordsIsCopy(t *testing.T) {
	log := NewChangeLog(4)
	log.Append(protocol.WorldChangeRecord{X: 1})
	recs := log.Records()
	recs[0].X = 100
	assert.Equal(t, 1, log.Records()[0].X)
}
