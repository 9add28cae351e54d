package network

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/annel0/blockverse/internal/eventbus"
	"github.com/annel0/blockverse/internal/protocol"
	"github.com/annel0/blockverse/internal/room"
	"github.com/annel0/blockverse/internal/transport"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeConn - транспорт в памяти: тест пишет в in и читает из out
type fakeConn struct {
	in     chan []byte
	out    chan []byte
	closed chan struct{}
	once   sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		in:     make(chan []byte, 64),
		out:    make(chan []byte, 64),
		closed: make(chan struct{}),
	}
}

func (c *fakeConn) ReadMessage() ([]byte, error) {
	select {
	case data := <-c.in:
		return data, nil
	case <-c.closed:
		return nil, transport.ErrClosed
	}
}

func (c *fakeConn) WriteMessage(data []byte) error {
	select {
	case <-c.closed:
		return transport.ErrClosed
	case c.out <- data:
		return nil
	}
}

func (c *fakeConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) RemoteAddr() string { return "fake" }

// testClient - сторона игрока поверх fakeConn
type testClient struct {
	t    *testing.T
	conn *fakeConn
	id   string
}

func (tc *testClient) send(m protocol.ClientMessage) {
	tc.t.Helper()
	data, err := protocol.EncodeClient(m)
	require.NoError(tc.t, err)
	tc.conn.in <- data
}

func (tc *testClient) next() protocol.ServerMessage {
	tc.t.Helper()
	select {
	case data := <-tc.conn.out:
		msg, err := protocol.DecodeServer(data)
		require.NoError(tc.t, err)
		return msg
	case <-time.After(2 * time.Second):
		tc.t.Fatalf("игрок %s не получил сообщение", tc.id)
		return nil
	}
}

func (tc *testClient) silent() {
	tc.t.Helper()
	select {
	case data := <-tc.conn.out:
		tc.t.Fatalf("игрок %s получил лишнее сообщение: %s", tc.id, data)
	case <-time.After(50 * time.Millisecond):
	}
}

func expect[T protocol.ServerMessage](t *testing.T, tc *testClient) T {
	t.Helper()
	msg := tc.next()
	out, ok := msg.(T)
	require.Truef(t, ok, "ожидался %T, получено %T", out, msg)
	return out
}

type fixture struct {
	t      *testing.T
	d      *Dispatcher
	ctx    context.Context
	cancel context.CancelFunc

	clockMu sync.Mutex
	clock   time.Time
}

func newFixture(t *testing.T, cfg DispatcherConfig, bus eventbus.EventBus) *fixture {
	t.Helper()
	f := &fixture{t: t, clock: time.Unix(1_700_000_000, 0)}
	if cfg.SweepInterval == 0 {
		cfg.SweepInterval = time.Hour // в тестах очистку вызываем вручную
	}

	f.d = NewDispatcher(cfg, bus, prometheus.NewRegistry())
	f.d.now = f.now
	f.ctx, f.cancel = context.WithCancel(context.Background())
	go f.d.Run(f.ctx)

	t.Cleanup(func() {
		f.cancel()
		<-f.d.Done()
	})
	return f
}

func (f *fixture) now() time.Time {
	f.clockMu.Lock()
	defer f.clockMu.Unlock()
	return f.clock
}

func (f *fixture) advance(d time.Duration) {
	f.clockMu.Lock()
	f.clock = f.clock.Add(d)
	f.clockMu.Unlock()
}

func (f *fixture) connect() *testClient {
	f.t.Helper()
	conn := newFakeConn()
	go f.d.ServeConn(f.ctx, conn)

	tc := &testClient{t: f.t, conn: conn}
	tc.id = expect[protocol.Welcome](f.t, tc).PlayerID
	require.NotEmpty(f.t, tc.id)
	return tc
}

func (f *fixture) createRoom(host *testClient, name string, maxPlayers int) protocol.RoomCreated {
	f.t.Helper()
	host.send(protocol.CreateRoom{Name: name, MaxPlayers: maxPlayers, PlayerName: "host"})
	return expect[protocol.RoomCreated](f.t, host)
}

func (f *fixture) state(fn func(*State)) {
	f.t.Helper()
	require.NoError(f.t, f.d.Do(context.Background(), fn))
}

func TestWelcomeAssignsUniqueIDs(t *testing.T) {
	f := newFixture(t, DispatcherConfig{}, nil)

	a := f.connect()
	b := f.connect()
	assert.NotEqual(t, a.id, b.id)

	f.state(func(s *State) { assert.Equal(t, 2, s.Online()) })
}

func TestCreateRoomAndList(t *testing.T) {
	f := newFixture(t, DispatcherConfig{DefaultMaxPlayers: 8, MaxPlayersLimit: 16}, nil)
	a := f.connect()

	created := f.createRoom(a, "Остров", 0)
	assert.True(t, created.IsHost)
	assert.Len(t, created.RoomID, 8)

	a.send(protocol.GetRooms{})
	list := expect[protocol.RoomList](t, a)
	require.Len(t, list.Rooms, 1)
	assert.Equal(t, created.RoomID, list.Rooms[0].ID)
	assert.Equal(t, "Остров", list.Rooms[0].Name)
	assert.Equal(t, 1, list.Rooms[0].Players)
	assert.Equal(t, 8, list.Rooms[0].MaxPlayers)
	assert.Equal(t, a.id, list.Rooms[0].HostID)
}

func TestCreateRoomClampsMaxPlayers(t *testing.T) {
	f := newFixture(t, DispatcherConfig{DefaultMaxPlayers: 4, MaxPlayersLimit: 10}, nil)
	a := f.connect()
	created := f.createRoom(a, "", 500)

	f.state(func(s *State) {
		r, err := s.Rooms.Get(created.RoomID)
		require.NoError(t, err)
		assert.Equal(t, 10, r.MaxPlayers)
		assert.NotEmpty(t, r.Name)
	})
}

func TestJoinRoomSendsStateAndAnnounces(t *testing.T) {
	f := newFixture(t, DispatcherConfig{}, nil)
	a := f.connect()
	b := f.connect()
	created := f.createRoom(a, "Остров", 4)

	b.send(protocol.JoinRoom{RoomID: created.RoomID, PlayerName: "Боря"})
	joined := expect[protocol.RoomJoined](t, b)
	assert.Equal(t, created.RoomID, joined.RoomID)
	assert.Equal(t, created.Seed, joined.Seed)
	assert.False(t, joined.IsHost)
	require.Len(t, joined.Players, 2)
	assert.Equal(t, a.id, joined.Players[0].ID)
	assert.Equal(t, b.id, joined.Players[1].ID)
	assert.Empty(t, joined.WorldChanges)

	announce := expect[protocol.PlayerJoin](t, a)
	assert.Equal(t, b.id, announce.Player.ID)
	assert.Equal(t, "Боря", announce.Player.Name)
	b.silent()
}

func TestJoinMissingRoomReturnsError(t *testing.T) {
	f := newFixture(t, DispatcherConfig{}, nil)
	a := f.connect()

	a.send(protocol.JoinRoom{RoomID: "nope", PlayerName: "x"})
	errMsg := expect[protocol.Error](t, a)
	assert.Equal(t, errTextRoomNotFound, errMsg.Message)
}

func TestJoinFullRoomLeavesStateUntouched(t *testing.T) {
	f := newFixture(t, DispatcherConfig{}, nil)
	a := f.connect()
	b := f.connect()
	c := f.connect()
	created := f.createRoom(a, "Тесно", 2)

	b.send(protocol.JoinRoom{RoomID: created.RoomID, PlayerName: "b"})
	expect[protocol.RoomJoined](t, b)
	expect[protocol.PlayerJoin](t, a)

	c.send(protocol.JoinRoom{RoomID: created.RoomID, PlayerName: "c"})
	errMsg := expect[protocol.Error](t, c)
	assert.Equal(t, errTextRoomFull, errMsg.Message)
	a.silent()

	f.state(func(s *State) {
		r, err := s.Rooms.Get(created.RoomID)
		require.NoError(t, err)
		assert.Equal(t, 2, r.Len())
		assert.False(t, r.Has(c.id))
	})
}

func TestBlockChangeRelayedToOthersOnly(t *testing.T) {
	bus := eventbus.NewMemoryBus(64)
	defer bus.Close()

	var (
		mu     sync.Mutex
		events []eventbus.BlockEvent
	)
	_, err := bus.Subscribe(context.Background(), eventbus.Filter{Types: []string{eventbus.BlockChanged}},
		func(_ context.Context, ev *eventbus.Envelope) {
			var be eventbus.BlockEvent
			if ev.Decode(&be) == nil {
				mu.Lock()
				events = append(events, be)
				mu.Unlock()
			}
		})
	require.NoError(t, err)

	f := newFixture(t, DispatcherConfig{}, bus)
	a := f.connect()
	b := f.connect()
	created := f.createRoom(a, "r", 4)
	b.send(protocol.JoinRoom{RoomID: created.RoomID, PlayerName: "b"})
	expect[protocol.RoomJoined](t, b)
	expect[protocol.PlayerJoin](t, a)

	a.send(protocol.BlockChange{X: 5, Y: 30, Z: -2, BlockType: 4, Action: protocol.ActionPlace})

	got := expect[protocol.BlockChangeBroadcast](t, b)
	assert.Equal(t, protocol.BlockChangeBroadcast{
		X: 5, Y: 30, Z: -2, BlockType: 4, Action: protocol.ActionPlace, PlayerID: a.id,
	}, got)
	a.silent()

	// Журнал комнаты получил запись
	b.send(protocol.RequestWorldSync{})
	ws := expect[protocol.WorldSync](t, b)
	require.Len(t, ws.WorldChanges, 1)
	assert.Equal(t, a.id, ws.WorldChanges[0].PlayerID)
	assert.Equal(t, f.now().UnixMilli(), ws.WorldChanges[0].Timestamp)

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(events) == 1 && events[0].RoomID == created.RoomID && events[0].PlayerID == a.id
	}, time.Second, 10*time.Millisecond)
}

func TestLateJoinerReceivesChangeLog(t *testing.T) {
	f := newFixture(t, DispatcherConfig{}, nil)
	a := f.connect()
	b := f.connect()
	created := f.createRoom(a, "r", 4)

	a.send(protocol.BlockChange{X: 1, Y: 2, Z: 3, BlockType: 0, Action: protocol.ActionBreak})
	a.send(protocol.BlockChange{X: 1, Y: 3, Z: 3, BlockType: 7, Action: protocol.ActionPlace})
	a.send(protocol.GetRooms{})
	expect[protocol.RoomList](t, a)

	b.send(protocol.JoinRoom{RoomID: created.RoomID, PlayerName: "b"})
	joined := expect[protocol.RoomJoined](t, b)
	require.Len(t, joined.WorldChanges, 2)
	assert.Equal(t, protocol.ActionBreak, joined.WorldChanges[0].Action)
	assert.Equal(t, 7, joined.WorldChanges[1].BlockType)
}

func TestChangeLogIsPagedAcrossFrames(t *testing.T) {
	f := newFixture(t, DispatcherConfig{SyncPageSize: 3}, nil)
	a := f.connect()
	b := f.connect()
	created := f.createRoom(a, "r", 4)

	for i := 0; i < 7; i++ {
		a.send(protocol.BlockChange{X: i, Y: 20, Z: 0, BlockType: 1, Action: protocol.ActionPlace})
	}
	a.send(protocol.GetRooms{})
	expect[protocol.RoomList](t, a)

	b.send(protocol.JoinRoom{RoomID: created.RoomID, PlayerName: "b"})
	joined := expect[protocol.RoomJoined](t, b)
	assert.Len(t, joined.WorldChanges, 3)
	rest := expect[protocol.WorldSync](t, b).WorldChanges
	assert.Len(t, rest, 3)
	last := expect[protocol.WorldSync](t, b).WorldChanges
	require.Len(t, last, 1)
	assert.Equal(t, 6, last[0].X, "порядок журнала сохраняется")
	expect[protocol.PlayerJoin](t, a)

	// request_world_sync режется так же
	b.send(protocol.RequestWorldSync{})
	total := 0
	for _, want := range []int{3, 3, 1} {
		page := expect[protocol.WorldSync](t, b).WorldChanges
		assert.Len(t, page, want)
		total += len(page)
	}
	assert.Equal(t, 7, total)
	b.silent()
}

func TestEmptyChangeLogStillAnswersWorldSync(t *testing.T) {
	f := newFixture(t, DispatcherConfig{}, nil)
	a := f.connect()
	f.createRoom(a, "r", 4)

	a.send(protocol.RequestWorldSync{})
	ws := expect[protocol.WorldSync](t, a)
	assert.Empty(t, ws.WorldChanges)
	a.silent()
}

func TestPageChangesRespectsByteBudget(t *testing.T) {
	d := NewDispatcher(DispatcherConfig{SyncPageSize: maxSyncPageSize * 10}, nil, nil)
	assert.Equal(t, maxSyncPageSize, d.cfg.SyncPageSize)

	// Длинные строки упираются в байтовый лимит раньше, чем в число записей
	long := strings.Repeat("я", 2000)
	records := make([]protocol.WorldChangeRecord, 200)
	for i := range records {
		records[i] = protocol.WorldChangeRecord{X: i, Action: long, PlayerID: "p"}
	}

	pages := d.pageChanges(records)
	require.Greater(t, len(pages), 1)
	n := 0
	for _, page := range pages {
		data, err := protocol.EncodeServer(protocol.WorldSync{WorldChanges: page})
		require.NoError(t, err)
		assert.LessOrEqual(t, len(data), transport.MaxFrameSize)
		n += len(page)
	}
	assert.Equal(t, len(records), n)
}

func TestBlockChangeOutsideRoomIsRejected(t *testing.T) {
	f := newFixture(t, DispatcherConfig{}, nil)
	a := f.connect()

	a.send(protocol.BlockChange{X: 1, Y: 1, Z: 1, BlockType: 1, Action: protocol.ActionPlace})
	errMsg := expect[protocol.Error](t, a)
	assert.Equal(t, errTextNotInRoom, errMsg.Message)
}

func TestPlayerUpdateMirroredAndRelayed(t *testing.T) {
	f := newFixture(t, DispatcherConfig{}, nil)
	a := f.connect()
	b := f.connect()
	created := f.createRoom(a, "r", 4)
	b.send(protocol.JoinRoom{RoomID: created.RoomID, PlayerName: "b"})
	expect[protocol.RoomJoined](t, b)
	expect[protocol.PlayerJoin](t, a)

	state := protocol.PlayerState{ID: "spoofed", Name: "ignored", Flying: true}
	state.Position.X = 10.5
	a.send(protocol.PlayerUpdate{Player: state})

	got := expect[protocol.PlayerUpdateBroadcast](t, b)
	assert.Equal(t, a.id, got.Player.ID)
	assert.Equal(t, "host", got.Player.Name)
	assert.True(t, got.Player.Flying)
	assert.InDelta(t, 10.5, got.Player.Position.X, 1e-9)
	assert.Equal(t, f.now().UnixMilli(), got.Player.LastUpdate)
	a.silent()

	f.state(func(s *State) {
		r, _ := s.Rooms.Get(created.RoomID)
		p, ok := r.Player(a.id)
		require.True(t, ok)
		assert.True(t, p.Flying)
	})
}

func TestChatReachesWholeRoom(t *testing.T) {
	f := newFixture(t, DispatcherConfig{}, nil)
	a := f.connect()
	b := f.connect()
	created := f.createRoom(a, "r", 4)
	b.send(protocol.JoinRoom{RoomID: created.RoomID, PlayerName: "b"})
	expect[protocol.RoomJoined](t, b)
	expect[protocol.PlayerJoin](t, a)

	b.send(protocol.Chat{Message: "  привет  "})
	for _, tc := range []*testClient{a, b} {
		msg := expect[protocol.ChatBroadcast](t, tc)
		assert.Equal(t, b.id, msg.PlayerID)
		assert.Equal(t, "b", msg.PlayerName)
		assert.Equal(t, "привет", msg.Message)
	}

	b.send(protocol.Chat{Message: "   "})
	a.silent()
}

func TestHostLeaveReassignsHost(t *testing.T) {
	f := newFixture(t, DispatcherConfig{}, nil)
	a := f.connect()
	b := f.connect()
	c := f.connect()
	created := f.createRoom(a, "r", 4)
	for _, tc := range []*testClient{b, c} {
		tc.send(protocol.JoinRoom{RoomID: created.RoomID, PlayerName: "p"})
		expect[protocol.RoomJoined](t, tc)
	}
	expect[protocol.PlayerJoin](t, a)
	expect[protocol.PlayerJoin](t, a)
	expect[protocol.PlayerJoin](t, b)

	a.send(protocol.LeaveRoom{})
	for _, tc := range []*testClient{b, c} {
		leave := expect[protocol.PlayerLeave](t, tc)
		assert.Equal(t, a.id, leave.PlayerID)
		assert.Equal(t, b.id, leave.HostID)
	}

	// Уход не-хоста не меняет хоста
	c.send(protocol.LeaveRoom{})
	leave := expect[protocol.PlayerLeave](t, b)
	assert.Equal(t, c.id, leave.PlayerID)
	assert.Empty(t, leave.HostID)
}

func TestDisconnectDeletesEmptyRoom(t *testing.T) {
	f := newFixture(t, DispatcherConfig{}, nil)
	a := f.connect()
	f.createRoom(a, "r", 4)

	a.conn.Close()

	assert.Eventually(t, func() bool {
		var rooms, online int
		_ = f.d.Do(context.Background(), func(s *State) {
			rooms = s.Rooms.Len()
			online = s.Online()
		})
		return rooms == 0 && online == 0
	}, time.Second, 10*time.Millisecond)
}

func TestEmptyRoomGraceAndSweep(t *testing.T) {
	f := newFixture(t, DispatcherConfig{EmptyRoomGrace: time.Minute}, nil)
	a := f.connect()
	created := f.createRoom(a, "r", 4)

	a.send(protocol.LeaveRoom{})
	a.send(protocol.GetRooms{})
	list := expect[protocol.RoomList](t, a)
	require.Len(t, list.Rooms, 1)
	assert.Equal(t, 0, list.Rooms[0].Players)

	f.advance(30 * time.Second)
	f.state(func(*State) { f.d.sweep() })
	f.state(func(s *State) { assert.Equal(t, 1, s.Rooms.Len()) })

	f.advance(31 * time.Second)
	f.state(func(*State) { f.d.sweep() })
	f.state(func(s *State) {
		_, err := s.Rooms.Get(created.RoomID)
		assert.True(t, errors.Is(err, room.ErrRoomNotFound))
	})
}

func TestMalformedMessageKeepsConnection(t *testing.T) {
	f := newFixture(t, DispatcherConfig{}, nil)
	a := f.connect()

	a.conn.in <- []byte(`{"type":"teleport"}`)
	a.conn.in <- []byte(`not json`)
	a.send(protocol.GetRooms{})

	list := expect[protocol.RoomList](t, a)
	assert.Empty(t, list.Rooms)
}

func TestSwitchingRoomsLeavesPrevious(t *testing.T) {
	f := newFixture(t, DispatcherConfig{}, nil)
	a := f.connect()
	b := f.connect()
	first := f.createRoom(a, "first", 4)
	b.send(protocol.JoinRoom{RoomID: first.RoomID, PlayerName: "b"})
	expect[protocol.RoomJoined](t, b)
	expect[protocol.PlayerJoin](t, a)

	second := f.createRoom(b, "second", 4)
	// b уходит из first: a видит player_leave (b не был хостом)
	leave := expect[protocol.PlayerLeave](t, a)
	assert.Equal(t, b.id, leave.PlayerID)
	assert.NotEqual(t, first.RoomID, second.RoomID)
}

func TestCloseRoomNotifiesMembers(t *testing.T) {
	f := newFixture(t, DispatcherConfig{}, nil)
	a := f.connect()
	b := f.connect()
	created := f.createRoom(a, "r", 4)
	b.send(protocol.JoinRoom{RoomID: created.RoomID, PlayerName: "b"})
	expect[protocol.RoomJoined](t, b)
	expect[protocol.PlayerJoin](t, a)

	require.NoError(t, f.d.CloseRoom(context.Background(), created.RoomID))
	for _, tc := range []*testClient{a, b} {
		errMsg := expect[protocol.Error](t, tc)
		assert.Equal(t, errTextRoomClosed, errMsg.Message)
	}

	err := f.d.CloseRoom(context.Background(), created.RoomID)
	assert.True(t, errors.Is(err, room.ErrRoomNotFound))

	// Игроки остались подключены и вне комнаты
	a.send(protocol.Chat{Message: "эй"})
	assert.Equal(t, errTextNotInRoom, expect[protocol.Error](t, a).Message)
}

func TestLobbyQueries(t *testing.T) {
	f := newFixture(t, DispatcherConfig{}, nil)
	a := f.connect()
	created := f.createRoom(a, "Остров", 4)
	a.send(protocol.BlockChange{X: 1, Y: 1, Z: 1, BlockType: 1, Action: protocol.ActionPlace})
	a.send(protocol.GetRooms{})
	expect[protocol.RoomList](t, a)

	ctx := context.Background()
	rooms, err := f.d.ListRooms(ctx)
	require.NoError(t, err)
	require.Len(t, rooms, 1)

	info, err := f.d.RoomInfo(ctx, created.RoomID)
	require.NoError(t, err)
	assert.Equal(t, created.Seed, info.Seed)
	assert.Equal(t, 1, info.Changes)
	assert.Equal(t, uint64(1), info.TotalChanges)
	require.Len(t, info.Members, 1)

	_, err = f.d.RoomInfo(ctx, "missing")
	assert.True(t, errors.Is(err, room.ErrRoomNotFound))

	online, err := f.d.Online(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, online.Players)
	assert.Equal(t, 1, online.Rooms)
}

func TestDoAfterStopFails(t *testing.T) {
	d := NewDispatcher(DispatcherConfig{}, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	go d.Run(ctx)
	cancel()
	<-d.Done()

	err := d.Do(context.Background(), func(*State) { t.Error("fn не должен выполняться") })
	assert.ErrorIs(t, err, ErrDispatcherStopped)
}

func TestRoomEventsPublished(t *testing.T) {
	bus := eventbus.NewMemoryBus(64)
	defer bus.Close()

	var (
		mu    sync.Mutex
		types []string
	)
	_, err := bus.Subscribe(context.Background(), eventbus.Filter{
		Types: []string{eventbus.RoomCreated, eventbus.RoomUpdated, eventbus.RoomDeleted},
	}, func(_ context.Context, ev *eventbus.Envelope) {
		mu.Lock()
		types = append(types, ev.EventType)
		mu.Unlock()
	})
	require.NoError(t, err)

	f := newFixture(t, DispatcherConfig{}, bus)
	a := f.connect()
	b := f.connect()
	created := f.createRoom(a, "r", 4)
	b.send(protocol.JoinRoom{RoomID: created.RoomID, PlayerName: "b"})
	expect[protocol.RoomJoined](t, b)
	expect[protocol.PlayerJoin](t, a)
	b.send(protocol.LeaveRoom{})
	expect[protocol.PlayerLeave](t, a)
	a.send(protocol.LeaveRoom{})
	a.send(protocol.GetRooms{})
	expect[protocol.RoomList](t, a)

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return assert.ObjectsAreEqual([]string{
			eventbus.RoomCreated, eventbus.RoomUpdated, eventbus.RoomUpdated, eventbus.RoomDeleted,
		}, types)
	}, time.Second, 10*time.Millisecond)
}

func TestDoWaitsForAcceptedFunction(t *testing.T) {
	f := newFixture(t, DispatcherConfig{}, nil)

	started := make(chan struct{})
	release := make(chan struct{})
	go func() {
		_ = f.d.Do(context.Background(), func(*State) {
			close(started)
			<-release
		})
	}()
	<-started

	// Диспетчер занят: второй вызов встаёт в очередь, а его ctx истекает
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	time.AfterFunc(100*time.Millisecond, func() { close(release) })

	rooms := -1
	err := f.d.Do(ctx, func(s *State) { rooms = s.Rooms.Len() })
	require.NoError(t, err)
	assert.Equal(t, 0, rooms)
	assert.Error(t, ctx.Err())
}

func TestSlowConsumerIsDisconnected(t *testing.T) {
	f := newFixture(t, DispatcherConfig{OutboxSize: 4}, nil)
	a := f.connect()
	b := f.connect()
	created := f.createRoom(a, "r", 4)
	b.send(protocol.JoinRoom{RoomID: created.RoomID, PlayerName: "b"})
	expect[protocol.PlayerJoin](t, a)

	// b не читает: буфер соединения и очередь отправки переполняются
	for i := 0; i < 100; i++ {
		a.send(protocol.BlockChange{X: i, Y: 20, Z: 0, BlockType: 1, Action: protocol.ActionPlace})
	}

	leave := expect[protocol.PlayerLeave](t, a)
	assert.Equal(t, b.id, leave.PlayerID)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.d.metrics.DroppedPeers))

	// Комната и её журнал целы
	a.send(protocol.RequestWorldSync{})
	total := 0
	for total < 100 {
		total += len(expect[protocol.WorldSync](t, a).WorldChanges)
	}
	assert.Equal(t, 100, total)
}
