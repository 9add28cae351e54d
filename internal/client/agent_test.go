package client

import (
	"context"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/annel0/blockverse/internal/network"
	"github.com/annel0/blockverse/internal/protocol"
	"github.com/annel0/blockverse/internal/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recorder запоминает всё, что пришло в Handler
type recorder struct {
	NopHandler
	got         []protocol.ServerMessage
	disconnects []error
}

func (r *recorder) OnWelcome(m protocol.Welcome)                  { r.got = append(r.got, m) }
func (r *recorder) OnRoomList(m protocol.RoomList)                { r.got = append(r.got, m) }
func (r *recorder) OnRoomCreated(m protocol.RoomCreated)          { r.got = append(r.got, m) }
func (r *recorder) OnRoomJoined(m protocol.RoomJoined)            { r.got = append(r.got, m) }
func (r *recorder) OnPlayerJoin(m protocol.PlayerJoin)            { r.got = append(r.got, m) }
func (r *recorder) OnBlockChange(m protocol.BlockChangeBroadcast) { r.got = append(r.got, m) }
func (r *recorder) OnChat(m protocol.ChatBroadcast)               { r.got = append(r.got, m) }
func (r *recorder) OnError(m protocol.Error)                      { r.got = append(r.got, m) }
func (r *recorder) OnDisconnect(err error)                        { r.disconnects = append(r.disconnects, err) }

// pumpUntil крутит Pump, пока cond не станет истинным
func pumpUntil(t *testing.T, a *Agent, h Handler, cond func() bool) {
	t.Helper()
	require.Eventually(t, func() bool {
		a.Pump(h)
		return cond()
	}, 3*time.Second, 5*time.Millisecond)
}

// pipeAgent подключает агент к концу net.Pipe; второй конец играет сервер
func pipeAgent(t *testing.T) (*Agent, transport.Conn) {
	t.Helper()
	local, remote := net.Pipe()
	a := NewAgent(Options{})
	a.dial = func(ctx context.Context, url string) (transport.Conn, error) {
		return transport.NewFramedConn(local), nil
	}
	require.NoError(t, a.Connect(context.Background(), "pipe://test"))
	server := transport.NewFramedConn(remote)
	t.Cleanup(func() {
		a.Close()
		server.Close()
	})
	return a, server
}

func serverSend(t *testing.T, c transport.Conn, m protocol.ServerMessage) {
	t.Helper()
	data, err := protocol.EncodeServer(m)
	require.NoError(t, err)
	require.NoError(t, c.WriteMessage(data))
}

func serverRead(t *testing.T, c transport.Conn) protocol.ClientMessage {
	t.Helper()
	data, err := c.ReadMessage()
	require.NoError(t, err)
	msg, err := protocol.DecodeClient(data)
	require.NoError(t, err)
	return msg
}

func TestSendBeforeConnect(t *testing.T) {
	a := NewAgent(Options{})
	assert.Equal(t, Disconnected, a.State())
	assert.ErrorIs(t, a.SendChat("привет"), ErrNotConnected)
	assert.ErrorIs(t, a.GetRoomList(), ErrNotConnected)

	sent, err := a.SendPlayerUpdate(protocol.PlayerState{})
	assert.False(t, sent)
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestConnectTimeout(t *testing.T) {
	a := NewAgent(Options{ConnectTimeout: 50 * time.Millisecond})
	a.dial = func(ctx context.Context, url string) (transport.Conn, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}

	start := time.Now()
	err := a.Connect(context.Background(), "ws://unreachable/ws")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Equal(t, Disconnected, a.State())
}

func TestConnectTwice(t *testing.T) {
	a, _ := pipeAgent(t)
	assert.Equal(t, Connected, a.State())
	assert.ErrorIs(t, a.Connect(context.Background(), "pipe://again"), ErrAlreadyConnected)
}

func TestPumpDeliversInOrder(t *testing.T) {
	a, server := pipeAgent(t)
	rec := &recorder{}

	go func() {
		serverSend(t, server, protocol.Welcome{PlayerID: "p-1"})
		serverSend(t, server, protocol.RoomList{})
		serverSend(t, server, protocol.ChatBroadcast{PlayerID: "p-2", Message: "эй"})
	}()

	pumpUntil(t, a, rec, func() bool { return len(rec.got) == 3 })
	assert.IsType(t, protocol.Welcome{}, rec.got[0])
	assert.IsType(t, protocol.RoomList{}, rec.got[1])
	assert.Equal(t, "эй", rec.got[2].(protocol.ChatBroadcast).Message)
	assert.Equal(t, "p-1", a.PlayerID())
}

func TestPumpRespectsBudget(t *testing.T) {
	a := NewAgent(Options{MailboxSize: 8, PumpBudget: 3})
	for i := 0; i < 8; i++ {
		a.mailbox <- protocol.ChatBroadcast{Message: fmt.Sprint(i)}
	}
	a.drops <- transport.ErrClosed
	rec := &recorder{}

	assert.Equal(t, 3, a.Pump(rec))
	assert.Len(t, rec.got, 3)
	assert.Empty(t, rec.disconnects, "разрыв не обгоняет сообщения")

	assert.Equal(t, 3, a.Pump(rec))
	// Два последних сообщения и разрыв
	assert.Equal(t, 3, a.Pump(rec))
	require.Len(t, rec.got, 8)
	assert.Equal(t, "7", rec.got[7].(protocol.ChatBroadcast).Message)
	require.Len(t, rec.disconnects, 1)
	assert.ErrorIs(t, rec.disconnects[0], transport.ErrClosed)

	assert.Equal(t, 0, a.Pump(rec))
}

func TestMalformedServerMessageIsSkipped(t *testing.T) {
	a, server := pipeAgent(t)
	rec := &recorder{}

	go func() {
		_ = server.WriteMessage([]byte(`{"type":"teleport"}`))
		_ = server.WriteMessage([]byte(`не json`))
		serverSend(t, server, protocol.Error{Message: "Комната не найдена"})
	}()

	pumpUntil(t, a, rec, func() bool { return len(rec.got) == 1 })
	assert.Equal(t, protocol.Error{Message: "Комната не найдена"}, rec.got[0])
	assert.Equal(t, Connected, a.State())
}

func TestSendersProduceWireMessages(t *testing.T) {
	a, server := pipeAgent(t)

	go func() {
		_ = a.CreateRoom("Остров", 4, "Аня")
		_ = a.JoinRoom("r-1", "Аня")
		_ = a.SendBlockChange(1, 2, 3, 0, protocol.ActionBreak)
		_ = a.RequestWorldSync()
		_ = a.LeaveRoom()
	}()

	assert.Equal(t, protocol.CreateRoom{Name: "Остров", MaxPlayers: 4, PlayerName: "Аня"}, serverRead(t, server))
	assert.Equal(t, protocol.JoinRoom{RoomID: "r-1", PlayerName: "Аня"}, serverRead(t, server))
	assert.Equal(t, protocol.BlockChange{X: 1, Y: 2, Z: 3, BlockType: 0, Action: protocol.ActionBreak}, serverRead(t, server))
	assert.Equal(t, protocol.RequestWorldSync{}, serverRead(t, server))
	assert.Equal(t, protocol.LeaveRoom{}, serverRead(t, server))
}

func TestPlayerUpdateThrottle(t *testing.T) {
	a, server := pipeAgent(t)
	clock := time.Unix(1700000000, 0)
	a.now = func() time.Time { return clock }

	received := make(chan protocol.ClientMessage, 8)
	go func() {
		for {
			data, err := server.ReadMessage()
			if err != nil {
				return
			}
			msg, err := protocol.DecodeClient(data)
			if err == nil {
				received <- msg
			}
		}
	}()

	sent, err := a.SendPlayerUpdate(protocol.PlayerState{Name: "первый"})
	require.NoError(t, err)
	assert.True(t, sent)

	// 20 Гц: следующий пакет не раньше чем через 50 мс
	clock = clock.Add(30 * time.Millisecond)
	sent, err = a.SendPlayerUpdate(protocol.PlayerState{Name: "пропуск"})
	require.NoError(t, err)
	assert.False(t, sent)

	clock = clock.Add(20 * time.Millisecond)
	sent, err = a.SendPlayerUpdate(protocol.PlayerState{Name: "второй"})
	require.NoError(t, err)
	assert.True(t, sent)

	for _, want := range []string{"первый", "второй"} {
		select {
		case msg := <-received:
			assert.Equal(t, want, msg.(protocol.PlayerUpdate).Player.Name)
		case <-time.After(3 * time.Second):
			t.Fatalf("не пришло обновление %q", want)
		}
	}
}

func TestServerDropReportsDisconnect(t *testing.T) {
	a, server := pipeAgent(t)
	rec := &recorder{}

	serverSend(t, server, protocol.Welcome{PlayerID: "p-1"})
	require.NoError(t, server.Close())

	pumpUntil(t, a, rec, func() bool { return len(rec.disconnects) == 1 })
	require.Len(t, rec.got, 1, "welcome должен прийти раньше OnDisconnect")
	assert.ErrorIs(t, rec.disconnects[0], transport.ErrClosed)
	assert.Equal(t, Disconnected, a.State())
	assert.ErrorIs(t, a.SendChat("поздно"), ErrNotConnected)
}

func TestCloseReportsCleanDisconnect(t *testing.T) {
	a, _ := pipeAgent(t)
	rec := &recorder{}

	require.NoError(t, a.Close())
	assert.Equal(t, Disconnected, a.State())

	a.Pump(rec)
	require.Len(t, rec.disconnects, 1)
	assert.NoError(t, rec.disconnects[0])

	// повторный Close ничего не делает
	assert.NoError(t, a.Close())
	a.Pump(rec)
	assert.Len(t, rec.disconnects, 1)
}

func TestAgentAgainstRealServer(t *testing.T) {
	srv, err := network.NewServer(network.ServerConfig{HTTPAddr: "127.0.0.1:0"})
	require.NoError(t, err)
	require.NoError(t, srv.Start())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Stop(ctx)
	})
	url := fmt.Sprintf("ws://%s/ws", srv.Addr())

	host, guest := NewAgent(Options{}), NewAgent(Options{})
	require.NoError(t, host.Connect(context.Background(), url))
	require.NoError(t, guest.Connect(context.Background(), url))
	defer host.Close()
	defer guest.Close()

	hostRec, guestRec := &recorder{}, &recorder{}
	require.NoError(t, host.CreateRoom("Остров", 4, "Аня"))

	var created protocol.RoomCreated
	pumpUntil(t, host, hostRec, func() bool {
		for _, m := range hostRec.got {
			if rc, ok := m.(protocol.RoomCreated); ok {
				created = rc
				return true
			}
		}
		return false
	})
	assert.True(t, created.IsHost)
	assert.NotEmpty(t, host.PlayerID())

	require.NoError(t, guest.JoinRoom(created.RoomID, "Боря"))
	var joined protocol.RoomJoined
	pumpUntil(t, guest, guestRec, func() bool {
		for _, m := range guestRec.got {
			if rj, ok := m.(protocol.RoomJoined); ok {
				joined = rj
				return true
			}
		}
		return false
	})
	assert.Equal(t, created.Seed, joined.Seed)
	assert.False(t, joined.IsHost)

	// хост дожидается player_join, прежде чем ломать блок
	pumpUntil(t, host, hostRec, func() bool {
		for _, m := range hostRec.got {
			if _, ok := m.(protocol.PlayerJoin); ok {
				return true
			}
		}
		return false
	})

	require.NoError(t, host.SendBlockChange(4, 20, 4, 0, protocol.ActionBreak))
	pumpUntil(t, guest, guestRec, func() bool {
		for _, m := range guestRec.got {
			if bc, ok := m.(protocol.BlockChangeBroadcast); ok {
				return bc.PlayerID == host.PlayerID() && bc.X == 4
			}
		}
		return false
	})
}
