package network

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/annel0/blockverse/internal/protocol"
	"github.com/annel0/blockverse/internal/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startTestServer(t *testing.T, kcpAddr string) *Server {
	t.Helper()
	s, err := NewServer(ServerConfig{
		HTTPAddr: "127.0.0.1:0",
		KCPAddr:  kcpAddr,
	})
	require.NoError(t, err)
	require.NoError(t, s.Start())

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		assert.NoError(t, s.Stop(ctx))
	})
	return s
}

type wireClient struct {
	t    *testing.T
	conn transport.Conn
	id   string
}

func dialWire(t *testing.T, url string) *wireClient {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, err := transport.Dial(ctx, url)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	wc := &wireClient{t: t, conn: conn}
	welcome, ok := wc.next().(protocol.Welcome)
	require.True(t, ok)
	wc.id = welcome.PlayerID
	return wc
}

func (wc *wireClient) send(m protocol.ClientMessage) {
	data, err := protocol.EncodeClient(m)
	require.NoError(wc.t, err)
	require.NoError(wc.t, wc.conn.WriteMessage(data))
}

func (wc *wireClient) next() protocol.ServerMessage {
	wc.t.Helper()
	type result struct {
		data []byte
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		data, err := wc.conn.ReadMessage()
		ch <- result{data, err}
	}()

	select {
	case r := <-ch:
		require.NoError(wc.t, r.err)
		msg, err := protocol.DecodeServer(r.data)
		require.NoError(wc.t, err)
		return msg
	case <-time.After(3 * time.Second):
		wc.t.Fatal("сообщение не пришло")
		return nil
	}
}

func TestWebSocketBlockChangeScenario(t *testing.T) {
	s := startTestServer(t, "")
	url := fmt.Sprintf("ws://%s/ws", s.Addr())

	a := dialWire(t, url)
	b := dialWire(t, url)

	a.send(protocol.CreateRoom{Name: "Остров", MaxPlayers: 4, PlayerName: "Аня"})
	created, ok := a.next().(protocol.RoomCreated)
	require.True(t, ok)

	b.send(protocol.JoinRoom{RoomID: created.RoomID, PlayerName: "Боря"})
	joined, ok := b.next().(protocol.RoomJoined)
	require.True(t, ok)
	assert.Equal(t, created.Seed, joined.Seed)
	_, ok = a.next().(protocol.PlayerJoin)
	require.True(t, ok)

	a.send(protocol.BlockChange{X: 3, Y: 25, Z: 3, BlockType: 0, Action: protocol.ActionBreak})
	relayed, ok := b.next().(protocol.BlockChangeBroadcast)
	require.True(t, ok)
	assert.Equal(t, a.id, relayed.PlayerID)
	assert.Equal(t, protocol.ActionBreak, relayed.Action)

	// A не получает собственную правку: следующее для него - ответ на get_rooms
	a.send(protocol.GetRooms{})
	_, ok = a.next().(protocol.RoomList)
	assert.True(t, ok)
}

func TestLateJoinerReceivesFullChangeLogOverWebSocket(t *testing.T) {
	s := startTestServer(t, "")
	url := fmt.Sprintf("ws://%s/ws", s.Addr())

	a := dialWire(t, url)
	b := dialWire(t, url)

	a.send(protocol.CreateRoom{Name: "Стройка", MaxPlayers: 4})
	created, ok := a.next().(protocol.RoomCreated)
	require.True(t, ok)

	// Журнал почти заполнен: одним кадром он бы не поместился
	const edits = 9999
	for i := 0; i < edits; i++ {
		a.send(protocol.BlockChange{X: i, Y: 40, Z: -i, BlockType: 9, Action: protocol.ActionPlace})
	}
	a.send(protocol.GetRooms{})
	_, ok = a.next().(protocol.RoomList)
	require.True(t, ok)

	b.send(protocol.JoinRoom{RoomID: created.RoomID, PlayerName: "Опоздавший"})
	joined, ok := b.next().(protocol.RoomJoined)
	require.True(t, ok)
	assert.Less(t, len(joined.WorldChanges), edits)

	changes := joined.WorldChanges
	for len(changes) < edits {
		ws, ok := b.next().(protocol.WorldSync)
		require.True(t, ok)
		require.NotEmpty(t, ws.WorldChanges)
		changes = append(changes, ws.WorldChanges...)
	}
	require.Len(t, changes, edits)
	for i, rec := range changes {
		if rec.X != i {
			t.Fatalf("запись %d не на своём месте: x=%d", i, rec.X)
		}
	}

	// Соединение живо
	b.send(protocol.Chat{Message: "всё получил"})
	chat, ok := b.next().(protocol.ChatBroadcast)
	require.True(t, ok)
	assert.Equal(t, b.id, chat.PlayerID)
}

func TestRESTSeesRooms(t *testing.T) {
	s := startTestServer(t, "")
	a := dialWire(t, fmt.Sprintf("ws://%s/ws", s.Addr()))

	a.send(protocol.CreateRoom{Name: "REST", MaxPlayers: 2})
	created, ok := a.next().(protocol.RoomCreated)
	require.True(t, ok)

	resp, err := http.Get(fmt.Sprintf("http://%s/api/rooms/%s", s.Addr(), created.RoomID))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Data struct {
			ID   string `json:"id"`
			Seed int64  `json:"seed"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, created.RoomID, body.Data.ID)
	assert.Equal(t, created.Seed, body.Data.Seed)

	metrics, err := http.Get(fmt.Sprintf("http://%s/metrics", s.Addr()))
	require.NoError(t, err)
	defer metrics.Body.Close()
	text, _ := io.ReadAll(metrics.Body)
	assert.Contains(t, string(text), "blockverse_messages_total")
}

func TestKCPClientJoinsWebSocketRoom(t *testing.T) {
	s := startTestServer(t, "127.0.0.1:0")
	require.NotNil(t, s.KCPAddr())

	ws := dialWire(t, fmt.Sprintf("ws://%s/ws", s.Addr()))
	kc := dialWire(t, fmt.Sprintf("kcp://%s", s.KCPAddr()))

	ws.send(protocol.CreateRoom{Name: "mixed", MaxPlayers: 4})
	created, ok := ws.next().(protocol.RoomCreated)
	require.True(t, ok)

	kc.send(protocol.JoinRoom{RoomID: created.RoomID, PlayerName: "kcp"})
	joined, ok := kc.next().(protocol.RoomJoined)
	require.True(t, ok)
	assert.Len(t, joined.Players, 2)
	_, ok = ws.next().(protocol.PlayerJoin)
	require.True(t, ok)

	kc.send(protocol.Chat{Message: "через kcp"})
	chat, ok := ws.next().(protocol.ChatBroadcast)
	require.True(t, ok)
	assert.Equal(t, kc.id, chat.PlayerID)
}
