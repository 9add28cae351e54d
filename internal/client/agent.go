package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/annel0/blockverse/internal/config"
	"github.com/annel0/blockverse/internal/logging"
	"github.com/annel0/blockverse/internal/protocol"
	"github.com/annel0/blockverse/internal/transport"
)

var (
	// ErrNotConnected - отправка без установленного соединения
	ErrNotConnected = errors.New("not connected")
	// ErrAlreadyConnected - Connect при живом или устанавливаемом соединении
	ErrAlreadyConnected = errors.New("already connected")
)

// State - состояние соединения агента
type State int32

const (
	Disconnected State = iota
	Connecting
	Connected
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Options - параметры агента
type Options struct {
	ConnectTimeout time.Duration
	UpdateRateHz   int
	MailboxSize    int
	PumpBudget     int // сообщений за один Pump, по умолчанию MailboxSize
}

// OptionsFrom берёт параметры из конфигурации клиента
func OptionsFrom(cc config.ClientConfig) Options {
	return Options{
		ConnectTimeout: cc.ConnectTimeout,
		UpdateRateHz:   cc.UpdateRateHz,
		MailboxSize:    cc.MailboxSize,
	}
}

func (o *Options) applyDefaults() {
	d := config.Default().Client
	if o.ConnectTimeout <= 0 {
		o.ConnectTimeout = d.ConnectTimeout
	}
	if o.UpdateRateHz <= 0 {
		o.UpdateRateHz = d.UpdateRateHz
	}
	if o.MailboxSize <= 0 {
		o.MailboxSize = d.MailboxSize
	}
	if o.PumpBudget <= 0 {
		o.PumpBudget = o.MailboxSize
	}
}

// Agent - клиентская сторона синхронизации: одно соединение с сервером,
// отправка действий игрока и почтовый ящик входящих сообщений. Сообщения
// обрабатываются только в Pump, на горутине вызывающего.
// Переподключения нет: после разрыва нужен новый Connect.
type Agent struct {
	opts Options
	dial func(ctx context.Context, url string) (transport.Conn, error)
	now  func() time.Time

	mu         sync.Mutex
	state      State
	conn       transport.Conn
	quit       chan struct{}
	playerID   string
	lastUpdate time.Time

	mailbox chan protocol.ServerMessage
	drops   chan error

	logger *logging.Logger
}

// NewAgent создаёт отключённый агент
func NewAgent(opts Options) *Agent {
	opts.applyDefaults()
	return &Agent{
		opts:    opts,
		dial:    transport.Dial,
		now:     time.Now,
		mailbox: make(chan protocol.ServerMessage, opts.MailboxSize),
		drops:   make(chan error, 4),
		logger:  logging.GetClientLogger(),
	}
}

// State возвращает текущее состояние соединения
func (a *Agent) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// PlayerID - id, выданный сервером в welcome; пусто до его получения
func (a *Agent) PlayerID() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.playerID
}

// Connect подключается к серверу (ws://, wss:// или kcp://). Установка
// соединения ограничена ConnectTimeout.
func (a *Agent) Connect(ctx context.Context, url string) error {
	a.mu.Lock()
	if a.state != Disconnected {
		a.mu.Unlock()
		return ErrAlreadyConnected
	}
	a.state = Connecting
	a.playerID = ""
	a.mu.Unlock()

	a.logger.Info("🔌 Подключение к %s...", url)

	dialCtx, cancel := context.WithTimeout(ctx, a.opts.ConnectTimeout)
	defer cancel()

	conn, err := a.dial(dialCtx, url)
	if err != nil {
		a.mu.Lock()
		a.state = Disconnected
		a.mu.Unlock()
		a.logger.Warn("❌ Не удалось подключиться к %s: %v", url, err)
		return fmt.Errorf("подключение к %s: %w", url, err)
	}

	quit := make(chan struct{})
	a.mu.Lock()
	a.conn = conn
	a.quit = quit
	a.state = Connected
	a.lastUpdate = time.Time{}
	a.mu.Unlock()

	go a.readLoop(conn, quit)

	a.logger.Info("✅ Подключено к %s", url)
	return nil
}

// Close закрывает соединение. OnDisconnect(nil) придёт при следующем Pump.
func (a *Agent) Close() error {
	a.mu.Lock()
	conn := a.conn
	if conn == nil {
		a.mu.Unlock()
		return nil
	}
	a.conn = nil
	a.state = Disconnected
	close(a.quit)
	a.mu.Unlock()

	a.notifyDrop(nil)
	return conn.Close()
}

func (a *Agent) readLoop(conn transport.Conn, quit chan struct{}) {
	for {
		data, err := conn.ReadMessage()
		if err != nil {
			a.connectionLost(conn, err)
			return
		}

		msg, err := protocol.DecodeServer(data)
		if err != nil {
			logging.LogProtocolError(a.logger, "server", err, data)
			continue
		}

		if w, ok := msg.(protocol.Welcome); ok {
			a.mu.Lock()
			a.playerID = w.PlayerID
			a.mu.Unlock()
		}

		select {
		case a.mailbox <- msg:
		case <-quit:
			return
		}
	}
}

// connectionLost обрабатывает разрыв, который не инициировал Close
func (a *Agent) connectionLost(conn transport.Conn, err error) {
	a.mu.Lock()
	if a.conn != conn {
		// Соединение уже закрыто через Close
		a.mu.Unlock()
		return
	}
	a.conn = nil
	a.state = Disconnected
	close(a.quit)
	a.mu.Unlock()

	conn.Close()
	if errors.Is(err, transport.ErrClosed) {
		a.logger.Info("🔌 Сервер закрыл соединение")
	} else {
		a.logger.Warn("⚠️ Соединение потеряно: %v", err)
	}
	a.notifyDrop(err)
}

func (a *Agent) notifyDrop(err error) {
	select {
	case a.drops <- err:
	default:
		a.logger.Warn("Очередь уведомлений о разрыве переполнена")
	}
}

// Pump доставляет накопленные сообщения в h, не больше PumpBudget за вызов,
// и возвращает их число. Остаток ждёт следующего кадра. OnDisconnect идёт
// после сообщений, полученных до разрыва.
func (a *Agent) Pump(h Handler) int {
	n := 0
	for n < a.opts.PumpBudget {
		select {
		case msg := <-a.mailbox:
			Dispatch(h, msg)
			n++
			continue
		default:
		}

		select {
		case err := <-a.drops:
			// Всё, что пришло до разрыва, уже лежит в ящике
			n += a.drain(h)
			h.OnDisconnect(err)
			n++
			continue
		default:
		}
		return n
	}
	return n
}

func (a *Agent) drain(h Handler) int {
	n := 0
	for {
		select {
		case msg := <-a.mailbox:
			Dispatch(h, msg)
			n++
		default:
			return n
		}
	}
}

func (a *Agent) send(m protocol.ClientMessage) error {
	a.mu.Lock()
	conn, state := a.conn, a.state
	a.mu.Unlock()

	if conn == nil || state != Connected {
		return ErrNotConnected
	}

	data, err := protocol.EncodeClient(m)
	if err != nil {
		return err
	}
	if err := conn.WriteMessage(data); err != nil {
		return fmt.Errorf("отправка %s: %w", m.Type(), err)
	}
	return nil
}

// GetRoomList запрашивает список комнат
func (a *Agent) GetRoomList() error {
	return a.send(protocol.GetRooms{})
}

// CreateRoom создаёт комнату; создатель становится хостом
func (a *Agent) CreateRoom(name string, maxPlayers int, playerName string) error {
	return a.send(protocol.CreateRoom{Name: name, MaxPlayers: maxPlayers, PlayerName: playerName})
}

func (a *Agent) JoinRoom(roomID, playerName string) error {
	return a.send(protocol.JoinRoom{RoomID: roomID, PlayerName: playerName})
}

func (a *Agent) LeaveRoom() error {
	return a.send(protocol.LeaveRoom{})
}

// SendPlayerUpdate отправляет состояние игрока не чаще UpdateRateHz раз в
// секунду. Возвращает false, если отправка пропущена из-за ограничения.
func (a *Agent) SendPlayerUpdate(state protocol.PlayerState) (bool, error) {
	interval := time.Second / time.Duration(a.opts.UpdateRateHz)
	now := a.now()

	a.mu.Lock()
	if !a.lastUpdate.IsZero() && now.Sub(a.lastUpdate) < interval {
		a.mu.Unlock()
		return false, nil
	}
	prev := a.lastUpdate
	a.lastUpdate = now
	a.mu.Unlock()

	if err := a.send(protocol.PlayerUpdate{Player: state}); err != nil {
		a.mu.Lock()
		a.lastUpdate = prev
		a.mu.Unlock()
		return false, err
	}
	return true, nil
}

// SendBlockChange сообщает о правке блока по мировым координатам
func (a *Agent) SendBlockChange(x, y, z, blockType int, action string) error {
	return a.send(protocol.BlockChange{X: x, Y: y, Z: z, BlockType: blockType, Action: action})
}

func (a *Agent) SendChat(message string) error {
	return a.send(protocol.Chat{Message: message})
}

// RequestWorldSync просит сервер прислать журнал правок комнаты
func (a *Agent) RequestWorldSync() error {
	return a.send(protocol.RequestWorldSync{})
}
