package network

import (
	"context"
	"errors"
	"time"

	"github.com/annel0/blockverse/internal/config"
	"github.com/annel0/blockverse/internal/eventbus"
	"github.com/annel0/blockverse/internal/logging"
	"github.com/annel0/blockverse/internal/protocol"
	"github.com/annel0/blockverse/internal/room"
	"github.com/annel0/blockverse/internal/transport"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ErrDispatcherStopped - диспетчер уже остановлен
var ErrDispatcherStopped = errors.New("dispatcher stopped")

// DispatcherConfig - параметры диспетчера комнат
type DispatcherConfig struct {
	ChangeLogCap      int
	DefaultMaxPlayers int
	MaxPlayersLimit   int
	SweepInterval     time.Duration
	EmptyRoomGrace    time.Duration // 0 - пустая комната удаляется сразу
	MailboxSize       int
	OutboxSize        int    // кадров в очереди игрока; переполнение отключает его
	SyncPageSize      int    // записей журнала в одном room_joined/world_sync
	Source            string // источник событий на шине
}

// DispatcherConfigFrom переносит настройки комнат из общей конфигурации
func DispatcherConfigFrom(rc config.RoomsConfig) DispatcherConfig {
	return DispatcherConfig{
		ChangeLogCap:      rc.ChangeLogCap,
		DefaultMaxPlayers: rc.DefaultMaxPlayers,
		MaxPlayersLimit:   rc.MaxPlayersLimit,
		SweepInterval:     rc.SweepInterval,
		EmptyRoomGrace:    rc.EmptyRoomGrace,
		MailboxSize:       rc.MailboxSize,
		OutboxSize:        rc.OutboxSize,
		SyncPageSize:      rc.SyncPageSize,
	}
}

func (c *DispatcherConfig) applyDefaults() {
	d := config.Default().Rooms
	if c.ChangeLogCap <= 0 {
		c.ChangeLogCap = d.ChangeLogCap
	}
	if c.MaxPlayersLimit <= 0 {
		c.MaxPlayersLimit = d.MaxPlayersLimit
	}
	if c.DefaultMaxPlayers <= 0 || c.DefaultMaxPlayers > c.MaxPlayersLimit {
		c.DefaultMaxPlayers = min(d.DefaultMaxPlayers, c.MaxPlayersLimit)
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = d.SweepInterval
	}
	if c.MailboxSize <= 0 {
		c.MailboxSize = d.MailboxSize
	}
	if c.OutboxSize <= 0 {
		c.OutboxSize = d.OutboxSize
	}
	if c.SyncPageSize <= 0 {
		c.SyncPageSize = d.SyncPageSize
	}
	if c.SyncPageSize > maxSyncPageSize {
		c.SyncPageSize = maxSyncPageSize
	}
	if c.Source == "" {
		c.Source = "blockverse-server"
	}
}

// State - всё, чем владеет горутина диспетчера. Доступ только через Do.
type State struct {
	Rooms   *room.Registry
	players map[string]*peer
}

// Online - число подключённых игроков
func (s *State) Online() int {
	return len(s.players)
}

// Dispatcher - единственный логический поток сервера: владеет реестром
// комнат и таблицей игроков. Соединения, таймер очистки и REST общаются
// с ним через почтовый ящик.
type Dispatcher struct {
	cfg     DispatcherConfig
	state   *State
	inbox   chan event
	bus     eventbus.EventBus
	metrics *Metrics
	tracer  trace.Tracer
	logger  *logging.Logger
	now     func() time.Time
	newID   func() string
	done    chan struct{}
}

type event interface{}

type connectEvent struct{ p *peer }

type messageEvent struct {
	p   *peer
	msg protocol.ClientMessage
}

type disconnectEvent struct {
	p   *peer
	err error
}

type doEvent struct {
	fn   func(*State)
	done chan struct{}
}

// NewDispatcher создаёт диспетчер. bus может быть nil; метрики
// регистрируются в reg.
func NewDispatcher(cfg DispatcherConfig, bus eventbus.EventBus, reg prometheus.Registerer) *Dispatcher {
	cfg.applyDefaults()
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	return &Dispatcher{
		cfg: cfg,
		state: &State{
			Rooms:   room.NewRegistry(cfg.ChangeLogCap),
			players: make(map[string]*peer),
		},
		inbox:   make(chan event, cfg.MailboxSize),
		bus:     bus,
		metrics: NewMetrics(reg),
		tracer:  otel.Tracer("github.com/annel0/blockverse/internal/network"),
		logger:  logging.GetNetworkLogger(),
		now:     time.Now,
		newID:   uuid.NewString,
		done:    make(chan struct{}),
	}
}

// Run крутит цикл диспетчера до отмены ctx. Вызывается ровно один раз.
func (d *Dispatcher) Run(ctx context.Context) {
	defer close(d.done)

	ticker := time.NewTicker(d.cfg.SweepInterval)
	defer ticker.Stop()

	d.logger.Info("🚀 Диспетчер комнат запущен (очистка каждые %v)", d.cfg.SweepInterval)

	for {
		select {
		case <-ctx.Done():
			d.shutdown()
			d.logger.Info("🛑 Диспетчер комнат остановлен")
			return
		case ev := <-d.inbox:
			d.handleEvent(ctx, ev)
		case <-ticker.C:
			d.sweep()
		}
	}
}

// Done закрывается, когда Run завершился
func (d *Dispatcher) Done() <-chan struct{} {
	return d.done
}

func (d *Dispatcher) post(ctx context.Context, ev event) bool {
	select {
	case d.inbox <- ev:
		return true
	case <-ctx.Done():
		return false
	case <-d.done:
		return false
	}
}

// Do выполняет fn в горутине диспетчера и ждёт завершения. ctx ограничивает
// только постановку в очередь: принятый fn может писать в переменные
// вызывающего, поэтому Do возвращается лишь после его выполнения или
// остановки диспетчера.
func (d *Dispatcher) Do(ctx context.Context, fn func(*State)) error {
	ev := doEvent{fn: fn, done: make(chan struct{})}
	if !d.post(ctx, ev) {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return ErrDispatcherStopped
	}

	select {
	case <-ev.done:
		return nil
	case <-d.done:
		// Run завершился, fn либо выполнен, либо уже не выполнится
		select {
		case <-ev.done:
			return nil
		default:
			return ErrDispatcherStopped
		}
	}
}

// ServeConn обслуживает соединение до его закрытия: регистрирует игрока,
// читает и разбирает сообщения и передаёт их диспетчеру.
func (d *Dispatcher) ServeConn(ctx context.Context, conn transport.Conn) {
	p := newPeer(d.newID(), conn, d.cfg.OutboxSize)
	go p.writeLoop()

	if !d.post(ctx, connectEvent{p: p}) {
		p.close()
		return
	}

	for {
		data, err := conn.ReadMessage()
		if err != nil {
			if !d.post(ctx, disconnectEvent{p: p, err: err}) {
				p.close()
			}
			return
		}

		msg, err := protocol.DecodeClient(data)
		if err != nil {
			// Битое сообщение отбрасываем, соединение живёт дальше
			d.metrics.ProtocolErrors.Inc()
			logging.LogProtocolError(d.logger, p.id, err, data)
			continue
		}

		if !d.post(ctx, messageEvent{p: p, msg: msg}) {
			p.close()
			return
		}
	}
}

func (d *Dispatcher) handleEvent(ctx context.Context, ev event) {
	switch e := ev.(type) {
	case connectEvent:
		d.handleConnect(e.p)
	case messageEvent:
		d.handleMessage(ctx, e.p, e.msg)
	case disconnectEvent:
		d.handleDisconnect(e.p, e.err)
	case doEvent:
		e.fn(d.state)
		close(e.done)
	}
}

func (d *Dispatcher) handleConnect(p *peer) {
	d.state.players[p.id] = p
	d.metrics.Connections.Inc()
	d.logger.Info("🔗 Игрок %s подключился с %s", p.id, p.conn.RemoteAddr())
	d.send(p, protocol.Welcome{PlayerID: p.id})
}

func (d *Dispatcher) handleDisconnect(p *peer, err error) {
	if _, ok := d.state.players[p.id]; !ok {
		p.close()
		return
	}

	d.leaveRoom(p)
	delete(d.state.players, p.id)
	p.close()
	d.metrics.Connections.Dec()

	if err != nil && !errors.Is(err, transport.ErrClosed) {
		d.logger.Debug("Соединение игрока %s закрыто: %v", p.id, err)
	}
	d.logger.Info("👋 Игрок %s отключился", p.id)
}

func (d *Dispatcher) handleMessage(ctx context.Context, p *peer, msg protocol.ClientMessage) {
	// Сообщение могло прийти уже после удаления игрока
	if _, ok := d.state.players[p.id]; !ok {
		return
	}

	msgType := string(msg.Type())
	_, span := d.tracer.Start(ctx, "blockverse."+msgType,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			attribute.String("player.id", p.id),
			attribute.String("room.id", p.roomID),
		))
	defer span.End()

	start := time.Now()
	if reason := d.route(p, msg); reason != "" {
		span.SetStatus(codes.Error, reason)
	}
	d.metrics.HandleDuration.WithLabelValues(msgType).Observe(time.Since(start).Seconds())
	d.metrics.Messages.WithLabelValues(msgType).Inc()
}

// send кодирует и ставит сообщение в очередь игрока. Переполненная
// очередь означает, что клиент не успевает читать: соединение закрывается,
// а выход из комнаты произойдёт по событию отключения.
func (d *Dispatcher) send(p *peer, msg protocol.ServerMessage) {
	data, err := protocol.EncodeServer(msg)
	if err != nil {
		d.logger.Error("Ошибка кодирования %s: %v", msg.Type(), err)
		return
	}
	d.sendRaw(p, data)
}

func (d *Dispatcher) sendRaw(p *peer, data []byte) {
	if p.enqueue(data) {
		return
	}
	if !p.closed() {
		d.metrics.DroppedPeers.Inc()
		d.logger.Warn("⚠️ Очередь игрока %s переполнена, закрываем соединение", p.id)
		p.close()
	}
}

// broadcast рассылает сообщение участникам комнаты, кроме exceptID
func (d *Dispatcher) broadcast(r *room.Room, msg protocol.ServerMessage, exceptID string) {
	data, err := protocol.EncodeServer(msg)
	if err != nil {
		d.logger.Error("Ошибка кодирования %s: %v", msg.Type(), err)
		return
	}

	for _, id := range r.MemberIDs() {
		if id == exceptID {
			continue
		}
		if p, ok := d.state.players[id]; ok {
			d.sendRaw(p, data)
		}
	}
}

// sweep убирает игроков с закрытыми соединениями и пустые комнаты
func (d *Dispatcher) sweep() {
	for _, p := range d.state.players {
		if p.closed() {
			d.handleDisconnect(p, nil)
		}
	}

	for _, id := range d.state.Rooms.SweepEmpty(d.now(), d.cfg.EmptyRoomGrace) {
		d.logger.Info("🧹 Пустая комната %s удалена", id)
		d.publish(eventbus.RoomDeleted, 5, eventbus.RoomEvent{RoomID: id})
	}
	d.updateGauges()
}

func (d *Dispatcher) updateGauges() {
	players := 0
	for _, r := range d.state.Rooms.List() {
		players += r.Len()
	}
	d.metrics.Players.Set(float64(players))
	d.metrics.Rooms.Set(float64(d.state.Rooms.Len()))
}

// shutdown закрывает все соединения при остановке
func (d *Dispatcher) shutdown() {
	for id, p := range d.state.players {
		p.close()
		delete(d.state.players, id)
	}
	d.metrics.Connections.Set(0)
}

// publish отправляет событие на шину, если она подключена
func (d *Dispatcher) publish(eventType string, priority int, payload interface{}) {
	if d.bus == nil {
		return
	}

	env, err := eventbus.NewEnvelope(eventType, d.cfg.Source, priority, payload)
	if err != nil {
		d.logger.Error("%v", err)
		return
	}
	// Шина не должна тормозить цикл диспетчера
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := d.bus.Publish(ctx, env); err != nil {
		d.logger.Warn("Событие %s не опубликовано: %v", eventType, err)
	}
}

func roomEvent(r *room.Room) eventbus.RoomEvent {
	return eventbus.RoomEvent{
		RoomID:     r.ID,
		Name:       r.Name,
		Players:    r.Len(),
		MaxPlayers: r.MaxPlayers,
		HostID:     r.HostID,
		Seed:       r.Seed,
	}
}
