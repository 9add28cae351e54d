package game

import (
	"errors"
	"time"

	"github.com/annel0/blockverse/internal/client"
	"github.com/annel0/blockverse/internal/config"
	"github.com/annel0/blockverse/internal/logging"
	"github.com/annel0/blockverse/internal/meshing"
	"github.com/annel0/blockverse/internal/physics"
	"github.com/annel0/blockverse/internal/protocol"
	"github.com/annel0/blockverse/internal/vec"
	"github.com/annel0/blockverse/internal/world"
)

var (
	// ErrNotInRoom - действие с миром до room_created/room_joined
	ErrNotInRoom = errors.New("not in a room")
	// ErrNothingTargeted - луч ни во что не попал
	ErrNothingTargeted = errors.New("no block in reach")
	// ErrBlocked - блок нельзя поставить в клетку игрока
	ErrBlocked = errors.New("target cell is occupied by the player")
)

const chatHistory = 50

// Link - то, что сессии нужно от сетевого агента
type Link interface {
	Pump(h client.Handler) int
	SendBlockChange(x, y, z, blockType int, action string) error
	SendPlayerUpdate(state protocol.PlayerState) (bool, error)
}

// Options - параметры клиентской сессии
type Options struct {
	ViewRadius  int // радиус подгрузки в чанках
	EvictRadius int // чанки дальше выгружаются
	MeshBudget  int // перестроек мешей за кадр, 0 - без ограничения
	Sink        meshing.Sink
	// Generator заменяет рельеф по сиду, например плоским миром
	Generator func(seed int64) world.Generator
	// NewStore создаёт хранилище выгружаемых чанков для нового мира; nil -
	// изменённые чанки остаются в памяти
	NewStore func() (world.ChunkStore, error)
}

// OptionsFrom берёт радиусы из конфигурации мира
func OptionsFrom(wc config.WorldConfig) Options {
	return Options{ViewRadius: wc.ViewRadius, EvictRadius: wc.EvictRadius}
}

// FrameStats - что произошло за кадр
type FrameStats struct {
	Messages int
	Rebuilt  int
	Evicted  int
}

// Session связывает сетевого агента с локальным миром комнаты. Все
// изменения мира происходят в Frame и в BreakBlock/PlaceBlock, то есть на
// одной горутине игрового цикла.
type Session struct {
	client.NopHandler

	link   Link
	opts   Options
	meshes *meshing.Cache

	world    *world.World
	store    world.ChunkStore
	now      time.Time
	playerID string
	roomID   string
	hostID   string
	self     protocol.PlayerState
	remotes  map[string]*RemotePlayer
	chat     []protocol.ChatBroadcast

	connected bool
	lastError string

	logger *logging.Logger
}

var _ client.Handler = (*Session)(nil)

// NewSession создаёт сессию без мира; мир появляется при входе в комнату
func NewSession(link Link, opts Options) *Session {
	d := config.Default().World
	if opts.ViewRadius <= 0 {
		opts.ViewRadius = d.ViewRadius
	}
	if opts.EvictRadius < opts.ViewRadius {
		opts.EvictRadius = opts.ViewRadius + 2
	}
	return &Session{
		link:    link,
		opts:    opts,
		meshes:  meshing.NewCache(opts.Sink),
		remotes: make(map[string]*RemotePlayer),
		logger:  logging.GetClientLogger(),
	}
}

// World - текущий мир комнаты или nil
func (s *Session) World() *world.World { return s.world }

// Meshes - кэш мешей текущего мира
func (s *Session) Meshes() *meshing.Cache { return s.meshes }

func (s *Session) PlayerID() string { return s.playerID }
func (s *Session) RoomID() string   { return s.roomID }
func (s *Session) HostID() string   { return s.hostID }

// IsHost - текущий игрок хост комнаты
func (s *Session) IsHost() bool {
	return s.roomID != "" && s.hostID != "" && s.hostID == s.playerID
}

func (s *Session) Connected() bool   { return s.connected }
func (s *Session) LastError() string { return s.lastError }

// Self - состояние своего игрока
func (s *Session) Self() protocol.PlayerState { return s.self }

// Remote возвращает другого игрока комнаты по id
func (s *Session) Remote(id string) (*RemotePlayer, bool) {
	rp, ok := s.remotes[id]
	return rp, ok
}

// RemoteCount - число других игроков в комнате
func (s *Session) RemoteCount() int { return len(s.remotes) }

// Chat - последние сообщения чата, старые первыми
func (s *Session) Chat() []protocol.ChatBroadcast { return s.chat }

// Frame обрабатывает входящие сообщения, подгружает чанки вокруг игрока,
// перестраивает меши и выгружает далёкие чанки.
func (s *Session) Frame(now time.Time) FrameStats {
	s.now = now

	var st FrameStats
	st.Messages = s.link.Pump(s)

	if s.world == nil {
		return st
	}

	cell := s.self.Position.Floor()
	s.world.GetChunksAround(cell.X, cell.Y, cell.Z, s.opts.ViewRadius)
	st.Rebuilt = s.meshes.Rebuild(s.world, s.opts.MeshBudget)

	evicted := s.world.Evict(cell.X, cell.Z, s.opts.EvictRadius)
	s.meshes.Drop(evicted)
	st.Evicted = len(evicted)
	return st
}

// CanOccupy проверяет, поместится ли игрок в pos, не задевая твёрдые блоки
func (s *Session) CanOccupy(pos vec.Vec3Float) bool {
	if s.world == nil {
		return true
	}
	return physics.CanOccupy(pos, physics.PlayerCollider, func(c vec.Vec3) bool {
		return s.world.GetBlock(c.X, c.Y, c.Z).IsSolid()
	})
}

// Move обновляет своё состояние и отправляет его, если позволяет
// ограничение частоты агента.
func (s *Session) Move(pos vec.Vec3Float, rot protocol.Rotation, velocity vec.Vec3Float, flying bool) (bool, error) {
	s.self.Position = pos
	s.self.Rotation = rot
	s.self.Velocity = velocity
	s.self.Flying = flying

	if s.roomID == "" {
		return false, nil
	}
	return s.link.SendPlayerUpdate(s.self)
}

// BreakBlock ломает блок, на который смотрит луч из origin. Возвращает
// координаты сломанного блока.
func (s *Session) BreakBlock(origin, direction vec.Vec3Float) (vec.Vec3, error) {
	if s.world == nil {
		return vec.Vec3{}, ErrNotInRoom
	}

	hit := s.world.Raycast(origin, direction, world.DefaultReach)
	if !hit.Hit {
		return vec.Vec3{}, ErrNothingTargeted
	}

	p := hit.Position
	s.world.SetBlock(p.X, p.Y, p.Z, world.Air)
	return p, s.link.SendBlockChange(p.X, p.Y, p.Z, int(world.Air), protocol.ActionBreak)
}

// PlaceBlock ставит блок в пустую клетку перед блоком, на который смотрит
// луч. Блок не может пересекать коллайдер игрока.
func (s *Session) PlaceBlock(origin, direction vec.Vec3Float, t world.BlockType) (vec.Vec3, error) {
	if s.world == nil {
		return vec.Vec3{}, ErrNotInRoom
	}

	hit := s.world.Raycast(origin, direction, world.DefaultReach)
	if !hit.Hit || hit.Distance == 0 {
		return vec.Vec3{}, ErrNothingTargeted
	}

	p := hit.LastPosition
	if physics.PlayerCollider.At(s.self.Position).Intersects(physics.BlockBox(p)) {
		return vec.Vec3{}, ErrBlocked
	}

	s.world.SetBlock(p.X, p.Y, p.Z, t)
	return p, s.link.SendBlockChange(p.X, p.Y, p.Z, int(t), protocol.ActionPlace)
}

// enterRoom заменяет мир новым миром от сида комнаты
func (s *Session) enterRoom(roomID string, seed int64) {
	s.leaveWorld()

	var opts []world.Option
	if s.opts.Generator != nil {
		opts = append(opts, world.WithGenerator(s.opts.Generator(seed)))
	}
	if s.opts.NewStore != nil {
		store, err := s.opts.NewStore()
		if err != nil {
			s.logger.Warn("Хранилище чанков недоступно, выгрузка изменённых чанков отключена: %v", err)
		} else {
			s.store = store
			opts = append(opts, world.WithChunkStore(store))
		}
	}

	s.world = world.NewWorld(seed, opts...)
	s.roomID = roomID
	s.self.ID = s.playerID
	s.self.Position = s.world.GetSpawnPoint()
	s.remotes = make(map[string]*RemotePlayer)
	s.chat = nil

	s.logger.Info("🌍 Мир комнаты %s создан (сид %d), точка появления %+v", roomID, seed, s.self.Position)
}

func (s *Session) leaveWorld() {
	s.meshes.Reset()
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			s.logger.Warn("Ошибка закрытия хранилища чанков: %v", err)
		}
		s.store = nil
	}
	s.world = nil
	s.roomID = ""
	s.hostID = ""
	s.remotes = make(map[string]*RemotePlayer)
}

// Close освобождает мир и хранилище чанков
func (s *Session) Close() {
	s.leaveWorld()
}

// LeaveRoom сбрасывает локальный мир; сообщение leave_room отправляет
// вызывающий через агента.
func (s *Session) LeaveRoom() {
	if s.roomID != "" {
		s.logger.Info("👋 Покидаем комнату %s", s.roomID)
	}
	s.leaveWorld()
}

func (s *Session) replay(changes []protocol.WorldChangeRecord) {
	for _, rec := range changes {
		s.apply(rec.X, rec.Y, rec.Z, rec.BlockType, rec.Action)
	}
}

func (s *Session) apply(x, y, z, blockType int, action string) {
	t, ok := world.BlockTypeFromID(blockType)
	if !ok {
		s.logger.Warn("Неизвестный тип блока %d в (%d,%d,%d), правка пропущена", blockType, x, y, z)
		return
	}
	if action == protocol.ActionBreak {
		t = world.Air
	}
	s.world.SetBlock(x, y, z, t)
}

func (s *Session) pushChat(m protocol.ChatBroadcast) {
	s.chat = append(s.chat, m)
	if len(s.chat) > chatHistory {
		s.chat = s.chat[len(s.chat)-chatHistory:]
	}
}

// ---- client.Handler ----

func (s *Session) OnWelcome(m protocol.Welcome) {
	s.playerID = m.PlayerID
	s.self.ID = m.PlayerID
	s.connected = true
}

func (s *Session) OnRoomCreated(m protocol.RoomCreated) {
	s.enterRoom(m.RoomID, m.Seed)
	if m.IsHost {
		s.hostID = s.playerID
	}
}

func (s *Session) OnRoomJoined(m protocol.RoomJoined) {
	s.enterRoom(m.RoomID, m.Seed)
	if m.IsHost {
		s.hostID = s.playerID
	}

	for _, p := range m.Players {
		if p.ID == s.playerID {
			s.self.Name = p.Name
			continue
		}
		s.remotes[p.ID] = newRemotePlayer(p, s.now)
	}
	s.replay(m.WorldChanges)

	s.logger.Info("🎮 Вошли в комнату %s: игроков %d, правок %d",
		m.RoomID, len(m.Players), len(m.WorldChanges))
}

func (s *Session) OnPlayerJoin(m protocol.PlayerJoin) {
	if s.world == nil || m.Player.ID == s.playerID {
		return
	}
	s.remotes[m.Player.ID] = newRemotePlayer(m.Player, s.now)
	s.logger.Info("➕ %s вошёл в комнату", m.Player.Name)
}

func (s *Session) OnPlayerLeave(m protocol.PlayerLeave) {
	if s.world == nil {
		return
	}
	if rp, ok := s.remotes[m.PlayerID]; ok {
		s.logger.Info("➖ %s покинул комнату", rp.State.Name)
		delete(s.remotes, m.PlayerID)
	}
	if m.HostID != "" {
		s.hostID = m.HostID
		if m.HostID == s.playerID {
			s.logger.Info("👑 Теперь вы хост комнаты")
		}
	}
}

func (s *Session) OnPlayerUpdate(m protocol.PlayerUpdateBroadcast) {
	if s.world == nil || m.Player.ID == s.playerID {
		return
	}
	if rp, ok := s.remotes[m.Player.ID]; ok {
		rp.update(m.Player, s.now)
		return
	}
	s.remotes[m.Player.ID] = newRemotePlayer(m.Player, s.now)
}

func (s *Session) OnBlockChange(m protocol.BlockChangeBroadcast) {
	if s.world == nil {
		return
	}
	s.apply(m.X, m.Y, m.Z, m.BlockType, m.Action)
}

func (s *Session) OnWorldSync(m protocol.WorldSync) {
	if s.world == nil {
		return
	}
	s.replay(m.WorldChanges)
	s.logger.Debug("Синхронизация мира: применено %d правок", len(m.WorldChanges))
}

func (s *Session) OnChat(m protocol.ChatBroadcast) {
	s.pushChat(m)
	s.logger.Info("💬 %s: %s", m.PlayerName, m.Message)
}

func (s *Session) OnError(m protocol.Error) {
	s.lastError = m.Message
	s.logger.Warn("❌ Сервер: %s", m.Message)
}

func (s *Session) OnDisconnect(err error) {
	s.connected = false
	s.remotes = make(map[string]*RemotePlayer)
	if err != nil {
		s.logger.Warn("🔌 Отключены от сервера: %v", err)
	}
}
