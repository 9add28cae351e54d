package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/annel0/blockverse/internal/client"
	"github.com/annel0/blockverse/internal/config"
	"github.com/annel0/blockverse/internal/game"
	"github.com/annel0/blockverse/internal/protocol"
	"github.com/annel0/blockverse/internal/storage"
	"github.com/annel0/blockverse/internal/vec"
	"github.com/annel0/blockverse/internal/world"
)

const frameRate = 30

func main() {
	var (
		url        = flag.String("url", "ws://127.0.0.1:8080/ws", "адрес сервера (ws://, wss://, kcp://)")
		roomID     = flag.String("room", "", "id комнаты; пусто, чтобы создать новую")
		roomName   = flag.String("room-name", "Комната бота", "имя создаваемой комнаты")
		maxPlayers = flag.Int("max-players", 4, "лимит игроков создаваемой комнаты")
		name       = flag.String("name", "Бот", "имя игрока")
		actions    = flag.Int("actions", 10, "сколько блоков поставить и сломать")
		duration   = flag.Duration("duration", 20*time.Second, "сколько работать")
		radius     = flag.Float64("radius", 6, "радиус круга, по которому ходит бот")
		configPath = flag.String("config", "", "YAML конфигурация (секции client и world)")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Printf("❌ Ошибка загрузки конфигурации: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *duration)
	defer cancel()
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	agent := client.NewAgent(client.OptionsFrom(cfg.Client))
	if err := agent.Connect(ctx, *url); err != nil {
		fmt.Printf("❌ Ошибка подключения: %v\n", err)
		os.Exit(1)
	}
	defer agent.Close()
	fmt.Printf("✅ Подключен к серверу %s\n", *url)

	opts := game.OptionsFrom(cfg.World)
	opts.NewStore = func() (world.ChunkStore, error) { return storage.NewChunkArena() }
	session := game.NewSession(agent, opts)
	defer session.Close()

	if *roomID == "" {
		err = agent.CreateRoom(*roomName, *maxPlayers, *name)
	} else {
		err = agent.JoinRoom(*roomID, *name)
	}
	if err != nil {
		fmt.Printf("❌ Ошибка входа в комнату: %v\n", err)
		os.Exit(1)
	}

	b := &bot{session: session, agent: agent, radius: *radius, left: *actions}
	if err := b.run(ctx); err != nil && !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, context.Canceled) {
		fmt.Printf("❌ %v\n", err)
	}
	b.report()
}

type bot struct {
	session *game.Session
	agent   *client.Agent
	radius  float64
	left    int

	center      vec.Vec3Float
	placed      int
	broken      int
	sent        int
	frames      int
	lastMessage int
}

func (b *bot) run(ctx context.Context) error {
	ticker := time.NewTicker(time.Second / frameRate)
	defer ticker.Stop()

	start := time.Now()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			b.frames++
			b.session.Frame(now)

			if !b.session.Connected() && b.frames > frameRate {
				return fmt.Errorf("соединение с сервером потеряно")
			}
			if msg := b.session.LastError(); msg != "" && b.lastMessage == 0 {
				b.lastMessage = b.frames
				fmt.Printf("⚠️ Сервер ответил ошибкой: %s\n", msg)
			}
			if b.session.World() == nil {
				continue
			}
			if b.center == (vec.Vec3Float{}) {
				b.center = b.session.Self().Position
				fmt.Printf("🌍 Комната %s, точка появления %+v\n", b.session.RoomID(), b.center)
				_ = b.agent.SendChat("Привет! Я бот, построю пару блоков")
			}

			b.walk(now.Sub(start).Seconds())
			if b.left > 0 && b.frames%frameRate == 0 {
				b.act()
			}
		}
	}
}

// walk ведёт бота по кругу вокруг точки появления
func (b *bot) walk(t float64) {
	angle := t * 0.5
	pos := vec.Vec3Float{
		X: b.center.X + b.radius*math.Cos(angle),
		Y: b.center.Y + 4,
		Z: b.center.Z + b.radius*math.Sin(angle),
	}
	for i := 0; i < 8 && !b.session.CanOccupy(pos); i++ {
		pos.Y++
	}
	rot := protocol.Rotation{Yaw: angle + math.Pi/2, Pitch: -math.Pi / 2}
	if ok, err := b.session.Move(pos, rot, vec.Vec3Float{}, true); err == nil && ok {
		b.sent++
	}
}

// act ломает блок под ботом и ставит на его место кирпич
func (b *bot) act() {
	self := b.session.Self().Position
	down := vec.Vec3Float{Y: -1}

	if p, err := b.session.BreakBlock(self, down); err == nil {
		b.broken++
		fmt.Printf("⛏️  Сломан блок %v\n", p)
	}
	if p, err := b.session.PlaceBlock(self, down, world.Brick); err == nil {
		b.placed++
		fmt.Printf("🧱 Поставлен блок %v\n", p)
	} else if !errors.Is(err, game.ErrNothingTargeted) {
		fmt.Printf("⚠️ Не удалось поставить блок: %v\n", err)
	}
	b.left--
}

func (b *bot) report() {
	stats := b.session.Meshes().Stats()

	fmt.Println("\n=== ИТОГИ ===")
	fmt.Printf("Кадров: %d, обновлений позиции отправлено: %d\n", b.frames, b.sent)
	fmt.Printf("Сломано блоков: %d, поставлено: %d\n", b.broken, b.placed)
	fmt.Printf("Игроков рядом: %d, сообщений в чате: %d\n", b.session.RemoteCount(), len(b.session.Chat()))
	if w := b.session.World(); w != nil {
		fmt.Printf("Чанков в памяти: %d\n", w.ChunkCount())
	}
	fmt.Printf("Мешей: %d, квадов: %d, вершин: %d, треугольников: %d\n",
		stats.Meshes, stats.Quads, stats.Vertices, stats.Triangles)
}
