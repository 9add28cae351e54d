package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/annel0/blockverse/internal/cache"
	"github.com/annel0/blockverse/internal/config"
	"github.com/annel0/blockverse/internal/eventbus"
)

const (
	defaultNatsURL = "nats://127.0.0.1:4222"
	timeFormat     = "15:04:05"
)

func main() {
	var (
		natsURL    = flag.String("nats", defaultNatsURL, "адрес NATS с JetStream")
		stream     = flag.String("stream", "BLOCKVERSE_EVENTS", "имя стрима событий")
		command    = flag.String("cmd", "tail", "Команда: tail, rooms")
		eventTypes = flag.String("types", "", "фильтр типов событий (через запятую)")
		sources    = flag.String("sources", "", "фильтр источников (через запятую)")
		limit      = flag.Int("limit", 100, "максимум событий для tail")
		follow     = flag.Bool("follow", false, "не останавливаться по лимиту (как tail -f)")
		redisAddr  = flag.String("redis", "127.0.0.1:6379", "адрес Redis для rooms")
		redisKey   = flag.String("key", "blockverse:rooms", "ключ каталога комнат в Redis")
	)
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch *command {
	case "tail":
		if err := tailEvents(ctx, &TailOptions{
			URL:    *natsURL,
			Stream: *stream,
			Filter: eventbus.Filter{
				Types:   parseStringList(*eventTypes),
				Sources: parseStringList(*sources),
			},
			Limit:  *limit,
			Follow: *follow,
		}); err != nil {
			log.Fatalf("❌ Tail failed: %v", err)
		}

	case "rooms":
		if err := showRooms(ctx, config.DirectoryConfig{RedisAddr: *redisAddr, Key: *redisKey}); err != nil {
			log.Fatalf("❌ Rooms failed: %v", err)
		}

	default:
		fmt.Printf("❌ Unknown command: %s\n", *command)
		fmt.Println("Available commands: tail, rooms")
		os.Exit(1)
	}
}

type TailOptions struct {
	URL    string
	Stream string
	Filter eventbus.Filter
	Limit  int
	Follow bool
}

// tailEvents выводит новые события шины в реальном времени
func tailEvents(ctx context.Context, opts *TailOptions) error {
	bus, err := eventbus.NewJetStreamBus(opts.URL, opts.Stream, 24*time.Hour)
	if err != nil {
		return err
	}
	defer bus.Close()

	fmt.Printf("🎬 Tailing events (limit: %d, follow: %v)\n", opts.Limit, opts.Follow)

	events := make(chan *eventbus.Envelope, 64)
	sub, err := bus.Subscribe(ctx, opts.Filter, func(_ context.Context, ev *eventbus.Envelope) {
		select {
		case events <- ev:
		case <-ctx.Done():
		}
	})
	if err != nil {
		return err
	}
	defer sub.Unsubscribe()

	eventCount := 0
	for {
		select {
		case <-ctx.Done():
			fmt.Printf("\n📊 Total events: %d\n", eventCount)
			return nil
		case ev := <-events:
			printEvent(ev)
			eventCount++
			if !opts.Follow && eventCount >= opts.Limit {
				fmt.Printf("\n📊 Total events: %d\n", eventCount)
				return nil
			}
		}
	}
}

// showRooms выводит каталог комнат из Redis
func showRooms(ctx context.Context, cfg config.DirectoryConfig) error {
	dir, err := cache.NewRedisDirectory(cfg)
	if err != nil {
		return err
	}
	defer dir.Close()

	entries, err := dir.List(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("📋 Rooms: %d\n", len(entries))
	for _, e := range entries {
		fmt.Printf("%s  %-24s %d/%d  host=%s  seed=%d  src=%s  updated=%s\n",
			e.ID, e.Name, e.Players, e.MaxPlayers, e.HostID, e.Seed, e.Source,
			e.UpdatedAt.Local().Format(timeFormat))
	}
	return nil
}

// printEvent выводит событие в читаемом формате
func printEvent(ev *eventbus.Envelope) {
	fmt.Printf("[%s] %s [%s] %s\n",
		ev.Timestamp.Local().Format(timeFormat),
		ev.Source,
		ev.EventType,
		ev.ID)

	// Добавляем детали в зависимости от типа события
	switch ev.EventType {
	case eventbus.RoomCreated, eventbus.RoomUpdated, eventbus.RoomDeleted:
		var re eventbus.RoomEvent
		if err := ev.Decode(&re); err != nil {
			fmt.Printf("  ⚠️ %v\n", err)
			return
		}
		fmt.Printf("  Room: %s %q Players: %d/%d Host: %s\n",
			re.RoomID, re.Name, re.Players, re.MaxPlayers, re.HostID)
	case eventbus.BlockChanged:
		var be eventbus.BlockEvent
		if err := ev.Decode(&be); err != nil {
			fmt.Printf("  ⚠️ %v\n", err)
			return
		}
		fmt.Printf("  Block: (%d,%d,%d) %s type=%d Room: %s Player: %s\n",
			be.X, be.Y, be.Z, be.Action, be.BlockType, be.RoomID, be.PlayerID)
	}
}

// parseStringList парсит строку с разделителями-запятыми
func parseStringList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
