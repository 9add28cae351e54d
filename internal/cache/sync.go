package cache

import (
	"context"
	"time"

	"github.com/annel0/blockverse/internal/eventbus"
	"github.com/annel0/blockverse/internal/logging"
)

const syncTimeout = 2 * time.Second

// StartDirectorySync подписывается на события комнат и переносит их в
// каталог. Функция неблокирующая.
func StartDirectorySync(ctx context.Context, bus eventbus.EventBus, dir RoomDirectory, logger *logging.Logger) (eventbus.Subscription, error) {
	if logger == nil {
		logger = logging.GetServerLogger()
	}

	filter := eventbus.Filter{Types: []string{eventbus.RoomCreated, eventbus.RoomUpdated, eventbus.RoomDeleted}}
	sub, err := bus.Subscribe(ctx, filter, func(ctx context.Context, ev *eventbus.Envelope) {
		var re eventbus.RoomEvent
		if err := ev.Decode(&re); err != nil {
			logger.Warn("Каталог: %v", err)
			return
		}

		opCtx, cancel := context.WithTimeout(ctx, syncTimeout)
		defer cancel()

		var err error
		if ev.EventType == eventbus.RoomDeleted {
			err = dir.Remove(opCtx, re.RoomID)
		} else {
			err = dir.Put(opCtx, entryFromEvent(re, ev))
		}
		if err != nil {
			logger.Warn("Каталог: событие %s для комнаты %s не применено: %v", ev.EventType, re.RoomID, err)
		}
	})
	if err != nil {
		return nil, err
	}

	logger.Info("🗂️ Синхронизация каталога комнат запущена")
	return sub, nil
}

func entryFromEvent(re eventbus.RoomEvent, ev *eventbus.Envelope) Entry {
	e := Entry{
		Seed:      re.Seed,
		Source:    ev.Source,
		UpdatedAt: ev.Timestamp,
	}
	e.ID = re.RoomID
	e.Name = re.Name
	e.Players = re.Players
	e.MaxPlayers = re.MaxPlayers
	e.HostID = re.HostID
	return e
}
