package storage

import (
	"errors"
	"fmt"
	"sync"

	"github.com/annel0/blockverse/internal/world"
	"github.com/dgraph-io/badger/v3"
	"github.com/klauspost/compress/zstd"
)

// ChunkArena хранит выгруженные изменённые чанки в BadgerDB в режиме
// in-memory. На диск ничего не пишется: правки живут до конца сессии.
type ChunkArena struct {
	db           *badger.DB
	compressor   *zstd.Encoder
	decompressor *zstd.Decoder
	mutex        sync.RWMutex
	isReady      bool
}

var _ world.ChunkStore = (*ChunkArena)(nil)

// NewChunkArena открывает in-memory BadgerDB
func NewChunkArena() (*ChunkArena, error) {
	opts := badger.DefaultOptions("").WithInMemory(true)
	opts.Logger = nil // Отключаем логирование BadgerDB

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("не удалось открыть BadgerDB: %w", err)
	}

	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("не удалось создать zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		enc.Close()
		db.Close()
		return nil, fmt.Errorf("не удалось создать zstd decoder: %w", err)
	}

	return &ChunkArena{
		db:           db,
		compressor:   enc,
		decompressor: dec,
		isReady:      true,
	}, nil
}

func chunkKey(key world.ChunkKey) []byte {
	return []byte(fmt.Sprintf("chunk:%d:%d:%d", key.X, key.Y, key.Z))
}

// Put сжимает блоки чанка и кладёт их под ключом координат
func (a *ChunkArena) Put(key world.ChunkKey, data world.ChunkData) error {
	a.mutex.RLock()
	defer a.mutex.RUnlock()
	if !a.isReady {
		return errors.New("хранилище чанков закрыто")
	}

	if len(data.Blocks) != world.ChunkVolume {
		return fmt.Errorf("неверный размер чанка %v: %d", key, len(data.Blocks))
	}

	// id блоков помещаются в байт
	raw := make([]byte, len(data.Blocks))
	for i, id := range data.Blocks {
		raw[i] = byte(id)
	}
	packed := a.compressor.EncodeAll(raw, nil)

	return a.db.Update(func(txn *badger.Txn) error {
		return txn.Set(chunkKey(key), packed)
	})
}

// Take достаёт чанк и удаляет его из хранилища
func (a *ChunkArena) Take(key world.ChunkKey) (world.ChunkData, bool, error) {
	a.mutex.RLock()
	defer a.mutex.RUnlock()
	if !a.isReady {
		return world.ChunkData{}, false, errors.New("хранилище чанков закрыто")
	}

	var packed []byte
	err := a.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(chunkKey(key))
		if err != nil {
			return err
		}
		packed, err = item.ValueCopy(nil)
		if err != nil {
			return err
		}
		return txn.Delete(chunkKey(key))
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return world.ChunkData{}, false, nil
	}
	if err != nil {
		return world.ChunkData{}, false, fmt.Errorf("ошибка чтения чанка %v: %w", key, err)
	}

	raw, err := a.decompressor.DecodeAll(packed, nil)
	if err != nil {
		return world.ChunkData{}, false, fmt.Errorf("ошибка распаковки чанка %v: %w", key, err)
	}

	data := world.ChunkData{X: key.X, Y: key.Y, Z: key.Z, Blocks: make([]int, len(raw))}
	for i, b := range raw {
		data.Blocks[i] = int(b)
	}
	return data, true, nil
}

// Len возвращает число отложенных чанков
func (a *ChunkArena) Len() int {
	a.mutex.RLock()
	defer a.mutex.RUnlock()
	if !a.isReady {
		return 0
	}

	count := 0
	_ = a.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			count++
		}
		return nil
	})
	return count
}

// Close закрывает хранилище
func (a *ChunkArena) Close() error {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	if !a.isReady {
		return nil
	}
	a.isReady = false
	a.compressor.Close()
	a.decompressor.Close()
	return a.db.Close()
}
