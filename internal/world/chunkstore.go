package world

// ChunkStore - место, куда World откладывает изменённые чанки при выгрузке.
// Take забирает чанк: после успешного Take ключ в хранилище отсутствует.
type ChunkStore interface {
	Put(key ChunkKey, data ChunkData) error
	Take(key ChunkKey) (ChunkData, bool, error)
	Close() error
}
