package world

import "strings"

// BlockType - идентификатор типа блока. Значения совпадают с id в протоколе
// и в сериализованных чанках, менять порядок нельзя.
type BlockType uint8

const (
	Air BlockType = iota
	Grass
	Dirt
	Stone
	Wood
	Leaves
	Sand
	Water
	Glass
	Brick
	Cobblestone
	Planks
	Bedrock

	blockTypeCount
)

var blockNames = [...]string{
	Air:         "air",
	Grass:       "grass",
	Dirt:        "dirt",
	Stone:       "stone",
	Wood:        "wood",
	Leaves:      "leaves",
	Sand:        "sand",
	Water:       "water",
	Glass:       "glass",
	Brick:       "brick",
	Cobblestone: "cobblestone",
	Planks:      "planks",
	Bedrock:     "bedrock",
}

// Valid сообщает, известен ли тип блока
func (b BlockType) Valid() bool {
	return b < blockTypeCount
}

func (b BlockType) String() string {
	if !b.Valid() {
		return "unknown"
	}
	return blockNames[b]
}

// IsSolid - блок останавливает луч (всё кроме воздуха и воды)
func (b BlockType) IsSolid() bool {
	return b != Air && b != Water
}

// IsTransparent - сквозь блок видны грани соседей
func (b BlockType) IsTransparent() bool {
	switch b {
	case Air, Water, Glass, Leaves:
		return true
	default:
		return false
	}
}

// ParseBlockType ищет тип по имени без учёта регистра
func ParseBlockType(name string) (BlockType, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for i, n := range blockNames {
		if n == name {
			return BlockType(i), true
		}
	}
	return Air, false
}

// BlockTypeFromID переводит id из протокола; неизвестные id дают false
func BlockTypeFromID(id int) (BlockType, bool) {
	if id < 0 || id >= int(blockTypeCount) {
		return Air, false
	}
	return BlockType(id), true
}
