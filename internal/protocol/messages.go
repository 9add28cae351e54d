package protocol

// MessageType - значение поля "type" в JSON сообщении
type MessageType string

// Клиент → сервер
const (
	TypeGetRooms         MessageType = "get_rooms"
	TypeCreateRoom       MessageType = "create_room"
	TypeJoinRoom         MessageType = "join_room"
	TypeLeaveRoom        MessageType = "leave_room"
	TypePlayerUpdate     MessageType = "player_update"
	TypeBlockChange      MessageType = "block_change"
	TypeChat             MessageType = "chat"
	TypeRequestWorldSync MessageType = "request_world_sync"
)

// Сервер → клиент (player_update, block_change и chat общие с клиентскими)
const (
	TypeWelcome     MessageType = "welcome"
	TypeRoomList    MessageType = "room_list"
	TypeRoomCreated MessageType = "room_created"
	TypeRoomJoined  MessageType = "room_joined"
	TypePlayerJoin  MessageType = "player_join"
	TypePlayerLeave MessageType = "player_leave"
	TypeWorldSync   MessageType = "world_sync"
	TypeError       MessageType = "error"
)

// ClientMessage - закрытое множество сообщений клиента
type ClientMessage interface {
	Type() MessageType
	clientMessage()
}

// ServerMessage - закрытое множество сообщений сервера
type ServerMessage interface {
	Type() MessageType
	serverMessage()
}

// ---- клиент → сервер ----

type GetRooms struct{}

type CreateRoom struct {
	Name       string `json:"name"`
	MaxPlayers int    `json:"maxPlayers"`
	PlayerName string `json:"playerName,omitempty"`
}

type JoinRoom struct {
	RoomID     string `json:"roomId"`
	PlayerName string `json:"playerName"`
}

type LeaveRoom struct{}

type PlayerUpdate struct {
	Player PlayerState `json:"player"`
}

type BlockChange struct {
	X         int    `json:"x"`
	Y         int    `json:"y"`
	Z         int    `json:"z"`
	BlockType int    `json:"blockType"`
	Action    string `json:"action"`
}

type Chat struct {
	Message string `json:"message"`
}

type RequestWorldSync struct{}

func (GetRooms) Type() MessageType         { return TypeGetRooms }
func (CreateRoom) Type() MessageType       { return TypeCreateRoom }
func (JoinRoom) Type() MessageType         { return TypeJoinRoom }
func (LeaveRoom) Type() MessageType        { return TypeLeaveRoom }
func (PlayerUpdate) Type() MessageType     { return TypePlayerUpdate }
func (BlockChange) Type() MessageType      { return TypeBlockChange }
func (Chat) Type() MessageType             { return TypeChat }
func (RequestWorldSync) Type() MessageType { return TypeRequestWorldSync }

func (GetRooms) clientMessage()         {}
func (CreateRoom) clientMessage()       {}
func (JoinRoom) clientMessage()         {}
func (LeaveRoom) clientMessage()        {}
func (PlayerUpdate) clientMessage()     {}
func (BlockChange) clientMessage()      {}
func (Chat) clientMessage()             {}
func (RequestWorldSync) clientMessage() {}

// ---- сервер → клиент ----

type Welcome struct {
	PlayerID string `json:"playerId"`
}

type RoomList struct {
	Rooms []RoomSummary `json:"rooms"`
}

type RoomCreated struct {
	RoomID string `json:"roomId"`
	Seed   int64  `json:"seed"`
	IsHost bool   `json:"isHost"`
}

type RoomJoined struct {
	RoomID       string              `json:"roomId"`
	Seed         int64               `json:"seed"`
	IsHost       bool                `json:"isHost"`
	Players      []PlayerState       `json:"players"`
	WorldChanges []WorldChangeRecord `json:"worldChanges"`
}

type PlayerJoin struct {
	Player PlayerState `json:"player"`
}

// PlayerLeave: HostID заполняется, если хостом стал другой игрок
type PlayerLeave struct {
	PlayerID string `json:"playerId"`
	HostID   string `json:"hostId,omitempty"`
}

type PlayerUpdateBroadcast struct {
	Player PlayerState `json:"player"`
}

type BlockChangeBroadcast struct {
	X         int    `json:"x"`
	Y         int    `json:"y"`
	Z         int    `json:"z"`
	BlockType int    `json:"blockType"`
	Action    string `json:"action"`
	PlayerID  string `json:"playerId"`
}

type WorldSync struct {
	WorldChanges []WorldChangeRecord `json:"worldChanges"`
}

type ChatBroadcast struct {
	PlayerID   string `json:"playerId"`
	PlayerName string `json:"playerName"`
	Message    string `json:"message"`
}

type Error struct {
	Message string `json:"message"`
}

func (Welcome) Type() MessageType               { return TypeWelcome }
func (RoomList) Type() MessageType              { return TypeRoomList }
func (RoomCreated) Type() MessageType           { return TypeRoomCreated }
func (RoomJoined) Type() MessageType            { return TypeRoomJoined }
func (PlayerJoin) Type() MessageType            { return TypePlayerJoin }
func (PlayerLeave) Type() MessageType           { return TypePlayerLeave }
func (PlayerUpdateBroadcast) Type() MessageType { return TypePlayerUpdate }
func (BlockChangeBroadcast) Type() MessageType  { return TypeBlockChange }
func (WorldSync) Type() MessageType             { return TypeWorldSync }
func (ChatBroadcast) Type() MessageType         { return TypeChat }
func (Error) Type() MessageType                 { return TypeError }

func (Welcome) serverMessage()               {}
func (RoomList) serverMessage()              {}
func (RoomCreated) serverMessage()           {}
func (RoomJoined) serverMessage()            {}
func (PlayerJoin) serverMessage()            {}
func (PlayerLeave) serverMessage()           {}
func (PlayerUpdateBroadcast) serverMessage() {}
func (BlockChangeBroadcast) serverMessage()  {}
func (WorldSync) serverMessage()             {}
func (ChatBroadcast) serverMessage()         {}
func (Error) serverMessage()                 {}

// Record превращает block_change в запись журнала
func (b BlockChange) Record(playerID string, timestamp int64) WorldChangeRecord {
	return WorldChangeRecord{
		X: b.X, Y: b.Y, Z: b.Z,
		BlockType: b.BlockType,
		Action:    b.Action,
		PlayerID:  playerID,
		Timestamp: timestamp,
	}
}

// Broadcast - ретрансляция block_change остальным игрокам комнаты
func (b BlockChange) Broadcast(playerID string) BlockChangeBroadcast {
	return BlockChangeBroadcast{
		X: b.X, Y: b.Y, Z: b.Z,
		BlockType: b.BlockType,
		Action:    b.Action,
		PlayerID:  playerID,
	}
}
