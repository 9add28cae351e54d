package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrUnknownType - поле type отсутствует или не из известного набора
	ErrUnknownType = errors.New("unknown message type")
	// ErrMalformed - сообщение не является корректным JSON объектом
	ErrMalformed = errors.New("malformed message")
)

// IsProtocolError сообщает, что ошибка относится к разбору сообщения:
// такое сообщение отбрасывается, соединение остаётся открытым.
func IsProtocolError(err error) bool {
	return errors.Is(err, ErrUnknownType) || errors.Is(err, ErrMalformed)
}

// EncodeClient сериализует сообщение клиента в плоский JSON с полем type
func EncodeClient(m ClientMessage) ([]byte, error) {
	return encode(m.Type(), m)
}

// EncodeServer сериализует сообщение сервера в плоский JSON с полем type
func EncodeServer(m ServerMessage) ([]byte, error) {
	return encode(m.Type(), m)
}

func encode(t MessageType, body interface{}) ([]byte, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("ошибка сериализации %s: %w", t, err)
	}

	head, err := json.Marshal(string(t))
	if err != nil {
		return nil, fmt.Errorf("ошибка сериализации типа %s: %w", t, err)
	}

	var buf bytes.Buffer
	buf.Grow(len(payload) + len(head) + 10)
	buf.WriteString(`{"type":`)
	buf.Write(head)
	if len(payload) > 2 { // не пустой объект "{}"
		buf.WriteByte(',')
		buf.Write(payload[1:])
	} else {
		buf.WriteByte('}')
	}
	return buf.Bytes(), nil
}

type envelope struct {
	Type *MessageType `json:"type"`
}

func peekType(data []byte) (MessageType, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if env.Type == nil {
		return "", fmt.Errorf("%w: отсутствует поле type", ErrUnknownType)
	}
	return *env.Type, nil
}

func decodeAs[T any](data []byte) (T, error) {
	var m T
	if err := json.Unmarshal(data, &m); err != nil {
		return m, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return m, nil
}

type clientDecoder func([]byte) (ClientMessage, error)
type serverDecoder func([]byte) (ServerMessage, error)

func client[T ClientMessage]() clientDecoder {
	return func(data []byte) (ClientMessage, error) {
		m, err := decodeAs[T](data)
		if err != nil {
			return nil, err
		}
		return m, nil
	}
}

func server[T ServerMessage]() serverDecoder {
	return func(data []byte) (ServerMessage, error) {
		m, err := decodeAs[T](data)
		if err != nil {
			return nil, err
		}
		return m, nil
	}
}

var clientDecoders = map[MessageType]clientDecoder{
	TypeGetRooms:         client[GetRooms](),
	TypeCreateRoom:       client[CreateRoom](),
	TypeJoinRoom:         client[JoinRoom](),
	TypeLeaveRoom:        client[LeaveRoom](),
	TypePlayerUpdate:     client[PlayerUpdate](),
	TypeBlockChange:      client[BlockChange](),
	TypeChat:             client[Chat](),
	TypeRequestWorldSync: client[RequestWorldSync](),
}

var serverDecoders = map[MessageType]serverDecoder{
	TypeWelcome:      server[Welcome](),
	TypeRoomList:     server[RoomList](),
	TypeRoomCreated:  server[RoomCreated](),
	TypeRoomJoined:   server[RoomJoined](),
	TypePlayerJoin:   server[PlayerJoin](),
	TypePlayerLeave:  server[PlayerLeave](),
	TypePlayerUpdate: server[PlayerUpdateBroadcast](),
	TypeBlockChange:  server[BlockChangeBroadcast](),
	TypeWorldSync:    server[WorldSync](),
	TypeChat:         server[ChatBroadcast](),
	TypeError:        server[Error](),
}

// DecodeClient разбирает сообщение клиента
func DecodeClient(data []byte) (ClientMessage, error) {
	t, err := peekType(data)
	if err != nil {
		return nil, err
	}
	dec, ok := clientDecoders[t]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, t)
	}
	return dec(data)
}

// DecodeServer разбирает сообщение сервера
func DecodeServer(data []byte) (ServerMessage, error) {
	t, err := peekType(data)
	if err != nil {
		return nil, err
	}
	dec, ok := serverDecoders[t]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, t)
	}
	return dec(data)
}
