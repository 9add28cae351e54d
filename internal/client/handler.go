package client

import "github.com/annel0/blockverse/internal/protocol"

// Handler получает входящие сообщения сервера. Все методы вызываются из
// Pump, то есть в горутине, которая его крутит.
type Handler interface {
	OnWelcome(protocol.Welcome)
	OnRoomList(protocol.RoomList)
	OnRoomCreated(protocol.RoomCreated)
	OnRoomJoined(protocol.RoomJoined)
	OnPlayerJoin(protocol.PlayerJoin)
	OnPlayerLeave(protocol.PlayerLeave)
	OnPlayerUpdate(protocol.PlayerUpdateBroadcast)
	OnBlockChange(protocol.BlockChangeBroadcast)
	OnWorldSync(protocol.WorldSync)
	OnChat(protocol.ChatBroadcast)
	OnError(protocol.Error)
	// OnDisconnect вызывается один раз на соединение; err == nil при Close
	OnDisconnect(err error)
}

// NopHandler ничего не делает; встраивается, чтобы реализовать только
// нужные методы.
type NopHandler struct{}

func (NopHandler) OnWelcome(protocol.Welcome)                    {}
func (NopHandler) OnRoomList(protocol.RoomList)                  {}
func (NopHandler) OnRoomCreated(protocol.RoomCreated)            {}
func (NopHandler) OnRoomJoined(protocol.RoomJoined)              {}
func (NopHandler) OnPlayerJoin(protocol.PlayerJoin)              {}
func (NopHandler) OnPlayerLeave(protocol.PlayerLeave)            {}
func (NopHandler) OnPlayerUpdate(protocol.PlayerUpdateBroadcast) {}
func (NopHandler) OnBlockChange(protocol.BlockChangeBroadcast)   {}
func (NopHandler) OnWorldSync(protocol.WorldSync)                {}
func (NopHandler) OnChat(protocol.ChatBroadcast)                 {}
func (NopHandler) OnError(protocol.Error)                        {}
func (NopHandler) OnDisconnect(error)                            {}

// Dispatch передаёт сообщение ровно одному методу h
func Dispatch(h Handler, msg protocol.ServerMessage) {
	switch m := msg.(type) {
	case protocol.Welcome:
		h.OnWelcome(m)
	case protocol.RoomList:
		h.OnRoomList(m)
	case protocol.RoomCreated:
		h.OnRoomCreated(m)
	case protocol.RoomJoined:
		h.OnRoomJoined(m)
	case protocol.PlayerJoin:
		h.OnPlayerJoin(m)
	case protocol.PlayerLeave:
		h.OnPlayerLeave(m)
	case protocol.PlayerUpdateBroadcast:
		h.OnPlayerUpdate(m)
	case protocol.BlockChangeBroadcast:
		h.OnBlockChange(m)
	case protocol.WorldSync:
		h.OnWorldSync(m)
	case protocol.ChatBroadcast:
		h.OnChat(m)
	case protocol.Error:
		h.OnError(m)
	}
}
