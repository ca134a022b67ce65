package room

import "errors"

var (
	ErrRoomNotFound       = errors.New("room not found")
	ErrRoomFull           = errors.New("room is full")
	ErrRoomAlreadyStarted = errors.New("room has already started")
	ErrRoomFinished       = errors.New("game in this room has finished")
	ErrNotRoomOwner       = errors.New("only the room owner can start the game")
	ErrRoomClosed         = errors.New("room is closed")
	ErrInternal           = errors.New("internal room error")
)
