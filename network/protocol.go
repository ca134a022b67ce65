package network

import (
	"encoding/binary"
	"errors"
	"io"
	"math"
)

// ErrPayloadTooLarge is returned when a payload does not fit the frame's
// 16-bit length field.
var ErrPayloadTooLarge = errors.New("payload exceeds frame capacity")

// Message identifiers exchanged with clients. The vocabulary is fixed;
// payloads are JSON.
const (
	MsgTypeHeartbeat uint16 = 1
	MsgTypeAuth      uint16 = 2
	MsgTypeAuthOK    uint16 = 3

	MsgTypeRoomJoin   uint16 = 101
	MsgTypeRoomLeave  uint16 = 102
	MsgTypeRoomUpdate uint16 = 103

	MsgTypeGameStart  uint16 = 201
	MsgTypeGameAction uint16 = 202
	MsgTypeDiceRoll   uint16 = 203
	MsgTypeGameState  uint16 = 204
	MsgTypeGameWinner uint16 = 205

	MsgTypeError uint16 = 401
)

// Packet is one framed message: 2 bytes message ID, 2 bytes payload length,
// then the payload.
type Packet struct {
	MsgID  uint16
	Data   []byte
	Length uint16
}

// EncodePacket frames a message for the wire.
func EncodePacket(msgID uint16, data []byte) ([]byte, error) {
	if len(data) > math.MaxUint16 {
		return nil, ErrPayloadTooLarge
	}
	packet := make([]byte, 4+len(data))
	binary.BigEndian.PutUint16(packet[0:2], msgID)
	binary.BigEndian.PutUint16(packet[2:4], uint16(len(data)))
	copy(packet[4:], data)
	return packet, nil
}

// DecodePacket parses a framed message received from the wire.
func DecodePacket(raw []byte) (*Packet, error) {
	if len(raw) < 4 {
		return nil, io.ErrShortBuffer
	}

	msgID := binary.BigEndian.Uint16(raw[0:2])
	length := binary.BigEndian.Uint16(raw[2:4])

	if len(raw) < int(4+length) {
		return nil, io.ErrShortBuffer
	}

	return &Packet{
		MsgID:  msgID,
		Length: length,
		Data:   raw[4 : 4+length],
	}, nil
}
