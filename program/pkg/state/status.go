package state

import (
	"fmt"
)

// RoomStatus is the lifecycle state of a room, encoded as a u8 tag.
type RoomStatus uint8

const (
	RoomStatusOpen RoomStatus = iota
	RoomStatusInProgress
	RoomStatusResolved
	RoomStatusCancelled
)

func (s RoomStatus) String() string {
	switch s {
	case RoomStatusOpen:
		return "open"
	case RoomStatusInProgress:
		return "in_progress"
	case RoomStatusResolved:
		return "resolved"
	case RoomStatusCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(s))
	}
}

// Active reports whether the room still accepts deposits, joins and claims.
func (s RoomStatus) Active() bool {
	switch s {
	case RoomStatusOpen, RoomStatusInProgress:
		return true
	case RoomStatusResolved, RoomStatusCancelled:
		return false
	default:
		return false
	}
}

func (s RoomStatus) Valid() bool {
	return s <= RoomStatusCancelled
}

func (s RoomStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *RoomStatus) UnmarshalText(b []byte) error {
	for c := RoomStatusOpen; c <= RoomStatusCancelled; c++ {
		if c.String() == string(b) {
			*s = c
			return nil
		}
	}
	return fmt.Errorf("unknown room status %q", string(b))
}
