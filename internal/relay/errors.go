package relay

import "errors"

// The only two user-facing failures. Their text is surfaced verbatim in
// the acknowledgment payload, so it is phrased for end users.
var (
	ErrNameTaken  = errors.New("Username already taken. Please choose another one.")
	ErrRoomExists = errors.New("Room name already taken. Please choose another one.")
)
