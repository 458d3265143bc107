package session

import (
	"time"

	"github.com/votecast/backend/internal/connid"
)

// State is the lifecycle position of a connection.
type State int

const (
	Connected State = iota // unauthorized
	Authorized
	Disconnected // terminal
)

func (s State) String() string {
	switch s {
	case Connected:
		return "connected"
	case Authorized:
		return "authorized"
	case Disconnected:
		return "disconnected"
	}
	return "unknown"
}

// Session describes one live connection.
type Session struct {
	ID          connid.ID `json:"id"`
	RemoteAddr  string    `json:"remoteAddr,omitempty"`
	ConnectedAt time.Time `json:"connectedAt"`
	Authorized  bool      `json:"authorized"`
}

func (s Session) State() State {
	if s.Authorized {
		return Authorized
	}
	return Connected
}
