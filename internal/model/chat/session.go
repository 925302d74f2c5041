package chat

import (
	"time"

	"github.com/google/uuid"
)

// Session identifies the single conversation a widget process holds.
type Session struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
}

// NewSession returns a session with the given id, or a random one when id is empty.
func NewSession(id string) Session {
	if id == "" {
		id = uuid.NewString()
	}
	return Session{ID: id, CreatedAt: time.Now().UTC()}
}
