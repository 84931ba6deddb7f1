package chat

import "time"

// Roles a message can carry. Immutable once written.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message persists a single turn of a session. Ordering within a session is
// by CreatedAt with the insertion sequence as tiebreak.
type Message struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"timestamp"`
}
