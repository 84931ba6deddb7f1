package chat

import "time"

// Session is one continuous tutoring conversation bound to a user and a module.
// The module id is fixed at creation and never changes afterwards.
type Session struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	ModuleID  string    `json:"module_id"`
	CreatedAt time.Time `json:"created_at"`
}
