package chat

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"

	"github.com/praxislabs/praxis/backend/internal/model/chat"
)

var (
	ErrModuleRequired  = errors.New("module id is required")
	ErrSessionNotFound = errors.New("session not found")
	ErrUserNotFound    = errors.New("user not found")
)

// Service encapsulates conversation persistence on top of SQLite. All writes
// are single-row and fully visible to the next read once the method returns.
type Service struct {
	db *sql.DB
}

// NewService wraps an opened database. The schema must already exist.
func NewService(db *sql.DB) *Service {
	return &Service{db: db}
}

// CreateUser inserts a new user record. If another request registered the
// same email first, the existing row wins and is returned instead.
func (s *Service) CreateUser(ctx context.Context, name, email string) (chat.User, error) {
	user := chat.User{
		ID:        uuid.NewString(),
		Name:      name,
		Email:     email,
		CreatedAt: time.Now().UTC(),
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, name, email, created_at) VALUES (?, ?, ?, ?)`,
		user.ID, user.Name, user.Email, user.CreatedAt,
	)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			return s.FindUserByEmail(ctx, email)
		}
		return chat.User{}, fmt.Errorf("insert user: %w", err)
	}

	return user, nil
}

// FindUserByEmail looks a user up by its unique email address.
func (s *Service) FindUserByEmail(ctx context.Context, email string) (chat.User, error) {
	var user chat.User
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, email, created_at FROM users WHERE email = ?`, email,
	).Scan(&user.ID, &user.Name, &user.Email, &user.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return chat.User{}, ErrUserNotFound
	}
	if err != nil {
		return chat.User{}, fmt.Errorf("select user by email: %w", err)
	}
	return user, nil
}

// CreateSession provisions a session bound to a user and a module. The module
// id is accepted as-is; unknown values fall back to the default system
// instruction at generation time.
func (s *Service) CreateSession(ctx context.Context, userID, moduleID string) (chat.Session, error) {
	if moduleID == "" {
		return chat.Session{}, ErrModuleRequired
	}

	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM users WHERE id = ?)`, userID,
	).Scan(&exists)
	if err != nil {
		return chat.Session{}, fmt.Errorf("check user: %w", err)
	}
	if !exists {
		return chat.Session{}, ErrUserNotFound
	}

	session := chat.Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		ModuleID:  moduleID,
		CreatedAt: time.Now().UTC(),
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, user_id, module_id, created_at) VALUES (?, ?, ?, ?)`,
		session.ID, session.UserID, session.ModuleID, session.CreatedAt,
	)
	if err != nil {
		return chat.Session{}, fmt.Errorf("insert session: %w", err)
	}

	return session, nil
}

// GetSession retrieves a session by identifier.
func (s *Service) GetSession(ctx context.Context, sessionID string) (chat.Session, error) {
	var session chat.Session
	err := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, module_id, created_at FROM sessions WHERE id = ?`, sessionID,
	).Scan(&session.ID, &session.UserID, &session.ModuleID, &session.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return chat.Session{}, ErrSessionNotFound
	}
	if err != nil {
		return chat.Session{}, fmt.Errorf("select session: %w", err)
	}
	return session, nil
}

// SaveMessage appends a message to the session history and returns the stored
// row with its id and timestamp filled in.
func (s *Service) SaveMessage(ctx context.Context, message chat.Message) (chat.Message, error) {
	return s.saveMessage(ctx, s.db, message)
}

// SaveMessageDetached appends a message on a connection acquired independently
// of the calling request. The exchange handler uses it after the response
// stream has ended, when the request context may already be cancelled.
func (s *Service) SaveMessageDetached(ctx context.Context, message chat.Message) (chat.Message, error) {
	ctx = context.WithoutCancel(ctx)

	conn, err := s.db.Conn(ctx)
	if err != nil {
		return chat.Message{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Close()

	return s.saveMessage(ctx, conn, message)
}

type execQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Service) saveMessage(ctx context.Context, db execQuerier, message chat.Message) (chat.Message, error) {
	if message.SessionID == "" {
		return chat.Message{}, ErrSessionNotFound
	}

	var exists bool
	err := db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM sessions WHERE id = ?)`, message.SessionID,
	).Scan(&exists)
	if err != nil {
		return chat.Message{}, fmt.Errorf("check session: %w", err)
	}
	if !exists {
		return chat.Message{}, ErrSessionNotFound
	}

	message.ID = uuid.NewString()
	if message.CreatedAt.IsZero() {
		message.CreatedAt = time.Now().UTC()
	}

	_, err = db.ExecContext(ctx,
		`INSERT INTO messages (id, session_id, role, content, created_at) VALUES (?, ?, ?, ?, ?)`,
		message.ID, message.SessionID, message.Role, message.Content, message.CreatedAt,
	)
	if err != nil {
		return chat.Message{}, fmt.Errorf("insert message: %w", err)
	}

	return message, nil
}

// LoadTranscript returns the full message history for a session, oldest first.
// A session with no messages yields an empty slice, not ErrSessionNotFound.
func (s *Service) LoadTranscript(ctx context.Context, sessionID string) ([]chat.Message, error) {
	if _, err := s.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, role, content, created_at
		   FROM messages WHERE session_id = ?
		  ORDER BY created_at, seq`, sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("select messages: %w", err)
	}
	defer rows.Close()

	messages := make([]chat.Message, 0, 16)
	for rows.Next() {
		var m chat.Message
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}

	return messages, nil
}
