// Package session generates and carries the identifiers that scope one
// logical conversation with an agent.
package session

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	userIDPrefix     = "user-"
	testUserIDPrefix = "test-user-"
	sessionIDPrefix  = "session-"
)

// Context scopes a logical conversation. It is a value type and is never
// mutated after creation, so it may be shared by concurrent calls.
type Context struct {
	UserID    string    `json:"user_id"`
	SessionID string    `json:"session_id"`
	CreatedAt time.Time `json:"created_at"`
}

// New creates a context with a fresh user id and session id.
func New() Context {
	return NewWithUser(NewUserID())
}

// NewWithUser creates a context for an existing user with a fresh session id.
// An empty userID gets a generated one.
func NewWithUser(userID string) Context {
	if userID == "" {
		userID = NewUserID()
	}
	return Context{
		UserID:    userID,
		SessionID: NewSessionID(),
		CreatedAt: time.Now().UTC(),
	}
}

// NewSessionID returns a session id made of the current unix time and a random suffix.
func NewSessionID() string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	return fmt.Sprintf("%s%d-%s", sessionIDPrefix, time.Now().Unix(), suffix)
}

// NewUserID returns a random user id.
func NewUserID() string {
	return userIDPrefix + uuid.NewString()
}

// NewTestUserID returns a user id marked as belonging to an automated run.
func NewTestUserID() string {
	return testUserIDPrefix + uuid.NewString()
}

// IsTestUser reports whether userID was produced by NewTestUserID.
func IsTestUser(userID string) bool {
	return strings.HasPrefix(userID, testUserIDPrefix)
}

// Valid reports whether both identifiers are present.
func (c Context) Valid() error {
	var errs []error
	if c.UserID == "" {
		errs = append(errs, errors.New("user_id is required"))
	}
	if c.SessionID == "" {
		errs = append(errs, errors.New("session_id is required"))
	}
	return errors.Join(errs...)
}
