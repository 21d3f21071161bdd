package domain

import "github.com/google/uuid"

type Account struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Session is the identity of one interaction. It replaces the ambient current-user slot and is
// passed explicitly to every operation that can end it. A Session is not safe for concurrent use.
type Session struct {
	Id       uuid.UUID
	username string
}

func NewSession() *Session {
	return &Session{Id: uuid.New()}
}

func (s *Session) Login(username string) {
	s.username = username
}

func (s *Session) Logout() {
	s.username = ""
}

func (s *Session) CurrentUser() string {
	if s == nil {
		return ""
	}
	return s.username
}

func (s *Session) IsLoggedIn() bool {
	return s.CurrentUser() != ""
}

// Is reports whether the session is authenticated as username.
func (s *Session) Is(username string) bool {
	return s.IsLoggedIn() && s.username == username
}
