package client

import "sync"

type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Session is the client-side record of who is signed in. It is safe for
// concurrent use and is passed explicitly to every Client.
type Session struct {
	mu    sync.RWMutex
	token string
	user  *User
}

func NewSession() *Session {
	return &Session{}
}

func (s *Session) Set(token string, user User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	s.user = &user
}

func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// User returns a copy of the signed in user, or false when there is none.
func (s *Session) User() (User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return User{}, false
	}
	return *s.user, true
}

func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	s.user = nil
}

func (s *Session) Authenticated() bool {
	return s.Token() != ""
}

func (s *Session) snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := Snapshot{Token: s.token}
	if s.user != nil {
		snap.User = *s.user
	}
	return snap
}

// Restore loads a previously saved session. A store with nothing saved
// leaves the session empty.
func (s *Session) Restore(store SessionStore) error {
	snap, err := store.Load()
	if err != nil {
		return err
	}
	if snap == nil || snap.Token == "" {
		s.Clear()
		return nil
	}
	s.Set(snap.Token, snap.User)
	return nil
}
