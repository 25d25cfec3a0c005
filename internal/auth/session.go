package auth

import (
	"context"

	"github.com/mrlokans/bookshelf/internal/entities"
	"github.com/mrlokans/bookshelf/internal/watch"
)

// SessionState is a snapshot of who is logged in. The zero value is the
// anonymous state.
type SessionState struct {
	UserID uint
	User   *entities.User
}

// Authenticated reports whether the state carries a user.
func (s SessionState) Authenticated() bool {
	return s.UserID != 0
}

// Session is the in-process login state of one interactive client. It moves
// between anonymous and authenticated on Register, Login and Logout, and
// publishes every transition to its watchers.
type Session struct {
	service *Service
	state   *watch.Value[SessionState]
}

func NewSession(service *Service) *Session {
	return &Session{
		service: service,
		state:   watch.NewValue(SessionState{}),
	}
}

// Register creates the account and logs it in.
func (s *Session) Register(ctx context.Context, name, email, password string) (uint, error) {
	user, err := s.service.Register(ctx, name, email, password)
	if err != nil {
		return 0, err
	}
	s.state.Set(SessionState{UserID: user.ID, User: user})
	return user.ID, nil
}

// Login checks the credentials and switches the session to that user. A
// failed attempt leaves the current state untouched.
func (s *Session) Login(ctx context.Context, email, password string) (uint, error) {
	user, err := s.service.Authenticate(ctx, email, password)
	if err != nil {
		return 0, err
	}
	s.state.Set(SessionState{UserID: user.ID, User: user})
	return user.ID, nil
}

// Logout returns the session to anonymous.
func (s *Session) Logout() {
	s.state.Set(SessionState{})
}

func (s *Session) State() SessionState {
	return s.state.Get()
}

// UserID returns the current user id, or 0 when anonymous.
func (s *Session) UserID() uint {
	return s.State().UserID
}

func (s *Session) User() *entities.User {
	return s.State().User
}

func (s *Session) IsAuthenticated() bool {
	return s.State().Authenticated()
}

// Watch delivers the current state immediately and then every transition
// until ctx is done, when the channel is closed. A slow reader only sees the
// latest state.
func (s *Session) Watch(ctx context.Context) <-chan SessionState {
	return s.state.Watch(ctx)
}
