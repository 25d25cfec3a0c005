package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func nextState(t *testing.T, ch <-chan SessionState) SessionState {
	t.Helper()
	select {
	case state, ok := <-ch:
		require.True(t, ok, "watch channel closed")
		return state
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for session state")
	}
	return SessionState{}
}

func TestSession_StartsAnonymous(t *testing.T) {
	session := NewSession(setupService(t))

	assert.False(t, session.IsAuthenticated())
	assert.Zero(t, session.UserID())
	assert.Nil(t, session.User())
}

func TestSession_RegisterLoginLogout(t *testing.T) {
	session := NewSession(setupService(t))
	ctx := context.Background()

	registeredID, err := session.Register(ctx, "Ana", "ana@x.com", "secret1")
	require.NoError(t, err)
	assert.True(t, session.IsAuthenticated())
	assert.Equal(t, registeredID, session.UserID())
	assert.Equal(t, "Ana", session.User().Name)

	session.Logout()
	assert.False(t, session.IsAuthenticated())
	assert.Nil(t, session.User())

	loggedInID, err := session.Login(ctx, "ana@x.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, registeredID, loggedInID)
	assert.Equal(t, registeredID, session.UserID())
}

func TestSession_FailedLoginKeepsState(t *testing.T) {
	session := NewSession(setupService(t))
	ctx := context.Background()

	id, err := session.Register(ctx, "Ana", "ana@x.com", "secret1")
	require.NoError(t, err)

	_, err = session.Login(ctx, "ana@x.com", "wrong-password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	assert.Equal(t, id, session.UserID())

	session.Logout()
	_, err = session.Login(ctx, "nobody@x.com", "secret1")
	assert.ErrorIs(t, err, ErrUserNotFound)
	assert.False(t, session.IsAuthenticated())
}

func TestSession_DuplicateRegistrationStaysAnonymous(t *testing.T) {
	svc := setupService(t)
	_, err := svc.Register(context.Background(), "Ana", "ana@x.com", "secret1")
	require.NoError(t, err)

	session := NewSession(svc)
	_, err = session.Register(context.Background(), "Ana", "ana@x.com", "secret1")

	assert.ErrorIs(t, err, ErrDuplicateEmail)
	assert.False(t, session.IsAuthenticated())
}

func TestSession_Watch(t *testing.T) {
	session := NewSession(setupService(t))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	states := session.Watch(ctx)
	assert.False(t, nextState(t, states).Authenticated())

	id, err := session.Register(context.Background(), "Ana", "ana@x.com", "secret1")
	require.NoError(t, err)
	state := nextState(t, states)
	assert.True(t, state.Authenticated())
	assert.Equal(t, id, state.UserID)

	session.Logout()
	assert.False(t, nextState(t, states).Authenticated())
}

func TestSession_Watch_CoalescesToLatest(t *testing.T) {
	session := NewSession(setupService(t))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	states := session.Watch(ctx)
	_, err := session.Register(context.Background(), "Ana", "ana@x.com", "secret1")
	require.NoError(t, err)
	session.Logout()

	// The unread initial state and the login were both replaced
	assert.False(t, nextState(t, states).Authenticated())
	select {
	case <-states:
		t.Fatal("expected a single pending state")
	default:
	}
}

func TestSession_Watch_ClosesOnCancel(t *testing.T) {
	session := NewSession(setupService(t))
	ctx, cancel := context.WithCancel(context.Background())

	states := session.Watch(ctx)
	nextState(t, states)
	cancel()

	require.Eventually(t, func() bool {
		_, ok := <-states
		return !ok
	}, 2*time.Second, 10*time.Millisecond)

	// Transitions after the watcher left must not block or panic
	session.Logout()
}
