package library

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/mrlokans/bookshelf/internal/auth"
	"github.com/mrlokans/bookshelf/internal/config"
)

func setupSession(t *testing.T, f *fixture) *auth.Session {
	t.Helper()
	svc := auth.NewService(f.users, config.Auth{BcryptCost: bcrypt.MinCost})
	return auth.NewSession(svc)
}

func TestProvisioner_FollowsSession(t *testing.T) {
	f := setupFixture(t)
	session := setupSession(t, f)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	prov := NewProvisioner(session, func(ownerID uint) *Service {
		return f.service(ownerID, nil)
	})
	prov.Start(ctx)
	assert.Nil(t, prov.Current())

	anaID, err := session.Register(ctx, "Ana", "ana@x.com", "secret1")
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		svc := prov.Current()
		return svc != nil && svc.OwnerID() == anaID
	}, 2*time.Second, 5*time.Millisecond)

	books := prov.Current().All(ctx)
	assert.Empty(t, receive(t, books))

	session.Logout()
	require.Eventually(t, func() bool { return prov.Current() == nil }, 2*time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool {
		_, ok := <-books
		return !ok
	}, 2*time.Second, 5*time.Millisecond)
}

func TestProvisioner_SwitchingUsersRebinds(t *testing.T) {
	f := setupFixture(t)
	session := setupSession(t, f)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	prov := NewProvisioner(session, func(ownerID uint) *Service {
		return f.service(ownerID, nil)
	})
	prov.Start(ctx)

	anaID, err := session.Register(ctx, "Ana", "ana@x.com", "secret1")
	require.NoError(t, err)
	bobID, err := session.Register(ctx, "Bob", "bob@x.com", "secret2")
	require.NoError(t, err)
	require.NotEqual(t, anaID, bobID)

	require.Eventually(t, func() bool {
		svc := prov.Current()
		return svc != nil && svc.OwnerID() == bobID
	}, 2*time.Second, 5*time.Millisecond)
}

func TestProvisioner_StopsWithContext(t *testing.T) {
	f := setupFixture(t)
	session := setupSession(t, f)
	ctx, cancel := context.WithCancel(context.Background())

	prov := NewProvisioner(session, func(ownerID uint) *Service {
		return f.service(ownerID, nil)
	})
	prov.Start(ctx)
	_, err := session.Register(ctx, "Ana", "ana@x.com", "secret1")
	require.NoError(t, err)
	require.Eventually(t, func() bool { return prov.Current() != nil }, 2*time.Second, 5*time.Millisecond)

	cancel()

	require.Eventually(t, func() bool { return prov.Current() == nil }, 2*time.Second, 5*time.Millisecond)
}

func TestProvisioner_WaitReturnsBoundService(t *testing.T) {
	f := setupFixture(t)
	session := setupSession(t, f)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	prov := NewProvisioner(session, func(ownerID uint) *Service {
		return f.service(ownerID, nil)
	})
	prov.Start(ctx)

	anaID, err := session.Register(ctx, "Ana", "ana@x.com", "secret1")
	require.NoError(t, err)

	svc, err := prov.Wait(ctx, anaID)
	require.NoError(t, err)
	assert.Equal(t, anaID, svc.OwnerID())

	session.Logout()
	svc, err = prov.Wait(ctx, 0)
	require.NoError(t, err)
	assert.Nil(t, svc)
}

func TestProvisioner_WaitHonoursContext(t *testing.T) {
	f := setupFixture(t)
	session := setupSession(t, f)
	prov := NewProvisioner(session, func(ownerID uint) *Service {
		return f.service(ownerID, nil)
	})
	prov.Start(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := prov.Wait(ctx, 42)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
