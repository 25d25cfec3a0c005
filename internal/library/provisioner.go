package library

import (
	"context"
	"log"
	"sync"

	"github.com/mrlokans/bookshelf/internal/auth"
	"github.com/mrlokans/bookshelf/internal/watch"
)

// SessionWatcher streams login state changes. auth.Session implements it.
type SessionWatcher interface {
	Watch(ctx context.Context) <-chan auth.SessionState
}

// Provisioner keeps one Service bound to whoever is logged in to a session.
// A new Service is built on login or user switch, and the previous one is
// closed along with its live collections.
type Provisioner struct {
	session SessionWatcher
	build   func(ownerID uint) *Service

	mu    sync.Mutex
	bound *watch.Value[*Service]

	ready     chan struct{}
	readyOnce sync.Once
}

func NewProvisioner(session SessionWatcher, build func(ownerID uint) *Service) *Provisioner {
	return &Provisioner{
		session: session,
		build:   build,
		bound:   watch.NewValue[*Service](nil),
		ready:   make(chan struct{}),
	}
}

// Run follows the session until ctx is done. The bound service is closed on
// return.
func (p *Provisioner) Run(ctx context.Context) {
	defer p.bind(0)

	for state := range p.session.Watch(ctx) {
		p.bind(state.UserID)
	}
}

// Start runs the provisioner in the background and waits until the initial
// session state has been applied.
func (p *Provisioner) Start(ctx context.Context) {
	go p.Run(ctx)
	select {
	case <-p.ready:
	case <-ctx.Done():
	}
}

func (p *Provisioner) bind(ownerID uint) {
	p.mu.Lock()
	defer p.mu.Unlock()
	defer p.readyOnce.Do(func() { close(p.ready) })

	current := p.bound.Get()
	if ownerOf(current) == ownerID {
		return
	}

	if current != nil {
		log.Printf("Releasing library of user %d", current.OwnerID())
		current.Close()
	}
	var next *Service
	if ownerID != 0 {
		next = p.build(ownerID)
	}
	p.bound.Set(next)
}

// Current returns the service bound to the logged in user, or nil when the
// session is anonymous.
func (p *Provisioner) Current() *Service {
	return p.bound.Get()
}

// Wait blocks until the bound service belongs to ownerID and returns it. An
// ownerID of 0 waits for the anonymous state and returns nil.
func (p *Provisioner) Wait(ctx context.Context, ownerID uint) (*Service, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	for svc := range p.bound.Watch(ctx) {
		if ownerOf(svc) == ownerID {
			return svc, nil
		}
	}
	return nil, ctx.Err()
}

func ownerOf(svc *Service) uint {
	if svc == nil {
		return 0
	}
	return svc.OwnerID()
}
