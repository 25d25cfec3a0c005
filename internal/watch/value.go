package watch

import (
	"context"
	"sync"
)

// Value holds a single observable value. Watchers get the current value on
// subscription and then every later one; a slow watcher skips straight to the
// newest value.
type Value[T any] struct {
	mu       sync.Mutex
	current  T
	nextID   uint64
	watchers map[uint64]chan T
}

func NewValue[T any](initial T) *Value[T] {
	return &Value[T]{
		current:  initial,
		watchers: make(map[uint64]chan T),
	}
}

func (v *Value[T]) Get() T {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.current
}

// Set stores value and hands it to every watcher without blocking.
func (v *Value[T]) Set(value T) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.current = value
	for _, ch := range v.watchers {
		select {
		case <-ch:
		default:
		}
		ch <- value
	}
}

// Update applies fn to the current value under the lock and publishes the
// result.
func (v *Value[T]) Update(fn func(T) T) T {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.current = fn(v.current)
	for _, ch := range v.watchers {
		select {
		case <-ch:
		default:
		}
		ch <- v.current
	}
	return v.current
}

// Watch streams the value until ctx is done, then closes the channel.
func (v *Value[T]) Watch(ctx context.Context) <-chan T {
	ch := make(chan T, 1)

	v.mu.Lock()
	v.nextID++
	id := v.nextID
	v.watchers[id] = ch
	ch <- v.current
	v.mu.Unlock()

	go func() {
		<-ctx.Done()
		v.mu.Lock()
		delete(v.watchers, id)
		close(ch)
		v.mu.Unlock()
	}()

	return ch
}
