package library

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/mrlokans/bookshelf/internal/entities"
	"github.com/mrlokans/bookshelf/internal/watch"
)

// Searcher looks a book up by ISBN. Service implements it.
type Searcher interface {
	SearchByISBN(ctx context.Context, isbn string) (*entities.Book, bool)
}

// SearchState is the content of a SearchSlot. Result is nil while nothing has
// been found.
type SearchState struct {
	ISBN      string         `json:"isbn,omitempty"`
	Result    *entities.Book `json:"result,omitempty"`
	Searching bool           `json:"searching"`
	Message   string         `json:"message,omitempty"`
}

// SearchSlot holds the outcome of the latest ISBN search. Starting a new
// search or clearing the slot cancels the lookup in flight, and a result that
// arrives for a superseded request is dropped.
type SearchSlot struct {
	searcher Searcher
	state    *watch.Value[SearchState]

	mu         sync.Mutex
	generation uint64
	cancel     context.CancelFunc
}

func NewSearchSlot(searcher Searcher) *SearchSlot {
	return &SearchSlot{
		searcher: searcher,
		state:    watch.NewValue(SearchState{}),
	}
}

// Search starts a lookup in the background and returns immediately.
func (s *SearchSlot) Search(ctx context.Context, isbn string) {
	isbn = strings.TrimSpace(isbn)

	s.mu.Lock()
	defer s.mu.Unlock()

	gen := s.supersede()
	if isbn == "" {
		s.state.Set(SearchState{Message: "Enter an ISBN to search"})
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.state.Set(SearchState{ISBN: isbn, Searching: true})

	go func() {
		defer cancel()
		book, found := s.searcher.SearchByISBN(ctx, isbn)
		s.finish(gen, isbn, book, found)
	}()
}

func (s *SearchSlot) finish(gen uint64, isbn string, book *entities.Book, found bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.generation {
		return
	}
	s.cancel = nil

	if !found {
		s.state.Set(SearchState{ISBN: isbn, Message: fmt.Sprintf("No book found for ISBN %s", isbn)})
		return
	}
	s.state.Set(SearchState{ISBN: isbn, Result: book})
}

// Clear cancels any lookup in flight and empties the slot.
func (s *SearchSlot) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.supersede()
	s.state.Set(SearchState{})
}

// supersede invalidates the current request. Callers hold s.mu.
func (s *SearchSlot) supersede() uint64 {
	s.generation++
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	return s.generation
}

func (s *SearchSlot) State() SearchState {
	return s.state.Get()
}

// Watch streams slot states until ctx is done.
func (s *SearchSlot) Watch(ctx context.Context) <-chan SearchState {
	return s.state.Watch(ctx)
}
