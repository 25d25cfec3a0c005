package library

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/bookshelf/internal/entities"
)

// gatedSearcher blocks each lookup until the test releases it.
type gatedSearcher struct {
	started chan string
	release chan struct{}
}

func newGatedSearcher() *gatedSearcher {
	return &gatedSearcher{
		started: make(chan string, 4),
		release: make(chan struct{}),
	}
}

func (g *gatedSearcher) SearchByISBN(ctx context.Context, isbn string) (*entities.Book, bool) {
	g.started <- isbn
	<-g.release
	if isbn == "0000000000" {
		return nil, false
	}
	return &entities.Book{Title: "Book " + isbn, ISBN: isbn}, true
}

func waitForState(t *testing.T, slot *SearchSlot, ok func(SearchState) bool) SearchState {
	t.Helper()
	require.Eventually(t, func() bool { return ok(slot.State()) }, 2*time.Second, 5*time.Millisecond)
	return slot.State()
}

func TestSearchSlot_Found(t *testing.T) {
	searcher := newGatedSearcher()
	slot := NewSearchSlot(searcher)

	slot.Search(context.Background(), " 9780441013593 ")
	assert.Equal(t, "9780441013593", receive(t, searcher.started))
	assert.True(t, slot.State().Searching)

	close(searcher.release)
	state := waitForState(t, slot, func(s SearchState) bool { return !s.Searching })

	require.NotNil(t, state.Result)
	assert.Equal(t, "Book 9780441013593", state.Result.Title)
	assert.Empty(t, state.Message)
}

func TestSearchSlot_NotFoundSetsMessage(t *testing.T) {
	searcher := newGatedSearcher()
	close(searcher.release)
	slot := NewSearchSlot(searcher)

	slot.Search(context.Background(), "0000000000")
	state := waitForState(t, slot, func(s SearchState) bool { return !s.Searching })

	assert.Nil(t, state.Result)
	assert.Contains(t, state.Message, "0000000000")
}

func TestSearchSlot_BlankISBN(t *testing.T) {
	searcher := newGatedSearcher()
	slot := NewSearchSlot(searcher)

	slot.Search(context.Background(), "   ")

	state := slot.State()
	assert.False(t, state.Searching)
	assert.NotEmpty(t, state.Message)
	assert.Empty(t, searcher.started)
}

func TestSearchSlot_StaleResultAfterClearIsDiscarded(t *testing.T) {
	searcher := newGatedSearcher()
	slot := NewSearchSlot(searcher)

	slot.Search(context.Background(), "9780441013593")
	receive(t, searcher.started)
	slot.Clear()
	close(searcher.release)

	// Give the superseded lookup time to land
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, SearchState{}, slot.State())
}

func TestSearchSlot_NewerSearchWins(t *testing.T) {
	searcher := newGatedSearcher()
	slot := NewSearchSlot(searcher)

	slot.Search(context.Background(), "1111111111")
	receive(t, searcher.started)
	slot.Search(context.Background(), "2222222222")
	receive(t, searcher.started)
	close(searcher.release)

	state := waitForState(t, slot, func(s SearchState) bool { return !s.Searching })
	time.Sleep(50 * time.Millisecond)

	require.NotNil(t, state.Result)
	assert.Equal(t, "2222222222", slot.State().Result.ISBN)
}

func TestSearchSlot_ClearCancelsLookup(t *testing.T) {
	cancelled := make(chan struct{})
	slot := NewSearchSlot(searchFunc(func(ctx context.Context, isbn string) (*entities.Book, bool) {
		<-ctx.Done()
		close(cancelled)
		return nil, false
	}))

	slot.Search(context.Background(), "9780441013593")
	slot.Clear()

	select {
	case <-cancelled:
	case <-time.After(2 * time.Second):
		t.Fatal("lookup was not cancelled")
	}
}

func TestSearchSlot_Watch(t *testing.T) {
	searcher := newGatedSearcher()
	slot := NewSearchSlot(searcher)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	states := slot.Watch(ctx)
	assert.Equal(t, SearchState{}, receive(t, states))

	slot.Search(ctx, "9780441013593")
	assert.True(t, receive(t, states).Searching)

	close(searcher.release)
	final := receive(t, states)
	assert.False(t, final.Searching)
	assert.NotNil(t, final.Result)
}

type searchFunc func(ctx context.Context, isbn string) (*entities.Book, bool)

func (f searchFunc) SearchByISBN(ctx context.Context, isbn string) (*entities.Book, bool) {
	return f(ctx, isbn)
}
