package cli

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/bookshelf/internal/entities"
)

func lookupCommand(t *testing.T, body string, args ...string) (*LookupCommand, *bytes.Buffer) {
	t.Helper()
	server := googleServer(t, body)
	t.Setenv("GOOGLE_BOOKS_URL", server.URL)

	var out bytes.Buffer
	cmd := NewLookupCommand()
	cmd.out = &out
	require.NoError(t, cmd.ParseFlags(args))
	return cmd, &out
}

func TestLookupCommand_PrintsRecord(t *testing.T) {
	cmd, out := lookupCommand(t, duneVolumes, "-isbn", "0-441-17271-7")

	require.NoError(t, cmd.Run())

	assert.Contains(t, out.String(), "Title:       Dune")
	assert.Contains(t, out.String(), "Author:      Frank Herbert")
	assert.Contains(t, out.String(), "Year:        1965")
	assert.Contains(t, out.String(), "ISBN:        0441172717")
}

func TestLookupCommand_JSON(t *testing.T) {
	cmd, out := lookupCommand(t, duneVolumes, "-isbn", "9780441172719", "-json")

	require.NoError(t, cmd.Run())

	var book entities.Book
	require.NoError(t, json.Unmarshal(out.Bytes(), &book))
	assert.Equal(t, "Dune", book.Title)
	assert.Equal(t, "Fiction", book.Genre)
	assert.Zero(t, book.ID)
	require.NotNil(t, book.ImageURL)
}

func TestLookupCommand_NotFound(t *testing.T) {
	cmd, out := lookupCommand(t, `{"totalItems":0}`, "-isbn", "9780441172719")

	err := cmd.Run()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "no book found for ISBN 9780441172719")
	assert.Empty(t, out.String())
}

func TestLookupCommand_RequiresISBN(t *testing.T) {
	err := NewLookupCommand().ParseFlags(nil)

	assert.EqualError(t, err, "required flag -isbn not provided")
}
