package cli

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/mrlokans/bookshelf/internal/config"
	"github.com/mrlokans/bookshelf/internal/library"
	"github.com/mrlokans/bookshelf/internal/metadata"
)

// LookupCommand prints the record Google Books returns for an ISBN. Nothing
// is saved.
type LookupCommand struct {
	ISBN    string
	JSON    bool
	Timeout time.Duration

	out io.Writer
}

func NewLookupCommand() *LookupCommand {
	return &LookupCommand{out: os.Stdout}
}

func (cmd *LookupCommand) ParseFlags(args []string) error {
	fs := flag.NewFlagSet("lookup", flag.ExitOnError)

	fs.StringVar(&cmd.ISBN, "isbn", "", "ISBN-10 or ISBN-13 to look up (required)")
	fs.BoolVar(&cmd.JSON, "json", false, "Print the record as JSON")
	fs.DurationVar(&cmd.Timeout, "timeout", 15*time.Second, "Give up after this long")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s lookup -isbn <isbn> [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Look a book up on Google Books without adding it to any library.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExample:\n")
		fmt.Fprintf(os.Stderr, "  %s lookup -isbn 978-0-441-17271-9\n", os.Args[0])
	}

	if err := fs.Parse(args); err != nil {
		return err
	}

	if cmd.ISBN == "" {
		return fmt.Errorf("required flag -isbn not provided")
	}

	return nil
}

func (cmd *LookupCommand) Run() error {
	cfg := config.NewConfig()
	client := metadata.NewGoogleBooksClient(metadata.ConfigFrom(cfg.GoogleBooks))

	// Searching does not touch the store, so no database is opened.
	svc := library.NewService(nil, nil, client, 0)
	defer svc.Close()

	ctx, cancel := context.WithTimeout(context.Background(), cmd.Timeout)
	defer cancel()

	book, found := svc.SearchByISBN(ctx, cmd.ISBN)
	if !found {
		return fmt.Errorf("no book found for ISBN %s", cmd.ISBN)
	}

	if cmd.JSON {
		enc := json.NewEncoder(cmd.out)
		enc.SetIndent("", "  ")
		return enc.Encode(book)
	}

	fmt.Fprintf(cmd.out, "Title:       %s\n", book.Title)
	fmt.Fprintf(cmd.out, "Author:      %s\n", book.Author)
	fmt.Fprintf(cmd.out, "Genre:       %s\n", book.Genre)
	fmt.Fprintf(cmd.out, "Year:        %s\n", year(book.PublicationYear))
	fmt.Fprintf(cmd.out, "ISBN:        %s\n", book.ISBN)
	if book.HasCover() {
		fmt.Fprintf(cmd.out, "Cover:       %s\n", *book.ImageURL)
	}
	if book.Description != "" {
		fmt.Fprintf(cmd.out, "Description: %s\n", book.Description)
	}
	return nil
}
