package cli

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"
	"sync"
	"text/tabwriter"
	"time"

	"golang.org/x/term"

	"github.com/mrlokans/bookshelf/internal/auth"
	"github.com/mrlokans/bookshelf/internal/config"
	"github.com/mrlokans/bookshelf/internal/database"
	"github.com/mrlokans/bookshelf/internal/database/books"
	"github.com/mrlokans/bookshelf/internal/database/users"
	"github.com/mrlokans/bookshelf/internal/entities"
	"github.com/mrlokans/bookshelf/internal/library"
	"github.com/mrlokans/bookshelf/internal/metadata"
	"github.com/mrlokans/bookshelf/internal/watch"
)

var (
	errLoginRequired = errors.New("log in first")
	errUsage         = errors.New("wrong arguments")
)

// ShellCommand starts an interactive session against the local database.
type ShellCommand struct {
	DatabasePath string
	Verbose      bool
}

func NewShellCommand() *ShellCommand {
	return &ShellCommand{}
}

func (cmd *ShellCommand) ParseFlags(args []string) error {
	fs := flag.NewFlagSet("shell", flag.ExitOnError)

	fs.StringVar(&cmd.DatabasePath, "db", config.DefaultDatabasePath, "Path to the database file")
	fs.BoolVar(&cmd.Verbose, "verbose", false, "Print log output while the shell runs")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s shell [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Manage a book collection interactively.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nType 'help' inside the shell for the list of commands.\n")
	}

	return fs.Parse(args)
}

func (cmd *ShellCommand) Run() error {
	if !cmd.Verbose {
		log.SetOutput(io.Discard)
	}

	cfg := config.NewConfig()

	db, err := database.NewDatabase(cmd.DatabasePath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	store := books.NewRepository(db.DB)
	hub := watch.NewHub()
	lookup := metadata.NewGoogleBooksClient(metadata.ConfigFrom(cfg.GoogleBooks))

	session := auth.NewSession(auth.NewService(users.NewRepository(db.DB), cfg.Auth))
	provisioner := library.NewProvisioner(session, func(ownerID uint) *library.Service {
		return library.NewService(store, hub, lookup, ownerID)
	})

	shell := NewShell(session, provisioner, os.Stdin, os.Stdout)
	if term.IsTerminal(int(os.Stdin.Fd())) {
		shell.ReadPassword = terminalPassword(os.Stdin, os.Stdout)
	}

	return shell.Run(context.Background())
}

// terminalPassword reads a password without echoing it.
func terminalPassword(in *os.File, out io.Writer) func(prompt string) (string, error) {
	return func(prompt string) (string, error) {
		fmt.Fprint(out, prompt)
		raw, err := term.ReadPassword(int(in.Fd()))
		fmt.Fprintln(out)
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(raw)), nil
	}
}

type shellCommand struct {
	name  string
	usage string
	help  string
	run   func(s *Shell, ctx context.Context, args string) error
}

func shellCommands() []shellCommand {
	return []shellCommand{
		{"register", "register", "Create an account and log in", (*Shell).register},
		{"login", "login [email]", "Log in to an existing account", (*Shell).login},
		{"logout", "logout", "End the session", (*Shell).logout},
		{"whoami", "whoami", "Show the logged in user", (*Shell).whoami},
		{"list", "list [all|favorites|read|unread]", "List books", (*Shell).list},
		{"show", "show <id>", "Show one book", (*Shell).show},
		{"add", "add", "Add a book by hand", (*Shell).add},
		{"edit", "edit <id>", "Edit a book, blank answers keep the value", (*Shell).edit},
		{"delete", "delete <id>", "Delete a book", (*Shell).remove},
		{"fav", "fav <id>", "Toggle the favorite flag", (*Shell).fav},
		{"read", "read <id>", "Toggle the read flag", (*Shell).read},
		{"search", "search <isbn>", "Look a book up on Google Books", (*Shell).searchISBN},
		{"save", "save", "Add the last search result to the library", (*Shell).save},
		{"clear", "clear", "Forget the last search", (*Shell).clear},
		{"watch", "watch [view|off]", "Print a collection whenever it changes", (*Shell).watch},
		{"help", "help", "Show this list", (*Shell).help},
	}
}

// Shell is a line-oriented front end over one auth.Session. All library
// commands go through the Service the provisioner bound to the logged in
// user.
type Shell struct {
	session     *auth.Session
	provisioner *library.Provisioner
	search      *library.SearchSlot

	in  *bufio.Scanner
	out io.Writer
	mu  sync.Mutex

	// ReadPassword prompts for a secret. It defaults to reading a plain line.
	ReadPassword func(prompt string) (string, error)

	// WaitTimeout bounds how long a command waits for a rebind or a search.
	WaitTimeout time.Duration

	watchCancel context.CancelFunc
	watchDone   chan struct{}
}

func NewShell(session *auth.Session, provisioner *library.Provisioner, in io.Reader, out io.Writer) *Shell {
	s := &Shell{
		session:     session,
		provisioner: provisioner,
		in:          bufio.NewScanner(in),
		out:         out,
		WaitTimeout: 30 * time.Second,
	}
	s.search = library.NewSearchSlot(currentSearcher{provisioner})
	s.ReadPassword = s.readLine
	return s
}

// Run reads commands until quit or end of input.
func (s *Shell) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer s.stopWatch()

	s.provisioner.Start(ctx)
	s.printf("Bookshelf shell. Type 'help' for commands.\n")

	for {
		s.printf("%s> ", s.promptName())
		if !s.in.Scan() {
			s.printf("\n")
			return s.in.Err()
		}

		line := strings.TrimSpace(s.in.Text())
		if line == "" {
			continue
		}
		name, args, _ := strings.Cut(line, " ")
		name = strings.ToLower(name)
		if name == "quit" || name == "exit" {
			return nil
		}

		if err := s.dispatch(ctx, name, strings.TrimSpace(args)); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			s.printf("Error: %v\n", err)
		}
	}
}

func (s *Shell) dispatch(ctx context.Context, name, args string) error {
	for _, c := range shellCommands() {
		if c.name != name {
			continue
		}
		err := c.run(s, ctx, args)
		if errors.Is(err, errUsage) {
			return fmt.Errorf("usage: %s", c.usage)
		}
		return err
	}
	return fmt.Errorf("unknown command %q, type 'help'", name)
}

func (s *Shell) promptName() string {
	if user := s.session.User(); user != nil {
		return user.Email
	}
	return "bookshelf"
}

func (s *Shell) printf(format string, args ...any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.out, format, args...)
}

func (s *Shell) readLine(prompt string) (string, error) {
	s.printf("%s", prompt)
	if !s.in.Scan() {
		if err := s.in.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return strings.TrimSpace(s.in.Text()), nil
}

// library returns the service of the logged in user once the provisioner
// has caught up with the session.
func (s *Shell) library(ctx context.Context) (*library.Service, error) {
	ownerID := s.session.UserID()
	if ownerID == 0 {
		return nil, errLoginRequired
	}
	ctx, cancel := context.WithTimeout(ctx, s.WaitTimeout)
	defer cancel()
	return s.provisioner.Wait(ctx, ownerID)
}

func (s *Shell) book(ctx context.Context, args string) (*library.Service, *entities.Book, error) {
	id, err := strconv.ParseUint(args, 10, 64)
	if err != nil || id == 0 {
		return nil, nil, errUsage
	}
	lib, err := s.library(ctx)
	if err != nil {
		return nil, nil, err
	}
	book, err := lib.Get(uint(id))
	if err != nil {
		return nil, nil, err
	}
	return lib, book, nil
}

func (s *Shell) register(ctx context.Context, _ string) error {
	name, err := s.readLine("Name: ")
	if err != nil {
		return err
	}
	email, err := s.readLine("Email: ")
	if err != nil {
		return err
	}
	password, err := s.ReadPassword("Password: ")
	if err != nil {
		return err
	}

	id, err := s.session.Register(ctx, name, email, password)
	if err != nil {
		return err
	}
	s.search.Clear()
	s.printf("Welcome, %s (user #%d)\n", s.session.User().Name, id)
	return nil
}

func (s *Shell) login(ctx context.Context, args string) error {
	email := args
	if email == "" {
		var err error
		if email, err = s.readLine("Email: "); err != nil {
			return err
		}
	}
	password, err := s.ReadPassword("Password: ")
	if err != nil {
		return err
	}

	if _, err := s.session.Login(ctx, email, password); err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			return auth.ErrInvalidCredentials
		}
		return err
	}
	s.search.Clear()
	s.printf("Logged in as %s\n", s.session.User().Name)
	return nil
}

func (s *Shell) logout(context.Context, string) error {
	if !s.session.IsAuthenticated() {
		return errLoginRequired
	}
	s.stopWatch()
	s.search.Clear()
	s.session.Logout()
	s.printf("Logged out\n")
	return nil
}

func (s *Shell) whoami(context.Context, string) error {
	user := s.session.User()
	if user == nil {
		s.printf("Not logged in\n")
		return nil
	}
	s.printf("%s <%s> (user #%d)\n", user.Name, user.Email, user.ID)
	return nil
}

func (s *Shell) list(ctx context.Context, args string) error {
	view, err := library.ParseView(args)
	if err != nil {
		return err
	}
	lib, err := s.library(ctx)
	if err != nil {
		return err
	}
	list, err := lib.List(view)
	if err != nil {
		return err
	}
	s.printBooks(list)
	return nil
}

func (s *Shell) printBooks(list []entities.Book) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(list) == 0 {
		fmt.Fprintln(s.out, "No books")
		return
	}

	w := tabwriter.NewWriter(s.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tAUTHOR\tYEAR\tFAV\tREAD")
	for _, b := range list {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n", b.ID, b.Title, b.Author, year(b.PublicationYear), mark(b.IsFavorite), mark(b.IsRead))
	}
	_ = w.Flush()
}

func year(y int) string {
	if y == 0 {
		return "-"
	}
	return strconv.Itoa(y)
}

func mark(on bool) string {
	if on {
		return "*"
	}
	return ""
}

func (s *Shell) show(ctx context.Context, args string) error {
	_, book, err := s.book(ctx, args)
	if err != nil {
		return err
	}
	s.printBook(book)
	return nil
}

func (s *Shell) printBook(b *entities.Book) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w := tabwriter.NewWriter(s.out, 0, 0, 1, ' ', 0)
	if b.ID != 0 {
		fmt.Fprintf(w, "ID:\t%d\n", b.ID)
	}
	fmt.Fprintf(w, "Title:\t%s\n", b.Title)
	fmt.Fprintf(w, "Author:\t%s\n", b.Author)
	fmt.Fprintf(w, "Genre:\t%s\n", b.Genre)
	fmt.Fprintf(w, "Year:\t%s\n", year(b.PublicationYear))
	if b.ISBN != "" {
		fmt.Fprintf(w, "ISBN:\t%s\n", b.ISBN)
	}
	if b.HasCover() {
		fmt.Fprintf(w, "Cover:\t%s\n", *b.ImageURL)
	}
	fmt.Fprintf(w, "Favorite:\t%t\n", b.IsFavorite)
	fmt.Fprintf(w, "Read:\t%t\n", b.IsRead)
	if b.Description != "" {
		fmt.Fprintf(w, "Description:\t%s\n", b.Description)
	}
	_ = w.Flush()
}

// bookFields prompts for the editable fields. Blank answers keep what is in
// book.
func (s *Shell) bookFields(book *entities.Book) error {
	ask := func(label, current string) (string, error) {
		prompt := label + ": "
		if current != "" {
			prompt = fmt.Sprintf("%s [%s]: ", label, current)
		}
		answer, err := s.readLine(prompt)
		if err != nil {
			return "", err
		}
		if answer == "" {
			return current, nil
		}
		return answer, nil
	}

	var err error
	if book.Title, err = ask("Title", book.Title); err != nil {
		return err
	}
	if book.Author, err = ask("Author", book.Author); err != nil {
		return err
	}
	if book.Genre, err = ask("Genre", book.Genre); err != nil {
		return err
	}

	current := ""
	if book.PublicationYear != 0 {
		current = strconv.Itoa(book.PublicationYear)
	}
	y, err := ask("Year", current)
	if err != nil {
		return err
	}
	if y != current {
		if book.PublicationYear, err = strconv.Atoi(y); err != nil {
			return fmt.Errorf("year must be a number: %q", y)
		}
	}

	if book.Description, err = ask("Description", book.Description); err != nil {
		return err
	}
	if book.ISBN, err = ask("ISBN", book.ISBN); err != nil {
		return err
	}

	if strings.TrimSpace(book.Title) == "" {
		return errors.New("title is required")
	}
	return nil
}

func (s *Shell) add(ctx context.Context, _ string) error {
	lib, err := s.library(ctx)
	if err != nil {
		return err
	}

	book := &entities.Book{UserID: lib.OwnerID()}
	if err := s.bookFields(book); err != nil {
		return err
	}
	if err := lib.Insert(ctx, book); err != nil {
		return err
	}
	s.printf("Added %q (#%d)\n", book.Title, book.ID)
	return nil
}

func (s *Shell) edit(ctx context.Context, args string) error {
	lib, book, err := s.book(ctx, args)
	if err != nil {
		return err
	}
	if err := s.bookFields(book); err != nil {
		return err
	}
	if err := lib.Update(ctx, book); err != nil {
		return err
	}
	s.printf("Updated #%d\n", book.ID)
	return nil
}

func (s *Shell) remove(ctx context.Context, args string) error {
	lib, book, err := s.book(ctx, args)
	if err != nil {
		return err
	}
	if err := lib.Delete(ctx, book); err != nil {
		return err
	}
	s.printf("Deleted %q\n", book.Title)
	return nil
}

func (s *Shell) fav(ctx context.Context, args string) error {
	lib, book, err := s.book(ctx, args)
	if err != nil {
		return err
	}
	updated, err := lib.ToggleFavorite(ctx, book)
	if err != nil {
		return err
	}
	if updated.IsFavorite {
		s.printf("%q is now a favorite\n", updated.Title)
	} else {
		s.printf("%q is no longer a favorite\n", updated.Title)
	}
	return nil
}

func (s *Shell) read(ctx context.Context, args string) error {
	lib, book, err := s.book(ctx, args)
	if err != nil {
		return err
	}
	updated, err := lib.ToggleRead(ctx, book)
	if err != nil {
		return err
	}
	if updated.IsRead {
		s.printf("%q marked as read\n", updated.Title)
	} else {
		s.printf("%q marked as unread\n", updated.Title)
	}
	return nil
}

func (s *Shell) searchISBN(ctx context.Context, args string) error {
	if _, err := s.library(ctx); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, s.WaitTimeout)
	defer cancel()

	s.search.Search(ctx, args)
	for state := range s.search.Watch(ctx) {
		if state.Searching {
			continue
		}
		if state.Result == nil {
			s.printf("%s\n", state.Message)
			return nil
		}
		s.printBook(state.Result)
		s.printf("Type 'save' to add it to your library\n")
		return nil
	}
	return ctx.Err()
}

func (s *Shell) save(ctx context.Context, _ string) error {
	state := s.search.State()
	if state.Result == nil {
		return errors.New("nothing to save, search for an ISBN first")
	}
	lib, err := s.library(ctx)
	if err != nil {
		return err
	}

	book := *state.Result
	if err := lib.Insert(ctx, &book); err != nil {
		return err
	}
	s.search.Clear()
	s.printf("Saved %q (#%d)\n", book.Title, book.ID)
	return nil
}

func (s *Shell) clear(context.Context, string) error {
	s.search.Clear()
	s.printf("Search cleared\n")
	return nil
}

func (s *Shell) watch(ctx context.Context, args string) error {
	s.stopWatch()
	if strings.EqualFold(args, "off") {
		s.printf("Stopped watching\n")
		return nil
	}

	view, err := library.ParseView(args)
	if err != nil {
		return err
	}
	lib, err := s.library(ctx)
	if err != nil {
		return err
	}

	watchCtx, cancel := context.WithCancel(ctx)
	updates, err := lib.Watch(watchCtx, view)
	if err != nil {
		cancel()
		return err
	}

	first, ok := <-updates
	if !ok {
		cancel()
		return errLoginRequired
	}
	s.printf("Watching %s, 'watch off' to stop\n", view)
	s.printBooks(first)

	done := make(chan struct{})
	s.mu.Lock()
	s.watchCancel, s.watchDone = cancel, done
	s.mu.Unlock()

	go func() {
		defer close(done)
		for list := range updates {
			s.printf("\n[%s] %d book(s)\n", view, len(list))
			s.printBooks(list)
		}
	}()
	return nil
}

// stopWatch ends the running watch and waits for its printer to exit.
func (s *Shell) stopWatch() {
	s.mu.Lock()
	cancel, done := s.watchCancel, s.watchDone
	s.watchCancel, s.watchDone = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (s *Shell) help(context.Context, string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	w := tabwriter.NewWriter(s.out, 0, 0, 2, ' ', 0)
	for _, c := range shellCommands() {
		fmt.Fprintf(w, "  %s\t%s\n", c.usage, c.help)
	}
	fmt.Fprintf(w, "  quit\tLeave the shell\n")
	return w.Flush()
}

// currentSearcher searches with whichever library is bound at the time.
type currentSearcher struct {
	provisioner *library.Provisioner
}

func (c currentSearcher) SearchByISBN(ctx context.Context, isbn string) (*entities.Book, bool) {
	lib := c.provisioner.Current()
	if lib == nil {
		return nil, false
	}
	return lib.SearchByISBN(ctx, isbn)
}
