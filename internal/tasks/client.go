// Package tasks runs book imports and cover backfills in the background on
// a backlite queue stored in its own SQLite database.
package tasks

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/mikestefanello/backlite"
)

// Client owns the task database and the backlite workers.
type Client struct {
	client *backlite.Client
	db     *sql.DB
	config Config

	mu      sync.RWMutex
	started bool
}

// NewClient opens (or creates) the task database next to mainDBPath and
// installs the backlite schema.
func NewClient(mainDBPath string, cfg Config) (*Client, error) {
	db, err := sql.Open("sqlite3", DBPath(mainDBPath)+"?_journal=WAL&_timeout=5000&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open tasks database: %w", err)
	}

	db.SetMaxOpenConns(cfg.Workers + 5)
	db.SetMaxIdleConns(cfg.Workers + 2)
	db.SetConnMaxLifetime(time.Hour)

	client, err := backlite.NewClient(backlite.ClientConfig{
		DB:              db,
		NumWorkers:      cfg.Workers,
		ReleaseAfter:    cfg.ReleaseAfter,
		CleanupInterval: cfg.CleanupInterval,
		Logger:          &stdLogger{},
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create backlite client: %w", err)
	}

	if err := client.Install(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to install backlite schema: %w", err)
	}

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS task_owners (
		task_id TEXT PRIMARY KEY,
		user_id INTEGER NOT NULL,
		created_at INTEGER NOT NULL
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create task owners table: %w", err)
	}

	return &Client{
		client: client,
		db:     db,
		config: cfg,
	}, nil
}

// Register adds queues. All queues must be registered before Start.
func (c *Client) Register(queues ...backlite.Queue) {
	for _, q := range queues {
		c.client.Register(q)
	}
}

// Start launches the workers. Calling it twice is a no-op.
func (c *Client) Start(ctx context.Context) {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return
	}
	c.started = true
	c.mu.Unlock()

	log.Printf("Task queue started with %d workers", c.config.Workers)
	c.client.Start(ctx)
}

// Stop waits for running tasks until ctx expires. It reports whether every
// worker finished in time.
func (c *Client) Stop(ctx context.Context) bool {
	c.mu.RLock()
	started := c.started
	c.mu.RUnlock()
	if !started {
		return true
	}

	log.Println("Stopping task queue...")
	if !c.client.Stop(ctx) {
		log.Println("Task queue stopped before all tasks completed")
		return false
	}
	log.Println("Task queue stopped gracefully")
	return true
}

func (c *Client) Close() error {
	if c.db == nil {
		return nil
	}
	return c.db.Close()
}

// Owned is implemented by tasks that run on behalf of one user. Only that
// user can see their status.
type Owned interface {
	OwnerID() uint
}

// ownerRetention bounds how long task ownership is remembered. It outlives
// the retention of every queue.
const ownerRetention = 7 * 24 * time.Hour

// Enqueue saves tasks for processing and returns their ids in order.
func (c *Client) Enqueue(ctx context.Context, tasks ...backlite.Task) ([]string, error) {
	ids, err := c.client.Add(tasks...).Ctx(ctx).Save()
	if err != nil {
		return nil, fmt.Errorf("enqueue tasks: %w", err)
	}
	if err := c.recordOwners(ctx, tasks, ids); err != nil {
		return nil, err
	}
	return ids, nil
}

func (c *Client) recordOwners(ctx context.Context, tasks []backlite.Task, ids []string) error {
	now := time.Now()
	if _, err := c.db.ExecContext(ctx, `DELETE FROM task_owners WHERE created_at < ?`, now.Add(-ownerRetention).Unix()); err != nil {
		log.Printf("Failed to prune task owners: %v", err)
	}

	for i, task := range tasks {
		owned, ok := task.(Owned)
		if !ok || i >= len(ids) {
			continue
		}
		_, err := c.db.ExecContext(ctx,
			`INSERT OR REPLACE INTO task_owners (task_id, user_id, created_at) VALUES (?, ?, ?)`,
			ids[i], owned.OwnerID(), now.Unix())
		if err != nil {
			return fmt.Errorf("record owner of task %s: %w", ids[i], err)
		}
	}
	return nil
}

// Status returns the state of a task as a short string: pending, running,
// success, failure or not_found. Tasks owned by someone else, and tasks with
// no owner, are reported as not_found.
func (c *Client) Status(ctx context.Context, ownerID uint, taskID string) (string, error) {
	var owner uint
	err := c.db.QueryRowContext(ctx, `SELECT user_id FROM task_owners WHERE task_id = ?`, taskID).Scan(&owner)
	if errors.Is(err, sql.ErrNoRows) {
		return statusName(backlite.TaskStatusNotFound), nil
	}
	if err != nil {
		return "", fmt.Errorf("task %s owner: %w", taskID, err)
	}
	if owner != ownerID {
		return statusName(backlite.TaskStatusNotFound), nil
	}

	status, err := c.client.Status(ctx, taskID)
	if err != nil {
		return "", fmt.Errorf("task %s status: %w", taskID, err)
	}
	return statusName(status), nil
}

func statusName(status backlite.TaskStatus) string {
	switch status {
	case backlite.TaskStatusPending:
		return "pending"
	case backlite.TaskStatusRunning:
		return "running"
	case backlite.TaskStatusSuccess:
		return "success"
	case backlite.TaskStatusFailure:
		return "failure"
	case backlite.TaskStatusNotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

// stdLogger routes backlite logs to the standard logger. backlite passes
// its params as key/value pairs.
type stdLogger struct{}

func (l *stdLogger) Info(message string, params ...any) {
	log.Print("[TASK] " + withFields(message, params))
}

func (l *stdLogger) Error(message string, params ...any) {
	log.Print("[TASK ERROR] " + withFields(message, params))
}

func withFields(message string, params []any) string {
	var b strings.Builder
	b.WriteString(message)
	for i := 0; i < len(params); i += 2 {
		if i+1 < len(params) {
			fmt.Fprintf(&b, " %v=%v", params[i], params[i+1])
		} else {
			fmt.Fprintf(&b, " %v", params[i])
		}
	}
	return b.String()
}
