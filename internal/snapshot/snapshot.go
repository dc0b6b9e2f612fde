// Package snapshot persists the delimited dumps compartments write between
// steps, keyed by run, step, rank and compartment.
package snapshot

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrUnknownDriver = errors.New("snapshot: unknown driver")
	ErrExists        = errors.New("snapshot: record already exists")
	ErrInvalidRecord = errors.New("snapshot: invalid record")
)

// Record is one compartment dump from one rank at the end of a step.
type Record struct {
	RunID       string    `json:"run_id"`
	Step        uint64    `json:"step"`
	Rank        int       `json:"rank"`
	Compartment string    `json:"compartment"`
	Separator   string    `json:"separator"`
	Payload     []byte    `json:"payload"`
	CreatedAt   time.Time `json:"created_at"`
}

// Key is the unique address of r within a store.
func (r Record) Key() string {
	return fmt.Sprintf("%s/%08d-%04d-%s", r.RunID, r.Step, r.Rank, r.Compartment)
}

func (r Record) validate() error {
	if strings.TrimSpace(r.RunID) == "" || strings.ContainsAny(r.RunID, "/\\") {
		return fmt.Errorf("%w: run id %q", ErrInvalidRecord, r.RunID)
	}
	if r.Rank < 0 {
		return fmt.Errorf("%w: rank %d", ErrInvalidRecord, r.Rank)
	}
	if strings.TrimSpace(r.Compartment) == "" || strings.ContainsAny(r.Compartment, "/\\") {
		return fmt.Errorf("%w: compartment %q", ErrInvalidRecord, r.Compartment)
	}
	return nil
}

// Store saves records once and lists them back by run in step, rank,
// compartment order.
type Store interface {
	Driver() string
	Save(ctx context.Context, r Record) error
	List(ctx context.Context, runID string) ([]Record, error)
	Close() error
}

// Options selects and configures a driver.
type Options struct {
	Driver    string
	DSN       string
	Bucket    string
	Prefix    string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
	PathStyle bool
}

// Open constructs the store named by opts.Driver.
func Open(ctx context.Context, opts Options) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(opts.Driver)) {
	case "memory", "":
		return NewMemoryStore(), nil
	case "fs":
		return NewFileStore(opts.DSN)
	case "sqlite":
		return NewSQLiteStore(ctx, opts.DSN)
	case "postgres":
		return NewPostgresStore(ctx, opts.DSN)
	case "s3":
		return NewS3Store(ctx, opts)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, opts.Driver)
	}
}

// NewRunID returns a fresh run identifier.
func NewRunID() string {
	return uuid.NewString()
}

func sortRecords(rs []Record) {
	sort.Slice(rs, func(i, j int) bool {
		a, b := rs[i], rs[j]
		if a.Step != b.Step {
			return a.Step < b.Step
		}
		if a.Rank != b.Rank {
			return a.Rank < b.Rank
		}
		return a.Compartment < b.Compartment
	})
}

func stamp(r Record) Record {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	return r
}
