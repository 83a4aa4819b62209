package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"todolists/internal/model"
)

// SessionStore persists session state keyed by the opaque session id.
type SessionStore interface {
	// Get returns ok=false when the session does not exist or has expired.
	Get(ctx context.Context, id string) (st *model.Session, ok bool, err error)
	Set(ctx context.Context, id string, st *model.Session) error
	Delete(ctx context.Context, id string) error
	// Prune removes sessions idle for longer than the store TTL.
	Prune(ctx context.Context) (int, error)
	// List returns summaries of the live sessions, most recent first.
	List(ctx context.Context) ([]Summary, error)
	Close() error
}

type Summary struct {
	ID        string    `json:"id"`
	Lists     int       `json:"lists"`
	Todos     int       `json:"todos"`
	UpdatedAt time.Time `json:"updatedAt"`
}

const DefaultTTL = 14 * 24 * time.Hour

var errEmptyID = errors.New("store: empty session id")

// Options selects and configures a backend.
type Options struct {
	Kind string // memory|sqlite
	Path string // sqlite file
	TTL  time.Duration
}

func Open(ctx context.Context, opts Options) (SessionStore, error) {
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	switch strings.ToLower(strings.TrimSpace(opts.Kind)) {
	case "", "memory":
		return NewMemory(opts.TTL), nil
	case "sqlite":
		return OpenSQLite(ctx, opts.Path, opts.TTL)
	default:
		return nil, fmt.Errorf("store: unknown kind %q (expected memory|sqlite)", opts.Kind)
	}
}

func summarize(id string, st *model.Session, at time.Time) Summary {
	sum := Summary{ID: id, Lists: len(st.Lists), UpdatedAt: at}
	for _, l := range st.Lists {
		sum.Todos += len(l.Todos)
	}
	return sum
}
