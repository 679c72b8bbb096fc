// Package store persists downloaded sheets and a log of dashboard renders.
package store

import (
	"context"
	"time"
)

// Run records one dashboard render.
type Run struct {
	ID        string            `json:"id"`
	Kind      string            `json:"kind"` // "scores", "sales", "export"
	Filters   map[string]string `json:"filters,omitempty"`
	Rows      int               `json:"rows"`
	Warnings  []string          `json:"warnings,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Kind   string `json:"kind,omitempty"`
	Limit  int    `json:"limit,omitempty"`
	Offset int    `json:"offset,omitempty"`
}

// Source is a cached remote sheet body.
type Source struct {
	URL       string
	ETag      string
	Body      []byte
	FetchedAt time.Time
}

// Store defines the persistence interface.
type Store interface {
	// Source cache
	GetSource(ctx context.Context, url string) (etag string, body []byte, ok bool, err error)
	PutSource(ctx context.Context, url, etag string, body []byte) error

	// Runs
	RecordRun(ctx context.Context, run Run) (*Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]Run, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
