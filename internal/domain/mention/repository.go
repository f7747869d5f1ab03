package mention

import (
	"context"
	"time"
)

// Repository defines durable storage for scored mentions and aggregate snapshots
type Repository interface {
	// Scored mention operations
	Insert(ctx context.Context, m *ScoredMention) error
	FindByExternalID(ctx context.Context, symbol, externalID string) (*ScoredMention, error)
	FindByTitleSince(ctx context.Context, symbol, title string, since time.Time) (*ScoredMention, error)
	RecordsSince(ctx context.Context, symbol string, since time.Time) ([]ScoredMention, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)

	// Hourly snapshot operations
	UpsertSnapshot(ctx context.Context, s *Snapshot) error
	LatestSnapshot(ctx context.Context, symbol string) (*Snapshot, error)
	SnapshotsSince(ctx context.Context, symbol string, since time.Time) ([]Snapshot, error)
}

// Collector supplies raw mentions for a symbol from the collection layer.
// Implementations must tolerate partial provider failure and return
// whatever subset succeeded.
type Collector interface {
	FetchMentions(ctx context.Context, symbol, companyName string) ([]RawMention, error)
}
