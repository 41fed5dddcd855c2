// Package store provides the local data mirror for the implication bot:
// cloned tag metadata, the bot's bulk update request history, and cached
// related-copyright lookups.
package store

import (
	"context"
	"time"

	autoimply "github.com/boorubot/autoimply"
)

// Store defines the interface for the local mirror.
type Store interface {
	// Tag mirror operations
	UpsertTags(ctx context.Context, tags []autoimply.Tag) error
	TagsByNames(ctx context.Context, names []string) (map[string]autoimply.Tag, error)
	TagsByPrefix(ctx context.Context, prefix string) ([]autoimply.Tag, error)
	LastTagUpdate(ctx context.Context) (time.Time, error)

	// BUR mirror operations
	UpsertBURs(ctx context.Context, records []autoimply.BURRecord) error
	LastBURUpdate(ctx context.Context) (time.Time, error)
	RequestedImplications(ctx context.Context) (map[autoimply.ImplicationKey]autoimply.BURStatus, error)

	// Related-copyright cache
	RelatedCopyrights(ctx context.Context, name string) ([]string, bool, error)
	SaveRelatedCopyrights(ctx context.Context, name string, copyrights []string) error

	// Health check
	Ping(ctx context.Context) error
	Close() error
}
