// Package sources defines the collaborator interfaces the runner depends
// on: a tag source backed by the booru and a submitter that creates bulk
// update requests. The danbooru subpackage provides the real
// implementation and the static subpackage an in-memory one for tests.
package sources

import (
	"context"

	autoimply "github.com/boorubot/autoimply"
	"github.com/boorubot/autoimply/series"
)

// Source supplies the tag data a run needs.
type Source interface {
	// Name returns the source name, for logging and error reporting.
	Name() string

	// FetchTags returns all character tags matching the series markers.
	// Deprecated and empty tags are excluded.
	FetchTags(ctx context.Context, cfg series.Config) ([]autoimply.Tag, error)

	// ExistingImplications returns the implication pairs that already
	// exist on the site or are pending in open requests.
	ExistingImplications(ctx context.Context, cfg series.Config) (map[autoimply.ImplicationKey]bool, error)

	// RelatedCopyrights returns the copyright tags most associated with
	// the given tag's posts.
	RelatedCopyrights(ctx context.Context, tag string) ([]string, error)
}

// Submission is one bulk update request to create.
type Submission struct {
	// TopicID is the forum topic the request is filed under.
	TopicID int

	// Script is the request body, one directive per line.
	Script string

	// Reason is the dtext reason shown alongside the request.
	Reason string
}

// Submitter creates bulk update requests.
type Submitter interface {
	// Name returns the submitter name, for logging and error reporting.
	Name() string

	// PendingBURCount returns how many unresolved requests by the bot
	// are open in the given topic.
	PendingBURCount(ctx context.Context, topicID int) (int, error)

	// Submit files the request. With autopost false the submission is a
	// dry run: the result describes what would have been created.
	Submit(ctx context.Context, sub Submission, autopost bool) (autoimply.SubmissionResult, error)
}
