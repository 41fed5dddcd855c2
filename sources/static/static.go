// Package static provides in-memory Source and Submitter implementations,
// used in tests and for offline experimentation with canned tag lists.
package static

import (
	"context"
	"sync"

	autoimply "github.com/boorubot/autoimply"
	"github.com/boorubot/autoimply/series"
	"github.com/boorubot/autoimply/sources"
)

// Source serves a fixed tag universe.
type Source struct {
	mu             sync.RWMutex
	tags           map[string][]autoimply.Tag // keyed by series name
	existing       map[autoimply.ImplicationKey]bool
	copyrights     map[string][]string
	copyrightCalls int
	failFetch      error
	failImplies    error
}

// NewSource creates an empty static source.
func NewSource() *Source {
	return &Source{
		tags:       make(map[string][]autoimply.Tag),
		existing:   make(map[autoimply.ImplicationKey]bool),
		copyrights: make(map[string][]string),
	}
}

// Name returns the source name.
func (s *Source) Name() string {
	return "static"
}

// SetTags sets the tags served for a series.
func (s *Source) SetTags(seriesName string, tags []autoimply.Tag) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tags[seriesName] = tags
}

// AddExisting records an implication pair as already present.
func (s *Source) AddExisting(child, parent string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.existing[autoimply.ImplicationKey{Child: child, Parent: parent}] = true
}

// SetCopyrights sets the related copyrights for a tag.
func (s *Source) SetCopyrights(tag string, copyrights []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.copyrights[tag] = copyrights
}

// FailFetch makes FetchTags return the given error.
func (s *Source) FailFetch(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failFetch = err
}

// FailImplications makes ExistingImplications return the given error.
func (s *Source) FailImplications(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failImplies = err
}

func (s *Source) FetchTags(ctx context.Context, cfg series.Config) ([]autoimply.Tag, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.failFetch != nil {
		return nil, s.failFetch
	}
	out := make([]autoimply.Tag, len(s.tags[cfg.Name]))
	copy(out, s.tags[cfg.Name])
	return out, nil
}

func (s *Source) ExistingImplications(ctx context.Context, cfg series.Config) (map[autoimply.ImplicationKey]bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.failImplies != nil {
		return nil, s.failImplies
	}
	out := make(map[autoimply.ImplicationKey]bool, len(s.existing))
	for k, v := range s.existing {
		out[k] = v
	}
	return out, nil
}

func (s *Source) RelatedCopyrights(ctx context.Context, tag string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.copyrightCalls++
	out := make([]string, len(s.copyrights[tag]))
	copy(out, s.copyrights[tag])
	return out, nil
}

// CopyrightLookups reports how many times RelatedCopyrights was called.
func (s *Source) CopyrightLookups() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.copyrightCalls
}

// Submitter records submissions instead of filing them.
type Submitter struct {
	mu      sync.Mutex
	nextID  int
	pending map[int]int // topic id -> pending count

	// Submitted holds every submission passed to Submit, in order.
	Submitted []sources.Submission

	// FailSubmit, when set, makes Submit return this error.
	FailSubmit error
}

// NewSubmitter creates an empty static submitter.
func NewSubmitter() *Submitter {
	return &Submitter{nextID: 1, pending: make(map[int]int)}
}

// Name returns the submitter name.
func (s *Submitter) Name() string {
	return "static"
}

// SetPending sets the pending request count for a topic.
func (s *Submitter) SetPending(topicID, count int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending[topicID] = count
}

func (s *Submitter) PendingBURCount(ctx context.Context, topicID int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending[topicID], nil
}

func (s *Submitter) Submit(ctx context.Context, sub sources.Submission, autopost bool) (autoimply.SubmissionResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailSubmit != nil {
		return autoimply.SubmissionResult{}, s.FailSubmit
	}
	s.Submitted = append(s.Submitted, sub)
	if !autopost {
		return autoimply.SubmissionResult{TopicID: sub.TopicID, Script: sub.Script, DryRun: true}, nil
	}
	id := s.nextID
	s.nextID++
	s.pending[sub.TopicID]++
	return autoimply.SubmissionResult{BURID: id, TopicID: sub.TopicID, Script: sub.Script}, nil
}
