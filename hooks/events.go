package hooks

import (
	"time"

	autoimply "github.com/boorubot/autoimply"
)

// ImplicationsDerivedEvent carries the result of deriving implications for
// one series.
type ImplicationsDerivedEvent struct {
	// Series is the configured series name.
	Series string

	// Implications holds every derived implication, before filtering
	// against existing requests.
	Implications []autoimply.Implication

	// TagCount is the number of character tags that were considered.
	TagCount int

	// Timestamp is when derivation finished.
	Timestamp time.Time
}

// RequestSubmittedEvent carries the outcome of one BUR submission.
type RequestSubmittedEvent struct {
	// Series is the configured series name.
	Series string

	// Group is the request group that was submitted.
	Group autoimply.RequestGroup

	// Result describes the created request. On a dry run Result.DryRun
	// is true and no BUR exists on the site.
	Result autoimply.SubmissionResult

	// Timestamp is when the submission completed.
	Timestamp time.Time
}

// SeriesFailedEvent is emitted when processing one series fails. The run
// continues with the remaining series.
type SeriesFailedEvent struct {
	// Series is the configured series name.
	Series string

	// Stage names the processing stage that failed, such as "fetch",
	// "derive" or "submit".
	Stage string

	// Err is the failure.
	Err error

	// Timestamp is when the failure was observed.
	Timestamp time.Time
}
