// Package autoimply derives costume-tag implication proposals for Danbooru.
// It parses character tags into base name and qualifier tokens, computes
// which tags should imply which, and assembles the results into bulk update
// request (BUR) scripts ready for submission.
package autoimply

// BURStatus is the lifecycle status of a bulk update request on the site.
type BURStatus string

const (
	BURPending   BURStatus = "pending"
	BURApproved  BURStatus = "approved"
	BURRejected  BURStatus = "rejected"
	BURProcessed BURStatus = "processed"
)

// Default configuration values
const (
	// DefaultMaxBURsPerTopic caps how many pending BURs a forum topic may
	// accumulate before submission stops for that series.
	DefaultMaxBURsPerTopic = 10

	// DefaultMaxLinesPerBUR is the number of imply lines packed into a
	// single bulk update request.
	DefaultMaxLinesPerBUR = 1

	// MinPostCount is the post count below which discovered tags are
	// ignored; tiny tags are usually typos or one-off variants.
	MinPostCount = 5
)
