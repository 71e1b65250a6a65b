package fetch

import "github.com/ymzhao/logleaks/internal/checkpoint"

// OutcomeKind is the terminal classification of one fetch attempt.
type OutcomeKind string

const (
	OutcomeDownloaded      OutcomeKind = "downloaded"
	OutcomeSkippedExisting OutcomeKind = "skipped_existing"
	OutcomeFailedPermanent OutcomeKind = "failed_permanent"
	OutcomeFailedRetryable OutcomeKind = "failed_retryable"
)

// Outcome is the result of handling one work item. Every item ends in
// exactly one Outcome.
type Outcome struct {
	Kind   OutcomeKind
	Bytes  int64  // bytes written on download, or existing size on skip
	Reason string // failure reason, empty on success
}

func Downloaded(bytes int64) Outcome {
	return Outcome{Kind: OutcomeDownloaded, Bytes: bytes}
}

func SkippedExisting(size int64) Outcome {
	return Outcome{Kind: OutcomeSkippedExisting, Bytes: size}
}

func FailedPermanent(reason string) Outcome {
	return Outcome{Kind: OutcomeFailedPermanent, Reason: reason}
}

func FailedRetryable(reason string) Outcome {
	return Outcome{Kind: OutcomeFailedRetryable, Reason: reason}
}

// Failed reports whether the outcome is a failure of either class.
func (o Outcome) Failed() bool {
	return o.Kind == OutcomeFailedPermanent || o.Kind == OutcomeFailedRetryable
}

// Bucket maps the outcome onto its checkpoint tally.
func (o Outcome) Bucket() checkpoint.Bucket {
	switch o.Kind {
	case OutcomeDownloaded:
		return checkpoint.BucketSucceeded
	case OutcomeSkippedExisting:
		return checkpoint.BucketSkippedExisting
	default:
		return checkpoint.BucketFailed
	}
}
