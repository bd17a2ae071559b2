package models

import "time"

type OutcomeKind string

const (
	OutcomeResolved    OutcomeKind = "resolved"
	OutcomeNotFound    OutcomeKind = "not_found"
	OutcomeNeedsReview OutcomeKind = "needs_review"
)

// Outcome is the per-query result of a reconciliation pass.
type Outcome struct {
	Query  ProductQuery   `json:"query"`
	Kind   OutcomeKind    `json:"kind"`
	Record *ProductRecord `json:"record,omitempty"`
	Stage  string         `json:"stage,omitempty"`
	Cached bool           `json:"cached,omitempty"`
	Reason string         `json:"reason,omitempty"`
	Err    error          `json:"-"`
}

func Resolved(q ProductQuery, rec *ProductRecord, stage string) Outcome {
	return Outcome{Query: q, Kind: OutcomeResolved, Record: rec, Stage: stage}
}

func NotFound(q ProductQuery, reason string) Outcome {
	return Outcome{Query: q, Kind: OutcomeNotFound, Reason: reason}
}

func NeedsReview(q ProductQuery, partial *ProductRecord, err error) Outcome {
	o := Outcome{Query: q, Kind: OutcomeNeedsReview, Record: partial, Err: err}
	if err != nil {
		o.Reason = err.Error()
	}
	return o
}

// DeferredItem is a query parked for a later pass or manual review.
type DeferredItem struct {
	Query    ProductQuery `json:"query"`
	Reason   string       `json:"reason"`
	Kind     OutcomeKind  `json:"kind"`
	Attempts int          `json:"attempts"`
	QueuedAt time.Time    `json:"queued_at"`
}
