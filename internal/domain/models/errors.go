package models

import "fmt"

// ValidationError rejects malformed input at the boundary. It never
// reaches storage.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// UpstreamFetchError reports an unreachable or non-success upstream
// source. The fetcher never retries on its own; the caller decides.
type UpstreamFetchError struct {
	Source string
	Status int
	Detail string
	Err    error
}

func (e *UpstreamFetchError) Error() string {
	msg := e.Detail
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Status != 0 {
		return fmt.Sprintf("upstream %s: status %d: %s", e.Source, e.Status, msg)
	}
	return fmt.Sprintf("upstream %s: %s", e.Source, msg)
}

func (e *UpstreamFetchError) Unwrap() error { return e.Err }

// IndexUnavailableError marks a search index failure. It is downgraded
// to a fallback read or a swallowed write, never surfaced as the
// operation's final failure unless the relational fallback also fails.
type IndexUnavailableError struct {
	Op  string
	Err error
}

func (e *IndexUnavailableError) Error() string {
	return fmt.Sprintf("index %s: %v", e.Op, e.Err)
}

func (e *IndexUnavailableError) Unwrap() error { return e.Err }

// DurabilityError marks a relational store write failure. Fatal to the
// triggering operation, no partial commit.
type DurabilityError struct {
	Op  string
	Err error
}

func (e *DurabilityError) Error() string {
	return fmt.Sprintf("durable %s: %v", e.Op, e.Err)
}

func (e *DurabilityError) Unwrap() error { return e.Err }

// InsufficientHistoryError is the expected outcome of forecasting on
// sparse data, not a system fault.
type InsufficientHistoryError struct {
	Symbol string
	Have   int
	Need   int
}

func (e *InsufficientHistoryError) Error() string {
	return fmt.Sprintf("forecast %s: %d observations, need %d", e.Symbol, e.Have, e.Need)
}
