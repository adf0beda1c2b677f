// Package source holds one adapter per external content API. Each adapter
// turns a generic Request into a provider query, normalizes the provider's
// response into result.SearchResult values and reports failures as a typed
// Outcome instead of an error.
package source

import (
	"context"
	"errors"
	"fmt"

	"github.com/FranksOps/quarry/internal/result"
	"github.com/FranksOps/quarry/pkg/httpclient"
)

// Request is the provider-independent query handed to every adapter.
type Request struct {
	Query   string
	Filters result.Filters
}

// Adapter translates a Request for one provider. Search never panics and
// never returns a Go error; failures are described by the Outcome.
type Adapter interface {
	ID() result.Source
	Search(ctx context.Context, req Request) Outcome
}

// FailureKind classifies why an adapter produced no results.
type FailureKind string

const (
	FailureNone      FailureKind = ""
	FailureTransport FailureKind = "transport"
	FailureStatus    FailureKind = "status"
	FailureDecode    FailureKind = "decode"
	FailureConfig    FailureKind = "config"
)

// Outcome is the result of one adapter invocation.
type Outcome struct {
	Source  result.Source
	Results []result.SearchResult
	Kind    FailureKind
	Err     error
	// Cached is set when the payload came from the cache without network I/O.
	Cached bool
	// Fallback is set when a degraded retry produced the payload.
	Fallback bool
}

// OK reports whether the adapter succeeded, possibly with zero results.
func (o Outcome) OK() bool { return o.Err == nil }

// Failure is an error carrying its FailureKind.
type Failure struct {
	Kind FailureKind
	Err  error
}

func (f *Failure) Error() string { return fmt.Sprintf("%s: %v", f.Kind, f.Err) }

func (f *Failure) Unwrap() error { return f.Err }

func fail(kind FailureKind, format string, args ...any) error {
	return &Failure{Kind: kind, Err: fmt.Errorf(format, args...)}
}

// classify maps an error from the fetch path onto a FailureKind.
func classify(err error) FailureKind {
	var f *Failure
	if errors.As(err, &f) {
		return f.Kind
	}
	var statusErr *httpclient.StatusError
	if errors.As(err, &statusErr) {
		return FailureStatus
	}
	var decodeErr *httpclient.DecodeError
	if errors.As(err, &decodeErr) {
		return FailureDecode
	}
	return FailureTransport
}

// demoKey is sent when a provider key is not configured. Providers reject
// it, which the adapters report as FailureConfig.
const demoKey = "DEMO_KEY"

func keyOrDemo(key string) (string, bool) {
	if key == "" {
		return demoKey, true
	}
	return key, false
}

// rejected reports whether err is the provider refusing credentials.
func rejected(err error) bool {
	var statusErr *httpclient.StatusError
	if !errors.As(err, &statusErr) {
		return false
	}
	switch statusErr.Code {
	case 400, 401, 403:
		return true
	}
	return false
}

// configFailure rewrites a credential rejection as FailureConfig when the
// adapter was running on the placeholder key.
func configFailure(err error, demo bool) error {
	if err != nil && demo && rejected(err) {
		return &Failure{Kind: FailureConfig, Err: fmt.Errorf("no API key configured: %w", err)}
	}
	return err
}

// withConfigFailure applies configFailure to a finished Outcome.
func withConfigFailure(o Outcome, demo bool) Outcome {
	if o.Err == nil {
		return o
	}
	if err := configFailure(o.Err, demo); err != o.Err {
		o.Err = err
		o.Kind = FailureConfig
	}
	return o
}
