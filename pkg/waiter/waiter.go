// Package waiter implements deletion of a named cluster resource followed by
// bounded polling until the deletion is observed to have converged.
package waiter

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"
)

const (
	// DefaultMaxWait is the default total time to wait for a deletion to converge.
	DefaultMaxWait = 300 * time.Second
	// DefaultPollInterval is the default pause between existence checks.
	DefaultPollInterval = 5 * time.Second
	// DefaultProgressEvery is the default cadence for progress log lines.
	DefaultProgressEvery = 30 * time.Second
)

// ErrNotFound signals that the resource does not exist. ResourceClient
// implementations return it (possibly wrapped) so callers can tell
// "nothing to delete" apart from a rejected deletion request.
var ErrNotFound = errors.New("resource not found")

// ResourceClient is the minimal view of the cluster the waiter needs.
type ResourceClient interface {
	// Exists reports whether the named resource is still present.
	// "Not found" is (false, nil); any error means the check itself failed
	// and must not be interpreted as presence or absence.
	Exists(ctx context.Context, name string) (bool, error)

	// Delete issues a one-shot deletion request. A missing resource is
	// reported as ErrNotFound.
	Delete(ctx context.Context, name string) error
}

// Outcome is the terminal state of an AwaitAbsence call.
type Outcome int

const (
	// OutcomeUnknown means the wait aborted before reaching a terminal state.
	OutcomeUnknown Outcome = iota
	// OutcomeDeleted means the resource was confirmed absent.
	OutcomeDeleted
	// OutcomeTimedOut means the resource was still present when the wait
	// bound elapsed. Deletion may still be in progress server-side.
	OutcomeTimedOut
)

// String returns the wire/CLI spelling of the outcome.
func (o Outcome) String() string {
	switch o {
	case OutcomeDeleted:
		return "deleted"
	case OutcomeTimedOut:
		return "timed_out"
	default:
		return "unknown"
	}
}

// CheckError wraps a failed existence check. It aborts the wait and is never
// conflated with a deleted or timed-out result.
type CheckError struct {
	Name string
	Err  error
}

func (e *CheckError) Error() string {
	return fmt.Sprintf("existence check for %q failed: %v", e.Name, e.Err)
}

func (e *CheckError) Unwrap() error { return e.Err }

// Config holds the polling parameters for a deletion wait.
type Config struct {
	// Kind names the resource kind in log lines (e.g. "namespace").
	Kind string
	// MaxWait bounds the total wait. Defaults to DefaultMaxWait.
	MaxWait time.Duration
	// PollInterval is the pause between existence checks. Defaults to
	// DefaultPollInterval.
	PollInterval time.Duration
	// ProgressEvery is how often a progress line is logged while the
	// resource is still present. Defaults to DefaultProgressEvery.
	ProgressEvery time.Duration
}

// Validate checks that the polling parameters are usable.
func (c *Config) Validate() error {
	if c.MaxWait <= 0 {
		return fmt.Errorf("max wait must be positive, got %s", c.MaxWait)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive, got %s", c.PollInterval)
	}
	return nil
}

// Result describes how an AwaitAbsence call terminated.
type Result struct {
	Outcome Outcome       `json:"outcome"`
	Elapsed time.Duration `json:"-"`
	Checks  int           `json:"checks"`
	Sleeps  int           `json:"sleeps"`
}

// ElapsedSeconds returns the elapsed wait in whole seconds for reporting.
func (r Result) ElapsedSeconds() int { return int(r.Elapsed / time.Second) }

// Waiter deletes a named resource and polls until it is gone or a bound
// elapses. One deletion/await sequence runs per invocation; the only mutable
// state is local to the polling loop.
type Waiter struct {
	client ResourceClient
	config Config

	// sleep is swapped out in tests so the timeout path runs without
	// wall-clock delay.
	sleep func(time.Duration)
}

// New creates a Waiter with defaults applied to the config.
func New(client ResourceClient, config Config) *Waiter {
	if config.Kind == "" {
		config.Kind = "resource"
	}
	if config.MaxWait == 0 {
		config.MaxWait = DefaultMaxWait
	}
	if config.PollInterval == 0 {
		config.PollInterval = DefaultPollInterval
	}
	if config.ProgressEvery == 0 {
		config.ProgressEvery = DefaultProgressEvery
	}
	return &Waiter{
		client: client,
		config: config,
		sleep:  time.Sleep,
	}
}

// RequestDeletion issues the one-shot deletion call. ErrNotFound passes
// through so the caller can treat an already-gone resource as a non-fatal
// prior condition; any other error means the manager rejected the request.
func (w *Waiter) RequestDeletion(ctx context.Context, name string) error {
	if err := w.client.Delete(ctx, name); err != nil {
		if errors.Is(err, ErrNotFound) {
			return err
		}
		return fmt.Errorf("deletion request for %s %q failed: %w", w.config.Kind, name, err)
	}
	log.Printf("🗑️  Deletion of %s %q requested", w.config.Kind, name)
	return nil
}

// AwaitAbsence polls until the named resource disappears or MaxWait elapses.
//
// The resource is checked immediately, so a deletion that already converged
// returns OutcomeDeleted with zero sleeps. Otherwise the loop sleeps
// PollInterval, adds it to the elapsed total, and re-checks; a post-sleep
// check always runs, including when the final sleep overshoots MaxWait.
// A failed check aborts the wait with a *CheckError.
func (w *Waiter) AwaitAbsence(ctx context.Context, name string) (Result, error) {
	var res Result

	log.Printf("⏳ Waiting up to %s for %s %q to disappear (checking every %s)",
		w.config.MaxWait, w.config.Kind, name, w.config.PollInterval)

	exists, err := w.exists(ctx, name, &res)
	if err != nil {
		return res, err
	}
	if !exists {
		res.Outcome = OutcomeDeleted
		log.Printf("✅ %s %q is gone (%ds elapsed, %d checks)", w.config.Kind, name, res.ElapsedSeconds(), res.Checks)
		return res, nil
	}

	var sinceProgress time.Duration
	for res.Elapsed < w.config.MaxWait {
		if err := ctx.Err(); err != nil {
			return res, &CheckError{Name: name, Err: err}
		}

		w.sleep(w.config.PollInterval)
		res.Sleeps++
		res.Elapsed += w.config.PollInterval
		sinceProgress += w.config.PollInterval

		exists, err := w.exists(ctx, name, &res)
		if err != nil {
			return res, err
		}
		if !exists {
			res.Outcome = OutcomeDeleted
			log.Printf("✅ %s %q deleted after %ds", w.config.Kind, name, res.ElapsedSeconds())
			return res, nil
		}

		if sinceProgress >= w.config.ProgressEvery {
			sinceProgress = 0
			log.Printf("⏳ %s %q still terminating (%ds/%ds elapsed)",
				w.config.Kind, name, res.ElapsedSeconds(), int(w.config.MaxWait/time.Second))
		}
	}

	res.Outcome = OutcomeTimedOut
	log.Printf("⚠️  Gave up waiting for %s %q after %ds; deletion may still be finalizing",
		w.config.Kind, name, res.ElapsedSeconds())
	return res, nil
}

// exists runs one existence check and counts it.
func (w *Waiter) exists(ctx context.Context, name string, res *Result) (bool, error) {
	res.Checks++
	exists, err := w.client.Exists(ctx, name)
	if err != nil {
		return false, &CheckError{Name: name, Err: err}
	}
	return exists, nil
}
