// SPDX-License-Identifier: Apache-2.0

// Package retry implements a bounded exponential backoff controller
// built on github.com/cloudflare/backoff, generalized with an attempt
// counter callback and an explicit transient/terminal error
// classification instead of a single pq error code check.
package retry

import (
	"context"
	"errors"
	"time"

	"github.com/cloudflare/backoff"

	"github.com/drphrozen/snowplow-rdb-loader/pkg/loaderrors"
	"github.com/drphrozen/snowplow-rdb-loader/pkg/logging"
)

// Config bounds a single retry sequence.
type Config struct {
	MaxAttempts     int
	InitialBackoff  time.Duration
	MaxBackoff      time.Duration
	CumulativeBound time.Duration // zero means unbounded
}

func DefaultConfig() Config {
	return Config{
		MaxAttempts:    5,
		InitialBackoff: 1 * time.Second,
		MaxBackoff:     1 * time.Minute,
	}
}

// Classifier decides whether an error returned by the action should be
// retried. Terminal errors abort the sequence immediately.
type Classifier func(error) bool

// DefaultClassifier treats loaderrors.TransientDBError (and context
// deadline exceeded, a single-attempt timeout) as
// retryable; everything else, including loaderrors.FatalDBError, is
// terminal.
func DefaultClassifier(err error) bool {
	var transient loaderrors.TransientDBError
	if errors.As(err, &transient) {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}

// Controller runs an action with bounded exponential backoff and jitter,
// tracking attempts through onAttempt (wired to the control surface, C9).
type Controller struct {
	Config     Config
	Classify   Classifier
	Log        logging.Logger
	OnAttempt  func(attempt int)
}

func New(cfg Config, log logging.Logger) *Controller {
	if log == nil {
		log = logging.NewNoop()
	}
	return &Controller{Config: cfg, Classify: DefaultClassifier, Log: log}
}

// Do runs action, retrying on transient failures until MaxAttempts is
// reached, CumulativeBound is exceeded, the error is classified
// terminal, or ctx is cancelled (which reports loaderrors.Shutdown
// rather than the action's own error).
func (c *Controller) Do(ctx context.Context, action func(ctx context.Context) error) error {
	b := backoff.New(c.Config.MaxBackoff, c.Config.InitialBackoff)
	start := time.Now()

	classify := c.Classify
	if classify == nil {
		classify = DefaultClassifier
	}

	attempt := 0
	for {
		attempt++
		if c.OnAttempt != nil {
			c.OnAttempt(attempt)
		}

		err := action(ctx)
		if err == nil {
			return nil
		}

		if !classify(err) {
			return err
		}

		if attempt >= c.Config.MaxAttempts {
			return err
		}
		if c.Config.CumulativeBound > 0 && time.Since(start) >= c.Config.CumulativeBound {
			return err
		}

		delay := b.Duration()
		c.Log.LogRetry(attempt, delay.String(), err)

		select {
		case <-ctx.Done():
			return loaderrors.Shutdown
		case <-time.After(delay):
		}
	}
}
