// SPDX-License-Identifier: Apache-2.0

// Package dispatch implements the discovery & dispatch loop: pulls
// queue messages one at a time, enforces single-flight against the
// control surface, extends the in-flight message's visibility with a
// companion task, resolves discovery, runs the load state machine, and
// applies the ack/alert outcome policy.
package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/drphrozen/snowplow-rdb-loader/pkg/control"
	"github.com/drphrozen/snowplow-rdb-loader/pkg/discovery"
	"github.com/drphrozen/snowplow-rdb-loader/pkg/loaderrors"
	"github.com/drphrozen/snowplow-rdb-loader/pkg/logging"
	"github.com/drphrozen/snowplow-rdb-loader/pkg/monitoring"
	"github.com/drphrozen/snowplow-rdb-loader/pkg/queue"
	"github.com/drphrozen/snowplow-rdb-loader/pkg/registry"
)

// Loader is the subset of *loader.Loader the dispatch loop depends on,
// so tests can substitute an in-memory fake instead of a real warehouse.
type Loader interface {
	Load(ctx context.Context, msg discovery.ShreddingComplete, disc discovery.DataDiscovery) (*time.Time, bool, error)
}

// Dispatcher runs the main discovery stream. The folder monitor and
// no-op scheduler are independent streams composed alongside it by the
// caller (cmd/), sharing only the control surface.
type Dispatcher struct {
	App        string
	Queue      queue.Client
	Lookup     registry.Lookup
	Loader     Loader
	Control    *control.Surface
	Log        logging.Logger
	Monitoring monitoring.Reporter
}

func New(app string, q queue.Client, lookup registry.Lookup, ld Loader, c *control.Surface, log logging.Logger, mon monitoring.Reporter) *Dispatcher {
	if log == nil {
		log = logging.NewNoop()
	}
	if mon == nil {
		mon = monitoring.Noop{}
	}
	return &Dispatcher{App: app, Queue: q, Lookup: lookup, Loader: ld, Control: c, Log: log, Monitoring: mon}
}

// Run pulls messages until ctx is cancelled (graceful) or a load fails
// exceptionally: the error propagates upward, terminating the stream —
// the supervisor is expected to restart the loader.
func (d *Dispatcher) Run(ctx context.Context) error {
	for {
		if err := d.waitUntilReady(ctx); err != nil {
			return nil // ctx cancelled while paused/busy: graceful shutdown
		}

		msg, err := d.Queue.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return loaderrors.RuntimeError{Reason: fmt.Sprintf("queue receive: %s", err)}
		}

		if err := d.handle(ctx, msg); err != nil {
			if errors.Is(err, loaderrors.Shutdown) {
				return nil
			}
			return err
		}
	}
}

// waitUntilReady blocks the discovery stream while isBusy (Loading or
// Paused), waking on every control surface mutation rather than
// polling on a fixed interval.
func (d *Dispatcher) waitUntilReady(ctx context.Context) error {
	if !d.Control.IsBusy() {
		return nil
	}
	ch := d.Control.Signal()
	for d.Control.IsBusy() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ch:
		}
	}
	return nil
}

// handle runs one message end to end: decode, resolve, load, outcome.
// A nil return means the loop continues; a non-nil return (other than
// loaderrors.Shutdown) terminates Run.
func (d *Dispatcher) handle(ctx context.Context, msg queue.Message) error {
	var payload discovery.ShreddingComplete
	if err := json.Unmarshal(msg.Body(), &payload); err != nil {
		// Malformed message: a nack is impossible (already received);
		// alert and ack, then keep consuming.
		d.alertAndAck(ctx, msg, monitoring.Error("malformed message: "+err.Error(), ""))
		return nil
	}
	base := payload.Base.String()

	// Correlation id tying this delivery's log lines and alerts together
	// across redeliveries of the same base.
	loadID := uuid.NewString()
	d.Log.Info("received message", "folder", base, "load_id", loadID)

	disc, err := discovery.Resolve(ctx, d.Lookup, payload)
	if err != nil {
		d.alertAndAck(ctx, msg, monitoring.Error(err.Error(), base))
		return nil
	}

	d.Control.MakeBusy(base)
	defer d.Control.MakeIdle()

	extendCtx, stopExtending := context.WithCancel(ctx)
	extendDone := make(chan struct{})
	go d.extendVisibility(extendCtx, msg, extendDone)

	_, alreadyLoaded, loadErr := d.Loader.Load(ctx, payload, disc)
	stopExtending()
	<-extendDone

	if loadErr != nil {
		// Loader.Load already reported duplicate delivery as an Info
		// alert internally; any other error is exceptional.
		d.Log.Error("load failed", "folder", base, "load_id", loadID, "error", loadErr)
		alert := monitoring.Error(loadErr.Error(), base)
		alert.Tags = map[string]string{"load_id": loadID}
		d.Monitoring.Alert(alert)
		if err := msg.Ack(ctx); err != nil {
			d.Log.Warn("ack after failed load also failed", "folder", base, "error", err)
		}
		return loadErr
	}

	if !alreadyLoaded {
		d.Control.IncrementMessages()
	}
	if err := msg.Ack(ctx); err != nil {
		d.Log.Warn("ack failed", "folder", base, "error", err)
	}
	return nil
}

func (d *Dispatcher) alertAndAck(ctx context.Context, msg queue.Message, alert monitoring.AlertPayload) {
	d.Log.LogAlert(string(alert.Severity), alert.Message, alert.Folder)
	d.Monitoring.Alert(alert)
	if err := msg.Ack(ctx); err != nil {
		d.Log.Warn("ack after alert also failed", "error", err)
	}
}

// extendVisibility renews msg's visibility on a period strictly less
// than the queue's configured timeout, for as long as extendCtx is
// live, then signals extendDone.
func (d *Dispatcher) extendVisibility(extendCtx context.Context, msg queue.Message, extendDone chan<- struct{}) {
	defer close(extendDone)

	period := time.Duration(d.Queue.VisibilityTimeout()) * time.Second / 2
	if period <= 0 {
		period = 30 * time.Second
	}
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-extendCtx.Done():
			return
		case <-ticker.C:
			if err := msg.Extend(extendCtx); err != nil {
				d.Log.Warn("visibility extension failed", "error", err)
			}
		}
	}
}
