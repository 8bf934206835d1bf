// SPDX-License-Identifier: Apache-2.0

// Package queue defines the message-queue contract the dispatch loop
// (pkg/dispatch) consumes. The concrete SQS client is out of scope —
// only the shape it must present is specified here.
package queue

import "context"

// Message is one queue delivery. Ack and Extend are the two callbacks
// required: an opaque acknowledgement and a visibility extension used
// by the dispatch loop's companion monitoring task.
type Message interface {
	// Body is the raw JSON payload (a ShreddingComplete record).
	Body() []byte

	// Ack acknowledges successful (or terminally failed) processing of
	// the message, removing it from the queue.
	Ack(ctx context.Context) error

	// Extend renews the message's visibility timeout so a long-running
	// load isn't redelivered to another consumer.
	Extend(ctx context.Context) error
}

// Client receives messages from the queue. Receive blocks (respecting
// ctx) until a message is available or the context is cancelled.
type Client interface {
	Receive(ctx context.Context) (Message, error)

	// VisibilityTimeout is the queue's configured visibility timeout,
	// used to compute the companion extension task's period (it must be
	// strictly less than this value).
	VisibilityTimeout() int64
}
