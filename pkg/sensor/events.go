// In-process event bus for sync-feedback publication.
//
// Copyright (C) 2025 mmu-sensors-go authors
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package sensor

import "sync"

// SyncFeedbackFunc receives a sync-feedback event: a signed value in
// [-1, 1] (integer-valued for switch-pair aggregation).
type SyncFeedbackFunc func(eventtime float64, value float64)

// Bus fans sync-feedback events out to subscribers. Delivery is
// synchronous in the sender's turn so control loops observe feedback
// with minimal latency.
type Bus struct {
	mu   sync.Mutex
	subs []SyncFeedbackFunc
}

// NewBus creates an event bus.
func NewBus() *Bus {
	return &Bus{}
}

// SubscribeSyncFeedback registers a subscriber.
func (b *Bus) SubscribeSyncFeedback(fn SyncFeedbackFunc) {
	b.mu.Lock()
	b.subs = append(b.subs, fn)
	b.mu.Unlock()
}

// SendSyncFeedback publishes one sync-feedback event.
func (b *Bus) SendSyncFeedback(eventtime float64, value float64) {
	b.mu.Lock()
	subs := make([]SyncFeedbackFunc, len(b.subs))
	copy(subs, b.subs)
	b.mu.Unlock()

	for _, fn := range subs {
		fn(eventtime, value)
	}
}
