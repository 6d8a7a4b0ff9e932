// Copyright (C) 2025 mmu-sensors-go authors
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package mqtt

import "sync"

// FakeClient records published messages for test assertions and lets
// tests inject inbound samples.
type FakeClient struct {
	mu sync.Mutex

	// Events contains all published response commands.
	Events []EventRecord

	// SyncFeedback contains all published sync-feedback changes.
	SyncFeedback []SyncFeedbackRecord

	// Statuses contains all published status snapshots.
	Statuses []StatusRecord

	// PublishError, if set, is returned by every publish method.
	PublishError error

	// Closed tracks if Close was called.
	Closed bool

	rawFn    func(pin string, readTime, readValue float64)
	buttonFn func(pin string, eventtime float64, pressed bool)
	printFn  func(eventtime float64, printing bool)
}

// NewFakeClient creates a FakeClient for testing.
func NewFakeClient() *FakeClient {
	return &FakeClient{}
}

// PublishEvent records the response command.
func (f *FakeClient) PublishEvent(event EventRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PublishError != nil {
		return f.PublishError
	}
	f.Events = append(f.Events, event)
	return nil
}

// PublishSyncFeedback records the sync-feedback change.
func (f *FakeClient) PublishSyncFeedback(fb SyncFeedbackRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PublishError != nil {
		return f.PublishError
	}
	f.SyncFeedback = append(f.SyncFeedback, fb)
	return nil
}

// PublishStatus records the status snapshot.
func (f *FakeClient) PublishStatus(status StatusRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PublishError != nil {
		return f.PublishError
	}
	f.Statuses = append(f.Statuses, status)
	return nil
}

// SubscribeRaw captures the raw sample handler.
func (f *FakeClient) SubscribeRaw(fn func(pin string, readTime, readValue float64)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rawFn = fn
	return nil
}

// SubscribeButtons captures the button state handler.
func (f *FakeClient) SubscribeButtons(fn func(pin string, eventtime float64, pressed bool)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.buttonFn = fn
	return nil
}

// SubscribePrintState captures the print state handler.
func (f *FakeClient) SubscribePrintState(fn func(eventtime float64, printing bool)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.printFn = fn
	return nil
}

// InjectRaw delivers a raw sample to the subscribed handler.
func (f *FakeClient) InjectRaw(pin string, readTime, readValue float64) {
	f.mu.Lock()
	fn := f.rawFn
	f.mu.Unlock()
	if fn != nil {
		fn(pin, readTime, readValue)
	}
}

// InjectButton delivers a button state to the subscribed handler.
func (f *FakeClient) InjectButton(pin string, eventtime float64, pressed bool) {
	f.mu.Lock()
	fn := f.buttonFn
	f.mu.Unlock()
	if fn != nil {
		fn(pin, eventtime, pressed)
	}
}

// InjectPrintState delivers a print state change to the subscribed
// handler.
func (f *FakeClient) InjectPrintState(eventtime float64, printing bool) {
	f.mu.Lock()
	fn := f.printFn
	f.mu.Unlock()
	if fn != nil {
		fn(eventtime, printing)
	}
}

// Close marks the client as closed.
func (f *FakeClient) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Closed = true
	return nil
}

// Reset clears recorded messages.
func (f *FakeClient) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Events = nil
	f.SyncFeedback = nil
	f.Statuses = nil
	f.Closed = false
	f.PublishError = nil
}
