// Sync-feedback aggregation: combines the tension and compression
// switch states into one signed control signal for motor-sync
// correction.
//
// Copyright (C) 2025 mmu-sensors-go authors
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package sensor

import "sync"

// SyncFeedbackAggregator derives a value in {-1, 0, 1} from the paired
// tension/compression sensors and publishes it synchronously on every
// stable edge of either sensor. -1 means tension, +1 compression.
type SyncFeedbackAggregator struct {
	bus *Bus

	mu          sync.Mutex
	tension     *RunoutHelper
	compression *RunoutHelper
}

// NewSyncFeedbackAggregator creates an aggregator publishing to bus.
func NewSyncFeedbackAggregator(bus *Bus) *SyncFeedbackAggregator {
	return &SyncFeedbackAggregator{bus: bus}
}

// AttachTension injects the tension-side helper.
func (a *SyncFeedbackAggregator) AttachTension(h *RunoutHelper) {
	a.mu.Lock()
	a.tension = h
	a.mu.Unlock()
}

// AttachCompression injects the compression-side helper.
func (a *SyncFeedbackAggregator) AttachCompression(h *RunoutHelper) {
	a.mu.Lock()
	a.compression = h
	a.mu.Unlock()
}

// counterpart returns the enabled flag and effective state of a helper:
// a missing or disabled counterpart reads as inactive.
func counterpart(h *RunoutHelper) (enabled, state bool) {
	if h == nil {
		return false, false
	}
	enabled = h.Enabled()
	if enabled {
		state = h.FilamentPresent()
	}
	return enabled, state
}

// TensionHandler is the button-feedback callback of the tension sensor.
func (a *SyncFeedbackAggregator) TensionHandler(eventtime float64, name string, tensionState bool, h *RunoutHelper) {
	a.mu.Lock()
	comp := a.compression
	a.mu.Unlock()

	tensionEnabled := h.Enabled()
	hasCompression, compressionState := counterpart(comp)

	var value int
	switch {
	case tensionEnabled && hasCompression:
		switch {
		case tensionState == compressionState:
			value = 0
		case tensionState:
			value = -1
		default:
			value = 1
		}
	case tensionEnabled:
		if tensionState {
			value = -1
		} else {
			value = 1
		}
	case hasCompression:
		if compressionState {
			value = 1
		} else {
			value = -1
		}
	default:
		value = 0
	}

	a.bus.SendSyncFeedback(eventtime, float64(value))
}

// CompressionHandler is the button-feedback callback of the compression
// sensor.
func (a *SyncFeedbackAggregator) CompressionHandler(eventtime float64, name string, compressionState bool, h *RunoutHelper) {
	a.mu.Lock()
	tens := a.tension
	a.mu.Unlock()

	compressionEnabled := h.Enabled()
	hasTension, tensionState := counterpart(tens)

	var value int
	switch {
	case compressionEnabled && hasTension:
		switch {
		case tensionState == compressionState:
			value = 0
		case compressionState:
			value = 1
		default:
			value = -1
		}
	case compressionEnabled:
		if compressionState {
			value = 1
		} else {
			value = -1
		}
	case hasTension:
		if tensionState {
			value = -1
		} else {
			value = 1
		}
	default:
		value = 0
	}

	a.bus.SendSyncFeedback(eventtime, float64(value))
}
