// Package mqtt bridges the sensor host to an MQTT broker: response
// commands and sensor events go out, raw ADC samples and button states
// come in. Publishing is abstracted for testing.
//
// Copyright (C) 2025 mmu-sensors-go authors
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package mqtt

import (
	"encoding/json"
	"fmt"
)

// Topic suffixes below the configured prefix.
const (
	TopicEvent        = "event"
	TopicSyncFeedback = "sync_feedback"
	TopicStatus       = "status"
	TopicRaw          = "raw"    // raw/<pin>
	TopicButton       = "button" // button/<pin>
	TopicPrintState   = "print_state"
)

// Publisher publishes sensor host messages to a broker.
type Publisher interface {
	// PublishEvent sends a response command. Returns an error if
	// publishing fails; the caller logs and carries on.
	PublishEvent(event EventRecord) error

	// PublishSyncFeedback sends one sync-feedback state change.
	PublishSyncFeedback(fb SyncFeedbackRecord) error

	// PublishStatus sends a retained status snapshot.
	PublishStatus(status StatusRecord) error

	// Close disconnects from the broker.
	Close() error
}

// Subscriber delivers inbound raw samples and button states.
type Subscriber interface {
	// SubscribeRaw routes every raw/<pin> sample to fn.
	SubscribeRaw(fn func(pin string, readTime, readValue float64)) error

	// SubscribeButtons routes every button/<pin> state to fn.
	SubscribeButtons(fn func(pin string, eventtime float64, pressed bool)) error

	// SubscribePrintState routes print activity changes to fn.
	SubscribePrintState(fn func(eventtime float64, printing bool)) error
}

// EventRecord is the outbound payload for one dispatched response
// command.
type EventRecord struct {
	Time    float64 `json:"time"`
	Command string  `json:"command"`
}

// SyncFeedbackRecord is the outbound payload for one sync-feedback
// state change: -1 tension, 0 neutral, +1 compression, or a
// proportional value in between.
type SyncFeedbackRecord struct {
	Time  float64 `json:"time"`
	State float64 `json:"state"`
}

// StatusRecord is the outbound payload for a full status snapshot.
type StatusRecord struct {
	Time    float64                   `json:"time"`
	Sensors map[string]map[string]any `json:"sensors"`
}

// RawSample is the inbound payload on raw/<pin>.
type RawSample struct {
	Time  float64 `json:"time"`
	Value float64 `json:"value"`
}

// ButtonSample is the inbound payload on button/<pin>.
type ButtonSample struct {
	Time    float64 `json:"time"`
	Pressed bool    `json:"pressed"`
}

// PrintState is the inbound payload on print_state.
type PrintState struct {
	Time     float64 `json:"time"`
	Printing bool    `json:"printing"`
}

// FormatEvent creates the JSON payload for a response command.
func FormatEvent(event EventRecord) ([]byte, error) {
	return json.Marshal(event)
}

// FormatSyncFeedback creates the JSON payload for a sync-feedback
// state change.
func FormatSyncFeedback(fb SyncFeedbackRecord) ([]byte, error) {
	return json.Marshal(fb)
}

// FormatStatus creates the JSON payload for a status snapshot.
func FormatStatus(status StatusRecord) ([]byte, error) {
	return json.Marshal(status)
}

// ParseRawSample decodes one raw/<pin> payload.
func ParseRawSample(payload []byte) (RawSample, error) {
	var s RawSample
	if err := json.Unmarshal(payload, &s); err != nil {
		return RawSample{}, fmt.Errorf("malformed raw sample: %w", err)
	}
	return s, nil
}

// ParseButtonSample decodes one button/<pin> payload.
func ParseButtonSample(payload []byte) (ButtonSample, error) {
	var s ButtonSample
	if err := json.Unmarshal(payload, &s); err != nil {
		return ButtonSample{}, fmt.Errorf("malformed button sample: %w", err)
	}
	return s, nil
}

// ParsePrintState decodes one print_state payload.
func ParsePrintState(payload []byte) (PrintState, error) {
	var s PrintState
	if err := json.Unmarshal(payload, &s); err != nil {
		return PrintState{}, fmt.Errorf("malformed print state: %w", err)
	}
	return s, nil
}
