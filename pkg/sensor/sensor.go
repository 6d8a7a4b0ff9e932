// Package sensor turns periodically-sampled analog and digital filament
// readings into debounced presence state, print-aware events, homing
// triggers and motor-sync feedback.
//
// Copyright (C) 2025 mmu-sensors-go authors
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package sensor

import "mmu-sensors-go/pkg/reactor"

// EventKind is one of the five filament event types.
type EventKind string

const (
	EventInsert EventKind = "insert"
	EventRemove EventKind = "remove"
	EventRunout EventKind = "runout"
	EventClog   EventKind = "clog"
	EventTangle EventKind = "tangle"
)

// EventPolicy maps an event kind to the response command dispatched when
// the event fires. A missing or empty entry disables that event kind.
// Set once at construction, immutable afterward.
type EventPolicy map[EventKind]string

// Response command names understood by the host command executor.
const (
	InsertCommand = "__MMU_SENSOR_INSERT"
	RemoveCommand = "__MMU_SENSOR_REMOVE"
	RunoutCommand = "__MMU_SENSOR_RUNOUT"
	ClogCommand   = "__MMU_SENSOR_CLOG"
	TangleCommand = "__MMU_SENSOR_TANGLE"
)

// Well-known sensor names.
const (
	SensorPreGatePrefix = "mmu_pre_gate"
	SensorGearPrefix    = "mmu_gear"
	SensorGate          = "mmu_gate"
	SensorExtruderEntry = "extruder"
	SensorToolhead      = "toolhead"
	SensorTension       = "sync_feedback_tension"
	SensorCompression   = "sync_feedback_compression"
	SensorProportional  = "sync_feedback_proportional"
)

// warmupDelay is how long after host-ready the first events are held back.
const warmupDelay = 2.0

// Scheduler provides monotonic time and deferred callback execution on
// the host's cooperative loop. *reactor.Reactor satisfies it.
type Scheduler interface {
	Monotonic() float64
	RegisterCallback(cb reactor.Callback)
}

// ScriptRunner executes a response command. A failure is logged by the
// caller and never propagates into the sampling path.
type ScriptRunner interface {
	RunScript(command string) error
}

// PrintOracle reports whether the machine is actively printing.
type PrintOracle interface {
	IsPrinting(eventtime float64) bool
}

// PauseControl requests an immediate print pause. The pause must take
// effect right away, before the runout response script runs.
type PauseControl interface {
	SendPauseCommand()
}

// SampleFunc consumes one raw ADC report: the read time and a normalized
// value in (0, 1).
type SampleFunc func(readTime, readValue float64)

// Sensor is the capability shared by every sensor variant.
type Sensor interface {
	Name() string
	Helper() *RunoutHelper
	Status(eventtime float64) map[string]any
}

// Endstop is the optional motion-endstop capability. Only the ADC-backed
// variants implement it.
type Endstop interface {
	QueryEndstop(printTime float64) bool
	HomeStart(printTime float64, triggered bool) *reactor.Completion
	HomeWait(homeEndTime float64) (float64, error)
}
