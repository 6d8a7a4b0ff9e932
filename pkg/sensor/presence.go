// Presence state machine ("runout helper").
//
// Gives precise control of when filament sensor events fire, direct
// access to per-report button feedback, and a remove/runout distinction
// based on print activity.
//
// Copyright (C) 2025 mmu-sensors-go authors
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package sensor

import (
	"fmt"
	"sync"

	"mmu-sensors-go/pkg/log"
	"mmu-sensors-go/pkg/reactor"
)

// SuspendState is the three-valued runout suspension flag.
type SuspendState int

const (
	SuspendUnset SuspendState = iota
	Suspended
	SuspendActive
)

func (s SuspendState) String() string {
	switch s {
	case Suspended:
		return "suspended"
	case SuspendActive:
		return "active"
	default:
		return "unset"
	}
}

// ButtonFeedbackFunc receives every debounced report, edge or not. Used
// for sync-feedback state switches.
type ButtonFeedbackFunc func(eventtime float64, name string, present bool, h *RunoutHelper)

// PresenceStatus is the common part of every sensor's status record.
type PresenceStatus struct {
	FilamentDetected bool `json:"filament_detected"`
	Enabled          bool `json:"enabled"`
	RunoutSuspended  bool `json:"runout_suspended"`
}

// RunoutHelperConfig configures a RunoutHelper.
type RunoutHelperConfig struct {
	Name                string
	EventDelay          float64
	Policy              EventPolicy
	InsertRemoveInPrint bool
	ButtonHandler       ButtonFeedbackFunc
}

// RunoutHelper owns the presence state of one sensor instance and decides
// which event kind, if any, applies to a stable presence transition.
type RunoutHelper struct {
	name string

	sched    Scheduler
	scripts  ScriptRunner
	printing PrintOracle
	pause    PauseControl
	logger   *log.Logger

	eventDelay          float64
	policy              EventPolicy
	insertRemoveInPrint bool
	buttonHandler       ButtonFeedbackFunc

	mu              sync.Mutex
	minEventTime    float64
	filamentPresent bool
	sensorEnabled   bool
	runoutSuspended SuspendState
	buttonSuspended bool
}

// NewRunoutHelper creates a runout helper. Events are blocked until
// HandleReady opens the warm-up window.
func NewRunoutHelper(cfg RunoutHelperConfig, sched Scheduler, scripts ScriptRunner,
	printing PrintOracle, pause PauseControl, logger *log.Logger) *RunoutHelper {
	if logger == nil {
		logger = log.Default().Component("sensor")
	}
	policy := make(EventPolicy, len(cfg.Policy))
	for k, v := range cfg.Policy {
		if v != "" {
			policy[k] = v
		}
	}
	return &RunoutHelper{
		name:                cfg.Name,
		sched:               sched,
		scripts:             scripts,
		printing:            printing,
		pause:               pause,
		logger:              logger,
		eventDelay:          cfg.EventDelay,
		policy:              policy,
		insertRemoveInPrint: cfg.InsertRemoveInPrint,
		buttonHandler:       cfg.ButtonHandler,
		minEventTime:        reactor.NEVER,
		sensorEnabled:       true,
		runoutSuspended:     SuspendUnset,
	}
}

// Name returns the sensor identity the helper reports under.
func (h *RunoutHelper) Name() string { return h.name }

// HandleReady opens the event window a warm-up delay after host ready.
func (h *RunoutHelper) HandleReady(eventtime float64) {
	h.mu.Lock()
	h.minEventTime = eventtime + warmupDelay
	h.mu.Unlock()
}

// HasButtonHandler reports whether per-report feedback is attached.
func (h *RunoutHelper) HasButtonHandler() bool {
	return h.buttonHandler != nil
}

// FilamentPresent returns the latest stable presence reading.
func (h *RunoutHelper) FilamentPresent() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.filamentPresent
}

// Enabled reports whether event dispatch is administratively enabled.
func (h *RunoutHelper) Enabled() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.sensorEnabled
}

// SetEnabled enables or disables event dispatch. The presence value keeps
// tracking readings either way.
func (h *RunoutHelper) SetEnabled(enabled bool) {
	h.mu.Lock()
	h.sensorEnabled = enabled
	h.mu.Unlock()
}

// EnableRunout restores or suspends runout event dispatch.
func (h *RunoutHelper) EnableRunout(restore bool) {
	h.mu.Lock()
	if restore {
		h.runoutSuspended = SuspendActive
	} else {
		h.runoutSuspended = Suspended
	}
	h.mu.Unlock()
}

// EnableButtonFeedback restores or suspends per-report button feedback.
func (h *RunoutHelper) EnableButtonFeedback(restore bool) {
	h.mu.Lock()
	h.buttonSuspended = !restore
	h.mu.Unlock()
}

// NoteFilamentPresent records a stable debounced reading and processes
// the resulting edge, if any.
func (h *RunoutHelper) NoteFilamentPresent(eventtime float64, present bool) {
	h.mu.Lock()
	prev := h.filamentPresent
	h.filamentPresent = present
	feedback := h.buttonHandler != nil && !h.buttonSuspended
	h.mu.Unlock()

	// Button feedback tracks every report, not only edges.
	if feedback {
		h.buttonHandler(eventtime, h.name, present, h)
	}

	if prev == present {
		return
	}

	h.mu.Lock()
	if eventtime < h.minEventTime || !h.sensorEnabled {
		// Too early, throttled, or administratively disabled.
		h.mu.Unlock()
		return
	}
	h.processStateChange(eventtime, present)
	h.mu.Unlock()
}

// processStateChange classifies an edge and arms the dispatch guard.
// Called with h.mu held.
func (h *RunoutHelper) processStateChange(eventtime float64, present bool) {
	now := h.sched.Monotonic()
	isPrinting := h.printing != nil && h.printing.IsPrinting(now)

	if present {
		if _, ok := h.policy[EventInsert]; ok {
			if !isPrinting || h.insertRemoveInPrint {
				h.dispatchLocked(EventInsert, eventtime)
			}
		}
		return
	}

	_, hasRunout := h.policy[EventRunout]
	_, hasRemove := h.policy[EventRemove]
	if isPrinting && h.runoutSuspended != Suspended && hasRunout {
		h.dispatchLocked(EventRunout, eventtime)
	} else if hasRemove && (!isPrinting || h.insertRemoveInPrint) {
		h.dispatchLocked(EventRemove, eventtime)
	}
}

// NoteClogTangle injects an externally-detected clog or tangle event.
// These follow the same single-flight guard as presence edges.
func (h *RunoutHelper) NoteClogTangle(kind EventKind, eventtime float64) {
	if kind != EventClog && kind != EventTangle {
		return
	}
	h.mu.Lock()
	if _, ok := h.policy[kind]; ok && eventtime >= h.minEventTime {
		h.dispatchLocked(kind, eventtime)
	}
	h.mu.Unlock()
}

// dispatchLocked blocks further events and defers the response so it
// never runs inside the sampling callstack. Called with h.mu held.
func (h *RunoutHelper) dispatchLocked(kind EventKind, eventtime float64) {
	h.logger.Debugf("%s: %s event detected, eventtime %.2f", h.name, kind, eventtime)
	h.minEventTime = reactor.NEVER
	h.sched.RegisterCallback(func(float64) {
		h.runEventHandler(kind, eventtime)
	})
}

// runEventHandler executes the deferred response and re-arms the guard.
func (h *RunoutHelper) runEventHandler(kind EventKind, eventtime float64) {
	switch kind {
	case EventRunout, EventClog, EventTangle:
		// Pausing from inside an event requires the pause portion to
		// execute immediately.
		if h.pause != nil {
			h.pause.SendPauseCommand()
		}
	}
	command := h.policy[kind]
	if command != "" {
		command = fmt.Sprintf("%s EVENTTIME=%v", command, eventtime)
	}
	h.execScript(command)
}

// execScript runs the command, if any, and re-arms the dispatch guard
// whether or not it succeeded.
func (h *RunoutHelper) execScript(command string) {
	if command != "" && h.scripts != nil {
		if err := h.scripts.RunScript(command); err != nil {
			h.logger.Errorf("%s: error running sensor handler `%s`: %v", h.name, command, err)
		}
	}
	h.mu.Lock()
	h.minEventTime = h.sched.Monotonic() + h.eventDelay
	h.mu.Unlock()
}

// Status returns the presence part of the sensor status record.
func (h *RunoutHelper) Status() PresenceStatus {
	h.mu.Lock()
	defer h.mu.Unlock()
	return PresenceStatus{
		FilamentDetected: h.filamentPresent,
		Enabled:          h.sensorEnabled,
		RunoutSuspended:  h.runoutSuspended == Suspended,
	}
}
