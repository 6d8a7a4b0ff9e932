// Dual-coil hall sensor: two independently sampled ADC readings whose
// sum passes a trigger threshold.
//
// Copyright (C) 2025 mmu-sensors-go authors
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package sensor

import (
	"math"
	"sync"

	"mmu-sensors-go/pkg/reactor"
)

// HallSensorConfig configures a dual-coil hall sensor.
type HallSensorConfig struct {
	Name       string
	Pin1, Pin2 string
	AMin       float64 // trigger threshold = AMin / 10000
	Helper     RunoutHelperConfig
}

// HallSensor reads two coils on independent report cadences. The primary
// pin always re-evaluates presence; the secondary pin only does so while
// a homing operation is active, so steady-state presence may briefly
// reflect a stale secondary reading. Implements the endstop contract.
type HallSensor struct {
	name       string
	pin1, pin2 string
	threshold  float64

	endstop endstopBridge
	helper  *RunoutHelper

	mu              sync.Mutex
	val1, val2      float64
	present         bool
	lastReadTime    float64
	lastTriggerTime float64
}

// NewHallSensor creates a dual-coil hall sensor.
func NewHallSensor(cfg HallSensorConfig, sched Scheduler, scripts ScriptRunner,
	printing PrintOracle, pause PauseControl) *HallSensor {
	s := &HallSensor{
		name:      cfg.Name,
		pin1:      cfg.Pin1,
		pin2:      cfg.Pin2,
		threshold: cfg.AMin / 10000.0,
		helper:    NewRunoutHelper(cfg.Helper, sched, scripts, printing, pause, nil),
	}
	s.endstop.name = cfg.Name
	return s
}

func (s *HallSensor) Name() string { return s.name }
func (s *HallSensor) Pins() (string, string) { return s.pin1, s.pin2 }
func (s *HallSensor) Helper() *RunoutHelper { return s.helper }

// PrimaryCallback consumes a raw sample from the first coil.
func (s *HallSensor) PrimaryCallback(readTime, readValue float64) {
	s.mu.Lock()
	s.val1 = readValue
	s.lastReadTime = readTime
	present := (s.val1 + s.val2) > s.threshold
	changed := present != s.present
	s.present = present
	if present {
		s.lastTriggerTime = readTime
	}
	s.mu.Unlock()

	if changed {
		if s.helper.HasButtonHandler() || present != s.helper.FilamentPresent() {
			s.helper.NoteFilamentPresent(readTime, present)
		}
	}
	s.endstop.notePresence(readTime, present)
}

// SecondaryCallback consumes a raw sample from the second coil. Outside
// homing the reading is cached but presence is not re-evaluated; the
// primary callback frequency is sufficient for runout detection.
func (s *HallSensor) SecondaryCallback(readTime, readValue float64) {
	s.mu.Lock()
	s.val2 = readValue
	s.lastReadTime = readTime

	if !s.endstop.homingActive() {
		s.mu.Unlock()
		return
	}

	present := (s.val1 + s.val2) > s.threshold
	changed := present != s.present
	s.present = present
	if present {
		s.lastTriggerTime = readTime
	}
	s.mu.Unlock()

	if changed {
		if s.helper.HasButtonHandler() || present != s.helper.FilamentPresent() {
			s.helper.NoteFilamentPresent(readTime, present)
		}
	}
	s.endstop.notePresence(readTime, present)
}

// LastTriggerTime returns the time presence last read true.
func (s *HallSensor) LastTriggerTime() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastTriggerTime
}

// QueryEndstop returns current presence. Fast, no side effects.
func (s *HallSensor) QueryEndstop(printTime float64) bool {
	return s.helper.FilamentPresent()
}

// HomeStart begins a homing request targeting the given presence state.
func (s *HallSensor) HomeStart(printTime float64, triggered bool) *reactor.Completion {
	return s.endstop.homeStart(printTime, triggered, s.helper.FilamentPresent())
}

// HomeWait finishes the homing request, returning the trigger time.
func (s *HallSensor) HomeWait(homeEndTime float64) (float64, error) {
	return s.endstop.homeWait()
}

// Status returns the variant-extended status record.
func (s *HallSensor) Status(eventtime float64) map[string]any {
	s.mu.Lock()
	v1, v2 := s.val1, s.val2
	s.mu.Unlock()

	ps := s.helper.Status()
	return map[string]any{
		"filament_detected": ps.FilamentDetected,
		"enabled":           ps.Enabled,
		"runout_suspended":  ps.RunoutSuspended,
		"signal":            math.Round((v1 + v2) * 10000),
		"raw1":              v1,
		"raw2":              v2,
	}
}
