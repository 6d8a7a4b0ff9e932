// ADC switch sensor: analog buffer "endstops" read through a pullup
// divider.
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

// SwitchSensorConfig configures an ADC switch sensor.
type SwitchSensorConfig struct {
	Name             string
	Pin              string
	Pullup           float64 // pullup resistance in ohms
	AMin, AMax       float64 // presence resistance range, inclusive
	DebounceInterval float64 // seconds a candidate must hold
	Helper           RunoutHelperConfig
}

// SwitchSensor converts one raw analog sample into an equivalent
// resistance and reports presence when the resistance falls inside the
// calibrated range. Implements the endstop contract.
type SwitchSensor struct {
	name       string
	pin        string
	pullup     float64
	aMin, aMax float64

	debounce *DebounceGate
	endstop  endstopBridge
	helper   *RunoutHelper

	mu           sync.Mutex
	lastReadTime float64
	lastRaw      float64
}

// NewSwitchSensor creates an ADC switch sensor.
func NewSwitchSensor(cfg SwitchSensorConfig, sched Scheduler, scripts ScriptRunner,
	printing PrintOracle, pause PauseControl) *SwitchSensor {
	s := &SwitchSensor{
		name:     cfg.Name,
		pin:      cfg.Pin,
		pullup:   cfg.Pullup,
		aMin:     cfg.AMin,
		aMax:     cfg.AMax,
		debounce: NewDebounceGate(cfg.DebounceInterval),
		helper:   NewRunoutHelper(cfg.Helper, sched, scripts, printing, pause, nil),
	}
	s.endstop.name = cfg.Name
	return s
}

func (s *SwitchSensor) Name() string { return s.name }
func (s *SwitchSensor) Pin() string { return s.pin }
func (s *SwitchSensor) Helper() *RunoutHelper { return s.helper }

// resistance converts a normalized ADC value to the divider resistance,
// clamping the value to avoid division blow-up on open circuit.
func (s *SwitchSensor) resistance(readValue float64) float64 {
	adc := math.Max(0.00001, math.Min(0.99999, readValue))
	return s.pullup * adc / (1.0 - adc)
}

// ADCCallback consumes one raw sample at the report cadence.
func (s *SwitchSensor) ADCCallback(readTime, readValue float64) {
	s.mu.Lock()
	s.lastReadTime = readTime
	s.lastRaw = readValue
	r := s.resistance(readValue)
	isPresent := r >= s.aMin && r <= s.aMax
	accepted := s.debounce.Update(readTime, isPresent)
	s.mu.Unlock()

	if !accepted {
		return
	}

	// Only bother the helper on a presence change, unless button
	// feedback needs every report.
	if s.helper.HasButtonHandler() || isPresent != s.helper.FilamentPresent() {
		s.helper.NoteFilamentPresent(readTime, isPresent)
	}
	s.endstop.notePresence(readTime, isPresent)
}

// QueryEndstop returns current presence. Fast, no side effects.
func (s *SwitchSensor) QueryEndstop(printTime float64) bool {
	return s.helper.FilamentPresent()
}

// HomeStart begins a homing request targeting the given presence state.
func (s *SwitchSensor) HomeStart(printTime float64, triggered bool) *reactor.Completion {
	return s.endstop.homeStart(printTime, triggered, s.helper.FilamentPresent())
}

// HomeWait finishes the homing request, returning the trigger time.
func (s *SwitchSensor) HomeWait(homeEndTime float64) (float64, error) {
	return s.endstop.homeWait()
}

// Status returns the variant-extended status record.
func (s *SwitchSensor) Status(eventtime float64) map[string]any {
	s.mu.Lock()
	raw := s.lastRaw
	s.mu.Unlock()

	ps := s.helper.Status()
	return map[string]any{
		"filament_detected": ps.FilamentDetected,
		"enabled":           ps.Enabled,
		"runout_suspended":  ps.RunoutSuspended,
		"resistance":        math.Round(s.resistance(raw)),
		"raw_value":         raw,
	}
}
