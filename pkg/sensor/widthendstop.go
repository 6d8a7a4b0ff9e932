// Filament-width hall endstop: derives a filament diameter from two ADC
// readings and treats "diameter above minimum" as presence. Lets a
// width sensor double as a homing endstop.
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

// nominalDiameter is the fallback when the calibration span is
// degenerate (zero raw span).
const nominalDiameter = 1.75

// WidthEndstopConfig configures a filament-width hall endstop.
type WidthEndstopConfig struct {
	Name             string
	Pin1, Pin2       string
	CalDia1, CalDia2 float64 // calibration diameters
	RawDia1, RawDia2 int     // raw readings at the calibration diameters
	MinDiameter      float64 // runout trigger diameter
	Helper           RunoutHelperConfig
}

// WidthEndstop measures filament diameter with light smoothing. Only the
// primary callback re-checks the trigger; the secondary callback just
// refreshes its cached reading.
type WidthEndstop struct {
	name       string
	pin1, pin2 string

	dia1, dia2  float64
	raw1, raw2  int
	minDiameter float64

	endstop endstopBridge
	helper  *RunoutHelper

	mu           sync.Mutex
	lastReading  int
	lastReading2 int
	diameter     float64
}

// NewWidthEndstop creates a filament-width hall endstop.
func NewWidthEndstop(cfg WidthEndstopConfig, sched Scheduler, scripts ScriptRunner,
	printing PrintOracle, pause PauseControl) *WidthEndstop {
	s := &WidthEndstop{
		name:        cfg.Name,
		pin1:        cfg.Pin1,
		pin2:        cfg.Pin2,
		dia1:        cfg.CalDia1,
		dia2:        cfg.CalDia2,
		raw1:        cfg.RawDia1,
		raw2:        cfg.RawDia2,
		minDiameter: cfg.MinDiameter,
		helper:      NewRunoutHelper(cfg.Helper, sched, scripts, printing, pause, nil),
	}
	s.endstop.name = cfg.Name
	return s
}

func (s *WidthEndstop) Name() string { return s.name }
func (s *WidthEndstop) Pins() (string, string) { return s.pin1, s.pin2 }
func (s *WidthEndstop) Helper() *RunoutHelper { return s.helper }

// calcDiameter recomputes the smoothed diameter. Called with s.mu held.
func (s *WidthEndstop) calcDiameter() {
	rawSum := s.lastReading + s.lastReading2
	span := float64(s.raw2 - s.raw1)
	if span == 0 {
		// Degenerate calibration, fall back to the nominal diameter.
		s.diameter = nominalDiameter
		return
	}
	slope := (s.dia2 - s.dia1) / span
	diameterNew := math.Round((slope*float64(rawSum-s.raw1)+s.dia1)*100) / 100
	// Slightly faster smoothing than a plain width sensor, for endstop
	// response.
	s.diameter = (2.0*s.diameter + diameterNew) / 3
}

// PrimaryCallback consumes a raw sample from the first ADC and
// re-checks the trigger.
func (s *WidthEndstop) PrimaryCallback(readTime, readValue float64) {
	s.mu.Lock()
	s.lastReading = int(math.Round(readValue * 10000))
	s.calcDiameter()
	isPresent := s.diameter > s.minDiameter
	s.mu.Unlock()

	s.helper.NoteFilamentPresent(readTime, isPresent)
	s.endstop.notePresence(readTime, isPresent)
}

// SecondaryCallback consumes a raw sample from the second ADC.
func (s *WidthEndstop) SecondaryCallback(readTime, readValue float64) {
	s.mu.Lock()
	s.lastReading2 = int(math.Round(readValue * 10000))
	s.calcDiameter()
	s.mu.Unlock()
}

// Diameter returns the current smoothed diameter.
func (s *WidthEndstop) Diameter() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.diameter
}

// QueryEndstop returns current presence. Fast, no side effects.
func (s *WidthEndstop) QueryEndstop(printTime float64) bool {
	return s.helper.FilamentPresent()
}

// HomeStart begins a homing request targeting the given presence state.
func (s *WidthEndstop) HomeStart(printTime float64, triggered bool) *reactor.Completion {
	return s.endstop.homeStart(printTime, triggered, s.helper.FilamentPresent())
}

// HomeWait finishes the homing request, returning the trigger time.
func (s *WidthEndstop) HomeWait(homeEndTime float64) (float64, error) {
	return s.endstop.homeWait()
}

// Status returns the variant-extended status record.
func (s *WidthEndstop) Status(eventtime float64) map[string]any {
	s.mu.Lock()
	dia := s.diameter
	rawSum := s.lastReading + s.lastReading2
	s.mu.Unlock()

	ps := s.helper.Status()
	return map[string]any{
		"filament_detected": ps.FilamentDetected,
		"enabled":           ps.Enabled,
		"runout_suspended":  ps.RunoutSuspended,
		"diameter":          dia,
		"raw":               rawSum,
	}
}
