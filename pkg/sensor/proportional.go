// Proportional sync-feedback sensor: maps a single analog reading into
// a signed value in [-1, 1] around a configured neutral point.
//
// Copyright (C) 2025 mmu-sensors-go authors
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package sensor

import (
	"math"
	"sync"
)

// ProportionalConfig configures the proportional sensor. MaxTension and
// MaxCompression are the raw readings at the mechanical extremes; the
// neutral point must lie between them.
type ProportionalConfig struct {
	Name           string
	Pin            string
	MaxTension     float64
	MaxCompression float64
	NeutralPoint   float64
	Gamma          float64 // power-law shaping, 1 = linear
	Helper         RunoutHelperConfig
}

// ProportionalSensor produces continuous control feedback rather than
// discrete insert/remove events; extremes are published straight to the
// bus, bypassing the debounce and event-policy machinery.
type ProportionalSensor struct {
	name string
	pin  string

	neutral    float64
	gamma      float64
	reversed   bool
	dPos, dNeg float64

	bus    *Bus
	helper *RunoutHelper

	mu          sync.Mutex
	valueRaw    float64
	value       float64
	lastExtreme *float64
}

// NewProportionalSensor creates a proportional sensor. The attached
// runout helper carries only clog/tangle responses plus enable/disable
// plumbing for status visibility.
func NewProportionalSensor(cfg ProportionalConfig, bus *Bus, sched Scheduler,
	scripts ScriptRunner, printing PrintOracle, pause PauseControl) *ProportionalSensor {
	s := &ProportionalSensor{
		name:    cfg.Name,
		pin:     cfg.Pin,
		neutral: cfg.NeutralPoint,
		gamma:   cfg.Gamma,
		bus:     bus,
		helper:  NewRunoutHelper(cfg.Helper, sched, scripts, printing, pause, nil),
	}

	// Two independent linear scales support asymmetric travel on either
	// side of the neutral point.
	const eps = 1e-12
	s.reversed = cfg.MaxCompression < cfg.MaxTension
	if !s.reversed {
		// Tension low, compression high.
		s.dNeg = math.Max(s.neutral-cfg.MaxTension, eps)
		s.dPos = math.Max(cfg.MaxCompression-s.neutral, eps)
	} else {
		// Compression low, tension high.
		s.dPos = math.Max(s.neutral-cfg.MaxCompression, eps)
		s.dNeg = math.Max(cfg.MaxTension-s.neutral, eps)
	}
	return s
}

func (s *ProportionalSensor) Name() string { return s.name }
func (s *ProportionalSensor) Pin() string { return s.pin }
func (s *ProportionalSensor) Helper() *RunoutHelper { return s.helper }

// mapReading maps a raw value around the neutral point into [-1, 1],
// preserving sign through the optional power-law shaping.
func (s *ProportionalSensor) mapReading(vRaw float64) float64 {
	n := s.neutral
	var y float64
	if !s.reversed {
		if vRaw >= n {
			y = (vRaw - n) / s.dPos
		} else {
			y = -(n - vRaw) / s.dNeg
		}
	} else {
		if vRaw <= n {
			y = (n - vRaw) / s.dPos
		} else {
			y = -(vRaw - n) / s.dNeg
		}
	}

	if s.gamma != 1.0 {
		sign := 1.0
		if y < 0 {
			sign = -1.0
		}
		y = math.Pow(math.Abs(y), s.gamma) * sign
	}

	return math.Max(-1.0, math.Min(1.0, y))
}

// ADCCallback consumes one raw sample. A reading at either extreme is
// published immediately, once per extreme, to match the switch-pair
// sensors.
func (s *ProportionalSensor) ADCCallback(readTime, readValue float64) {
	s.mu.Lock()
	s.valueRaw = readValue
	s.value = s.mapReading(readValue)

	var publish bool
	if math.Abs(s.value) >= 1.0 {
		if s.lastExtreme == nil || *s.lastExtreme != s.value {
			v := s.value
			s.lastExtreme = &v
			publish = true
		}
	}
	value := s.value
	s.mu.Unlock()

	if publish {
		s.bus.SendSyncFeedback(readTime, value)
	}
}

// Value returns the current mapped value in [-1, 1].
func (s *ProportionalSensor) Value() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value
}

// Status returns the variant-extended status record.
func (s *ProportionalSensor) Status(eventtime float64) map[string]any {
	s.mu.Lock()
	value, raw := s.value, s.valueRaw
	s.mu.Unlock()

	return map[string]any{
		"enabled":   s.helper.Enabled(),
		"value":     value,
		"value_raw": raw,
	}
}
