// Simple digital switch sensor: presence is the button state itself,
// debounced upstream by the acquisition layer.
//
// Copyright (C) 2025 mmu-sensors-go authors
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package sensor

// SimpleSwitchSensorConfig configures a plain mechanical 0/1 switch.
type SimpleSwitchSensorConfig struct {
	Name   string
	Pin    string
	Helper RunoutHelperConfig
}

// SimpleSwitchSensor wraps a runout helper around a digital switch pin.
type SimpleSwitchSensor struct {
	name   string
	pin    string
	helper *RunoutHelper
}

// NewSimpleSwitchSensor creates a simple switch sensor.
func NewSimpleSwitchSensor(cfg SimpleSwitchSensorConfig, sched Scheduler,
	scripts ScriptRunner, printing PrintOracle, pause PauseControl) *SimpleSwitchSensor {
	return &SimpleSwitchSensor{
		name:   cfg.Name,
		pin:    cfg.Pin,
		helper: NewRunoutHelper(cfg.Helper, sched, scripts, printing, pause, nil),
	}
}

func (s *SimpleSwitchSensor) Name() string { return s.name }
func (s *SimpleSwitchSensor) Pin() string { return s.pin }
func (s *SimpleSwitchSensor) Helper() *RunoutHelper { return s.helper }

// HandleButtonState consumes one debounced button report.
func (s *SimpleSwitchSensor) HandleButtonState(eventtime float64, pressed bool) {
	s.helper.NoteFilamentPresent(eventtime, pressed)
}

// Status returns the sensor status record.
func (s *SimpleSwitchSensor) Status(eventtime float64) map[string]any {
	ps := s.helper.Status()
	return map[string]any{
		"filament_detected": ps.FilamentDetected,
		"enabled":           ps.Enabled,
		"runout_suspended":  ps.RunoutSuspended,
	}
}
