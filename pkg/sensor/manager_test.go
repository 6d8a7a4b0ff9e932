// Copyright (C) 2025 mmu-sensors-go authors
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package sensor

import (
	"testing"

	"github.com/stretchr/testify/require"

	"mmu-sensors-go/pkg/config"
	"mmu-sensors-go/pkg/errors"
)

const managerYAML = `
pre_gate:
  - gate: 0
    switch_pin: PA0
    analog_range: [100, 200]
  - gate: 1
    switch_pin: PA1
    analog_range: [100, 200]
gate:
  switch_pin: PA2
  switch_pin2: PA3
  analog_range: [1000, 4000]
extruder:
  switch_pin: PB0
toolhead:
  switch_pin: PB1
gear:
  - gate: 0
    switch_pin: PA4
    analog_range: [100, 200]
sync_feedback:
  tension_pin: PB2
  compression_pin: PB3
  analog:
    pin: PA5
    max_tension: 0.2
    max_compression: 0.8
mqtt:
  broker: tcp://localhost:1883
`

func newTestManager(t *testing.T) (*Manager, *fakeSched, *fakeScripts) {
	t.Helper()
	cfg, err := config.Parse([]byte(managerYAML))
	require.NoError(t, err)

	sched := newFakeSched()
	scripts := &fakeScripts{}
	m, err := NewManager(cfg, Deps{
		Sched:    sched,
		Scripts:  scripts,
		Printing: &fakePrint{},
		Pause:    &fakePause{},
		Bus:      NewBus(),
	})
	require.NoError(t, err)
	return m, sched, scripts
}

func TestManagerBuildsAllSensors(t *testing.T) {
	m, _, _ := newTestManager(t)

	require.Equal(t, []string{
		"extruder",
		"mmu_gate",
		"mmu_gear_0",
		"mmu_pre_gate_0",
		"mmu_pre_gate_1",
		"sync_feedback_compression",
		"sync_feedback_proportional",
		"sync_feedback_tension",
		"toolhead",
	}, m.Names())
}

func TestManagerLookupAndEndstops(t *testing.T) {
	m, _, _ := newTestManager(t)

	_, ok := m.Lookup("mmu_gate")
	require.True(t, ok)
	_, ok = m.Lookup("bogus")
	require.False(t, ok)

	// ADC-backed sensors expose the endstop contract, digital ones do
	// not.
	_, ok = m.Endstop("mmu_gate")
	require.True(t, ok)
	_, ok = m.Endstop("mmu_pre_gate_0")
	require.True(t, ok)
	_, ok = m.Endstop("extruder")
	require.False(t, ok)
	_, ok = m.Endstop("toolhead")
	require.False(t, ok)
}

func TestManagerSampleRouting(t *testing.T) {
	m, _, _ := newTestManager(t)

	samples := m.SampleSinks()
	require.Len(t, samples["PA0"], 1)
	require.Len(t, samples["PA2"], 1, "dual-coil primary")
	require.Len(t, samples["PA3"], 1, "dual-coil secondary")
	require.Len(t, samples["PA5"], 1, "proportional")

	buttons := m.ButtonSinks()
	require.Len(t, buttons["PB0"], 1)
	require.Len(t, buttons["PB2"], 1)
	require.Len(t, buttons["PB3"], 1)
}

func TestManagerEventFlow(t *testing.T) {
	m, sched, scripts := newTestManager(t)
	m.HandleReady(0)

	// Digital extruder sensor: insert on a press.
	buttons := m.ButtonSinks()
	for _, fn := range buttons["PB0"] {
		fn(5.0, true)
	}
	require.Equal(t, 1, sched.Pending())
	sched.SetTime(5.0)
	sched.RunPending()
	require.Equal(t, []string{"__MMU_SENSOR_INSERT SENSOR=extruder EVENTTIME=5"},
		scripts.Commands())
}

func TestManagerGateParameter(t *testing.T) {
	m, sched, scripts := newTestManager(t)
	m.HandleReady(0)

	samples := m.SampleSinks()
	adc := adcFor(150)
	for i := 0; i < 5; i++ {
		for _, fn := range samples["PA0"] {
			fn(5.0+float64(i)*0.010, adc)
		}
	}
	require.Equal(t, 1, sched.Pending())
	sched.SetTime(5.1)
	sched.RunPending()
	require.Equal(t, []string{"__MMU_SENSOR_INSERT SENSOR=mmu_pre_gate_0 GATE=0 EVENTTIME=5.03"},
		scripts.Commands())
}

func TestManagerToolheadHasNoEvents(t *testing.T) {
	m, sched, _ := newTestManager(t)
	m.HandleReady(0)

	buttons := m.ButtonSinks()
	for _, fn := range buttons["PB1"] {
		fn(5.0, true)
		fn(6.0, false)
	}
	require.Equal(t, 0, sched.Pending())

	s, ok := m.Lookup("toolhead")
	require.True(t, ok)
	require.False(t, s.Helper().FilamentPresent())
}

func TestManagerQuery(t *testing.T) {
	m, _, _ := newTestManager(t)

	msg, err := m.Query("toolhead")
	require.NoError(t, err)
	require.Equal(t, "MMU Sensor toolhead: filament not detected", msg)

	buttons := m.ButtonSinks()
	for _, fn := range buttons["PB1"] {
		fn(5.0, true)
	}
	msg, err = m.Query("toolhead")
	require.NoError(t, err)
	require.Equal(t, "MMU Sensor toolhead: filament detected", msg)

	_, err = m.Query("bogus")
	require.Error(t, err)
	require.True(t, errors.Is(err, errors.ErrSensorUnknown))
}

func TestManagerSetEnabled(t *testing.T) {
	m, _, _ := newTestManager(t)

	require.NoError(t, m.SetEnabled("mmu_gate", false))
	s, _ := m.Lookup("mmu_gate")
	require.False(t, s.Helper().Enabled())

	require.Error(t, m.SetEnabled("bogus", false))
}

func TestManagerStatusSnapshot(t *testing.T) {
	m, _, _ := newTestManager(t)

	snap := m.StatusSnapshot(0)
	require.Len(t, snap, 9)
	require.Contains(t, snap["mmu_gate"], "signal")
	require.Contains(t, snap["mmu_pre_gate_0"], "resistance")
	require.Contains(t, snap["sync_feedback_proportional"], "value")
	require.Contains(t, snap["toolhead"], "filament_detected")
}

func TestManagerDuplicateNameRejected(t *testing.T) {
	cfg, err := config.Parse([]byte(`
gate:
  switch_pin: PA2
hall_endstop:
  attach_to: gate
  adc1: PA6
  adc2: PA7
mqtt:
  broker: tcp://localhost:1883
`))
	require.NoError(t, err)

	_, err = NewManager(cfg, Deps{
		Sched:    newFakeSched(),
		Scripts:  &fakeScripts{},
		Printing: &fakePrint{},
		Pause:    &fakePause{},
	})
	require.Error(t, err)
	require.True(t, errors.Is(err, errors.ErrConfigValidation))
}

func TestManagerHallEndstopAlias(t *testing.T) {
	cfg, err := config.Parse([]byte(`
hall_endstop:
  attach_to: gate
  adc1: PA6
  adc2: PA7
mqtt:
  broker: tcp://localhost:1883
`))
	require.NoError(t, err)

	m, err := NewManager(cfg, Deps{
		Sched:    newFakeSched(),
		Scripts:  &fakeScripts{},
		Printing: &fakePrint{},
		Pause:    &fakePause{},
	})
	require.NoError(t, err)

	// attach_to: gate registers under the canonical gate sensor name.
	_, ok := m.Lookup("mmu_gate")
	require.True(t, ok)
	_, ok = m.Endstop("mmu_gate")
	require.True(t, ok)
}
