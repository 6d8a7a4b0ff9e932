// Copyright (C) 2025 mmu-sensors-go authors
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package sensor

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type syncPair struct {
	tension     *SimpleSwitchSensor
	compression *SimpleSwitchSensor
	rec         *feedbackRecorder
}

func newSyncPair(t *testing.T) *syncPair {
	t.Helper()
	bus := NewBus()
	rec := &feedbackRecorder{}
	bus.SubscribeSyncFeedback(rec.record)
	agg := NewSyncFeedbackAggregator(bus)

	sched := newFakeSched()
	scripts := &fakeScripts{}
	tension := NewSimpleSwitchSensor(SimpleSwitchSensorConfig{
		Name: SensorTension,
		Pin:  "PB1",
		Helper: RunoutHelperConfig{
			Name:          SensorTension,
			ButtonHandler: agg.TensionHandler,
		},
	}, sched, scripts, &fakePrint{}, &fakePause{})
	compression := NewSimpleSwitchSensor(SimpleSwitchSensorConfig{
		Name: SensorCompression,
		Pin:  "PB2",
		Helper: RunoutHelperConfig{
			Name:          SensorCompression,
			ButtonHandler: agg.CompressionHandler,
		},
	}, sched, scripts, &fakePrint{}, &fakePause{})
	agg.AttachTension(tension.Helper())
	agg.AttachCompression(compression.Helper())
	return &syncPair{tension: tension, compression: compression, rec: rec}
}

func (p *syncPair) last(t *testing.T) float64 {
	t.Helper()
	require.NotEmpty(t, p.rec.values)
	return p.rec.values[len(p.rec.values)-1]
}

func TestSyncFeedbackBothSensors(t *testing.T) {
	p := newSyncPair(t)

	// Tension active alone reads -1.
	p.tension.HandleButtonState(1.0, true)
	require.Equal(t, -1.0, p.last(t))

	// Both active is contradictory, treated as neutral.
	p.compression.HandleButtonState(2.0, true)
	require.Equal(t, 0.0, p.last(t))

	// Compression active alone reads +1.
	p.tension.HandleButtonState(3.0, false)
	require.Equal(t, 1.0, p.last(t))

	// Both idle is neutral.
	p.compression.HandleButtonState(4.0, false)
	require.Equal(t, 0.0, p.last(t))
}

func TestSyncFeedbackEveryReportPublishes(t *testing.T) {
	p := newSyncPair(t)

	// Reports publish even without an edge; control loops resync from
	// repetition.
	p.tension.HandleButtonState(1.0, true)
	p.tension.HandleButtonState(2.0, true)
	p.tension.HandleButtonState(3.0, true)
	require.Equal(t, []float64{-1, -1, -1}, p.rec.values)
}

func TestSyncFeedbackTensionOnly(t *testing.T) {
	bus := NewBus()
	rec := &feedbackRecorder{}
	bus.SubscribeSyncFeedback(rec.record)
	agg := NewSyncFeedbackAggregator(bus)

	sched := newFakeSched()
	tension := NewSimpleSwitchSensor(SimpleSwitchSensorConfig{
		Name: SensorTension,
		Pin:  "PB1",
		Helper: RunoutHelperConfig{
			Name:          SensorTension,
			ButtonHandler: agg.TensionHandler,
		},
	}, sched, &fakeScripts{}, &fakePrint{}, &fakePause{})
	agg.AttachTension(tension.Helper())

	// Without a compression counterpart the single switch swings the
	// full range: released means compression.
	tension.HandleButtonState(1.0, true)
	require.Equal(t, []float64{-1}, rec.values)
	tension.HandleButtonState(2.0, false)
	require.Equal(t, []float64{-1, 1}, rec.values)
}

func TestSyncFeedbackDisabledCounterpart(t *testing.T) {
	p := newSyncPair(t)

	// A disabled counterpart behaves like a missing one.
	p.compression.Helper().SetEnabled(false)
	p.tension.HandleButtonState(1.0, false)
	require.Equal(t, 1.0, p.last(t))
	p.tension.HandleButtonState(2.0, true)
	require.Equal(t, -1.0, p.last(t))
}

func TestSyncFeedbackBothDisabled(t *testing.T) {
	p := newSyncPair(t)

	p.tension.Helper().SetEnabled(false)
	p.compression.Helper().SetEnabled(false)
	p.tension.HandleButtonState(1.0, true)
	require.Equal(t, 0.0, p.last(t))
}

func TestSyncFeedbackSuspendedButtonFeedback(t *testing.T) {
	p := newSyncPair(t)

	// Suspending button feedback silences publication entirely, for
	// example during a filament change.
	p.tension.Helper().EnableButtonFeedback(false)
	p.compression.Helper().EnableButtonFeedback(false)
	p.tension.HandleButtonState(1.0, true)
	p.compression.HandleButtonState(2.0, false)
	require.Empty(t, p.rec.values)

	p.tension.Helper().EnableButtonFeedback(true)
	p.tension.HandleButtonState(3.0, true)
	require.Equal(t, []float64{-1}, p.rec.values)
}
