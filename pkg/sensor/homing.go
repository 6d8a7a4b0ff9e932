// Homing/endstop bridge shared by the ADC-backed sensor variants.
//
// Copyright (C) 2025 mmu-sensors-go authors
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package sensor

import (
	"sync"

	"mmu-sensors-go/pkg/errors"
	"mmu-sensors-go/pkg/reactor"
)

// endstopBridge implements the motion-endstop half of a sensor: a
// single-assignment completion fulfilled when presence reaches the
// requested target state. One outstanding request at a time; a new
// HomeStart abandons the previous completion.
type endstopBridge struct {
	name string

	mu              sync.Mutex
	completion      *reactor.Completion
	lastTriggerTime *float64
	homing          bool
	triggered       bool
}

// HomeStart begins a homing request. If presence already matches the
// target, the completion is fulfilled immediately with printTime.
func (e *endstopBridge) homeStart(printTime float64, triggered, present bool) *reactor.Completion {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.completion = reactor.NewCompletion()
	e.lastTriggerTime = nil
	e.homing = true
	e.triggered = triggered

	if present == triggered {
		t := printTime
		e.lastTriggerTime = &t
		e.completion.Complete(printTime)
	}
	return e.completion
}

// notePresence fulfills the outstanding completion on the first reading
// matching the homing target. No-op outside homing.
func (e *endstopBridge) notePresence(readTime float64, present bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.homing || present != e.triggered || e.completion == nil {
		return
	}
	t := readTime
	e.lastTriggerTime = &t
	e.completion.Complete(readTime)
	e.completion = nil
}

// homeWait finishes the homing request. It is an error if the completion
// was never fulfilled: the motion system moved through its full travel
// without the sensor reaching the expected state.
func (e *endstopBridge) homeWait() (float64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.homing = false
	e.completion = nil

	if e.lastTriggerTime == nil {
		return 0, errors.NoTriggerError(e.name)
	}
	return *e.lastTriggerTime, nil
}

// homingActive reports whether a homing request is outstanding.
func (e *endstopBridge) homingActive() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.homing
}
