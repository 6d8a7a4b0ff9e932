// Test doubles shared by the sensor package tests.
//
// Copyright (C) 2025 mmu-sensors-go authors
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package sensor

import (
	"sync"

	"mmu-sensors-go/pkg/reactor"
)

// fakeSched is a deterministic scheduler: time advances only on demand
// and deferred callbacks run only when the test drains them.
type fakeSched struct {
	mu    sync.Mutex
	now   float64
	queue []reactor.Callback
}

func newFakeSched() *fakeSched {
	return &fakeSched{}
}

func (s *fakeSched) Monotonic() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

func (s *fakeSched) Advance(d float64) {
	s.mu.Lock()
	s.now += d
	s.mu.Unlock()
}

func (s *fakeSched) SetTime(t float64) {
	s.mu.Lock()
	s.now = t
	s.mu.Unlock()
}

func (s *fakeSched) RegisterCallback(cb reactor.Callback) {
	s.mu.Lock()
	s.queue = append(s.queue, cb)
	s.mu.Unlock()
}

// RunPending drains the deferred callback queue in submission order and
// returns how many callbacks ran.
func (s *fakeSched) RunPending() int {
	s.mu.Lock()
	pending := s.queue
	s.queue = nil
	now := s.now
	s.mu.Unlock()

	for _, cb := range pending {
		cb(now)
	}
	return len(pending)
}

// Pending returns the number of queued callbacks without running them.
func (s *fakeSched) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// fakeScripts records every executed response command.
type fakeScripts struct {
	mu       sync.Mutex
	commands []string
	err      error
}

func (f *fakeScripts) RunScript(command string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.commands = append(f.commands, command)
	return f.err
}

func (f *fakeScripts) Commands() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.commands...)
}

// fakePrint reports a fixed print activity state.
type fakePrint struct {
	mu       sync.Mutex
	printing bool
}

func (f *fakePrint) IsPrinting(eventtime float64) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.printing
}

func (f *fakePrint) Set(printing bool) {
	f.mu.Lock()
	f.printing = printing
	f.mu.Unlock()
}

// fakePause counts pause requests.
type fakePause struct {
	mu    sync.Mutex
	count int
}

func (f *fakePause) SendPauseCommand() {
	f.mu.Lock()
	f.count++
	f.mu.Unlock()
}

func (f *fakePause) Count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.count
}
