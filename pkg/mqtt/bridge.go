// Bridge between the broker and the sensor manager: inbound samples
// fan out to the per-pin sensor callbacks, outbound events and
// sync-feedback changes go to the broker.
//
// Copyright (C) 2025 mmu-sensors-go authors
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package mqtt

import (
	"sync"

	"mmu-sensors-go/pkg/log"
	"mmu-sensors-go/pkg/sensor"
)

// PrintTracker exposes the last reported print activity state. It
// satisfies the manager's print oracle and is fed by the bridge.
type PrintTracker struct {
	mu       sync.Mutex
	printing bool
}

// NewPrintTracker creates a tracker reporting "not printing".
func NewPrintTracker() *PrintTracker {
	return &PrintTracker{}
}

// Set records the latest print activity.
func (t *PrintTracker) Set(printing bool) {
	t.mu.Lock()
	t.printing = printing
	t.mu.Unlock()
}

// IsPrinting reports the last known print activity.
func (t *PrintTracker) IsPrinting(eventtime float64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.printing
}

// Bridge wires a sensor manager to a broker client.
type Bridge struct {
	pub     Publisher
	sub     Subscriber
	manager *sensor.Manager
	tracker *PrintTracker
	clock   func() float64
	logger  *log.Logger
}

// NewBridge creates a bridge. The clock supplies the monotonic
// timestamp stamped onto outbound messages.
func NewBridge(pub Publisher, sub Subscriber, manager *sensor.Manager,
	tracker *PrintTracker, clock func() float64, logger *log.Logger) *Bridge {
	if logger == nil {
		logger = log.Default().Component("mqtt")
	}
	return &Bridge{
		pub:     pub,
		sub:     sub,
		manager: manager,
		tracker: tracker,
		clock:   clock,
		logger:  logger,
	}
}

// Start subscribes the inbound topics and hooks sync-feedback
// publication. Sample routing is resolved once at startup; the pin
// set is fixed by configuration.
func (b *Bridge) Start() error {
	samples := b.manager.SampleSinks()
	buttons := b.manager.ButtonSinks()

	err := b.sub.SubscribeRaw(func(pin string, readTime, readValue float64) {
		for _, fn := range samples[pin] {
			fn(readTime, readValue)
		}
	})
	if err != nil {
		return err
	}

	err = b.sub.SubscribeButtons(func(pin string, eventtime float64, pressed bool) {
		for _, fn := range buttons[pin] {
			fn(eventtime, pressed)
		}
	})
	if err != nil {
		return err
	}

	if b.tracker != nil {
		err = b.sub.SubscribePrintState(func(eventtime float64, printing bool) {
			b.tracker.Set(printing)
		})
		if err != nil {
			return err
		}
	}

	b.manager.Bus().SubscribeSyncFeedback(func(eventtime, state float64) {
		fb := SyncFeedbackRecord{Time: eventtime, State: state}
		if err := b.pub.PublishSyncFeedback(fb); err != nil {
			b.logger.Errorf("publish sync feedback: %v", err)
		}
	})
	return nil
}

// PublishStatus sends a full status snapshot.
func (b *Bridge) PublishStatus(eventtime float64) {
	status := StatusRecord{
		Time:    eventtime,
		Sensors: b.manager.StatusSnapshot(eventtime),
	}
	if err := b.pub.PublishStatus(status); err != nil {
		b.logger.Errorf("publish status: %v", err)
	}
}

// NewCommandRunner adapts a publisher into a response command executor.
func NewCommandRunner(pub Publisher, clock func() float64) sensor.ScriptRunner {
	return &commandRunner{pub: pub, clock: clock}
}

// NewPauseController adapts a publisher into a pause control. The pause
// command goes out on the event topic ahead of the runout command.
func NewPauseController(pub Publisher, clock func() float64, logger *log.Logger) sensor.PauseControl {
	if logger == nil {
		logger = log.Default().Component("mqtt")
	}
	return &pauseController{pub: pub, clock: clock, logger: logger}
}

type commandRunner struct {
	pub   Publisher
	clock func() float64
}

func (r *commandRunner) RunScript(command string) error {
	return r.pub.PublishEvent(EventRecord{Time: r.clock(), Command: command})
}

type pauseController struct {
	pub    Publisher
	clock  func() float64
	logger *log.Logger
}

func (p *pauseController) SendPauseCommand() {
	err := p.pub.PublishEvent(EventRecord{Time: p.clock(), Command: "PAUSE"})
	if err != nil {
		p.logger.Errorf("publish pause command: %v", err)
	}
}
