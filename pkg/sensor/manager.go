// Sensor manager: builds every configured sensor instance, owns the
// name lookup, fans out the ready signal, and serves the administrative
// query/set operations.
//
// Copyright (C) 2025 mmu-sensors-go authors
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package sensor

import (
	"fmt"
	"sort"
	"sync"

	"mmu-sensors-go/pkg/config"
	"mmu-sensors-go/pkg/errors"
	"mmu-sensors-go/pkg/log"
)

// Deps are the external collaborators injected into every sensor.
type Deps struct {
	Sched    Scheduler
	Scripts  ScriptRunner
	Printing PrintOracle
	Pause    PauseControl
	Bus      *Bus
	Logger   *log.Logger
}

// ButtonFunc consumes one debounced digital button report.
type ButtonFunc func(eventtime float64, pressed bool)

// Manager owns all sensor instances built from configuration.
type Manager struct {
	deps   Deps
	logger *log.Logger

	mu         sync.RWMutex
	sensors    map[string]Sensor
	endstops   map[string]Endstop
	samples    map[string][]SampleFunc
	buttons    map[string][]ButtonFunc
	aggregator *SyncFeedbackAggregator
}

// NewManager builds sensors per the configuration. The config must
// already be validated.
func NewManager(cfg *config.Config, deps Deps) (*Manager, error) {
	if deps.Logger == nil {
		deps.Logger = log.Default().Component("sensor")
	}
	if deps.Bus == nil {
		deps.Bus = NewBus()
	}
	m := &Manager{
		deps:       deps,
		logger:     deps.Logger,
		sensors:    make(map[string]Sensor),
		endstops:   make(map[string]Endstop),
		samples:    make(map[string][]SampleFunc),
		buttons:    make(map[string][]ButtonFunc),
		aggregator: NewSyncFeedbackAggregator(deps.Bus),
	}

	insertRemoveInPrint := cfg.InsertRemoveInPrint != nil && *cfg.InsertRemoveInPrint

	for i := range cfg.PreGate {
		g := &cfg.PreGate[i]
		name := fmt.Sprintf("%s_%d", SensorPreGatePrefix, g.Gate)
		gate := g.Gate
		err := m.createSensor(cfg, &g.SwitchSensor, name, &gate, eventFlags{
			insert: true, remove: true, runout: true,
			insertRemoveInPrint: insertRemoveInPrint,
		}, nil)
		if err != nil {
			return nil, err
		}
	}

	if cfg.Gate != nil {
		err := m.createSensor(cfg, cfg.Gate, SensorGate, nil, eventFlags{runout: true}, nil)
		if err != nil {
			return nil, err
		}
	}

	for i := range cfg.Gear {
		g := &cfg.Gear[i]
		name := fmt.Sprintf("%s_%d", SensorGearPrefix, g.Gate)
		gate := g.Gate
		err := m.createSensor(cfg, &g.SwitchSensor, name, &gate, eventFlags{runout: true}, nil)
		if err != nil {
			return nil, err
		}
	}

	if cfg.Extruder != nil {
		err := m.createSensor(cfg, cfg.Extruder, SensorExtruderEntry, nil,
			eventFlags{insert: true, runout: true}, nil)
		if err != nil {
			return nil, err
		}
	}

	if cfg.Toolhead != nil {
		err := m.createSensor(cfg, cfg.Toolhead, SensorToolhead, nil, eventFlags{}, nil)
		if err != nil {
			return nil, err
		}
	}

	if sf := cfg.SyncFeedback; sf != nil {
		if sf.TensionPin != "" {
			s := m.createSimpleSwitch(SensorTension, sf.TensionPin,
				eventFlags{clog: true, tangle: true}, 0, m.aggregator.TensionHandler)
			m.aggregator.AttachTension(s.Helper())
		}
		if sf.CompressionPin != "" {
			s := m.createSimpleSwitch(SensorCompression, sf.CompressionPin,
				eventFlags{clog: true, tangle: true}, 0, m.aggregator.CompressionHandler)
			m.aggregator.AttachCompression(s.Helper())
		}
		if sf.Analog != nil {
			m.createProportional(sf.Analog)
		}
	}

	if he := cfg.HallEndstop; he != nil {
		if err := m.createWidthEndstop(cfg, he); err != nil {
			return nil, err
		}
	}

	return m, nil
}

// eventFlags selects which event kinds a sensor responds to.
type eventFlags struct {
	insert, remove, runout, clog, tangle bool
	insertRemoveInPrint                  bool
}

// buildPolicy assembles the response commands for the enabled event
// kinds, parameterized with the sensor name and optional gate index.
func buildPolicy(name string, gate *int, f eventFlags) EventPolicy {
	suffix := fmt.Sprintf(" SENSOR=%s", name)
	if gate != nil {
		suffix += fmt.Sprintf(" GATE=%d", *gate)
	}
	policy := EventPolicy{}
	if f.insert {
		policy[EventInsert] = InsertCommand + suffix
	}
	if f.remove {
		policy[EventRemove] = RemoveCommand + suffix
	}
	if f.runout {
		policy[EventRunout] = RunoutCommand + suffix
	}
	if f.clog {
		policy[EventClog] = ClogCommand + suffix
	}
	if f.tangle {
		policy[EventTangle] = TangleCommand + suffix
	}
	return policy
}

func (m *Manager) helperConfig(name string, gate *int, f eventFlags, eventDelay float64,
	handler ButtonFeedbackFunc) RunoutHelperConfig {
	return RunoutHelperConfig{
		Name:                name,
		EventDelay:          eventDelay,
		Policy:              buildPolicy(name, gate, f),
		InsertRemoveInPrint: f.insertRemoveInPrint,
		ButtonHandler:       handler,
	}
}

// createSensor builds the right variant for one configured position:
// dual-coil hall with a secondary pin, ADC switch with an analog range,
// plain digital switch otherwise.
func (m *Manager) createSensor(cfg *config.Config, sc *config.SwitchSensor, name string,
	gate *int, f eventFlags, handler ButtonFeedbackFunc) error {
	if _, exists := m.sensors[name]; exists {
		return errors.ConfigValidationError(name, "sensor already defined")
	}

	helperCfg := m.helperConfig(name, gate, f, cfg.EventDelay, handler)

	switch {
	case sc.IsDualCoil():
		s := NewHallSensor(HallSensorConfig{
			Name:   name,
			Pin1:   sc.SwitchPin,
			Pin2:   sc.SwitchPin2,
			AMin:   sc.AnalogRange[0],
			Helper: helperCfg,
		}, m.deps.Sched, m.deps.Scripts, m.deps.Printing, m.deps.Pause)
		m.sensors[name] = s
		m.endstops[name] = s
		m.samples[sc.SwitchPin] = append(m.samples[sc.SwitchPin], s.PrimaryCallback)
		m.samples[sc.SwitchPin2] = append(m.samples[sc.SwitchPin2], s.SecondaryCallback)
		m.logger.Infof("added hall sensor: %s", name)

	case sc.IsAnalog():
		s := NewSwitchSensor(SwitchSensorConfig{
			Name:             name,
			Pin:              sc.SwitchPin,
			Pullup:           sc.PullupResistor,
			AMin:             sc.AnalogRange[0],
			AMax:             sc.AnalogRange[1],
			DebounceInterval: cfg.DebounceInterval,
			Helper:           helperCfg,
		}, m.deps.Sched, m.deps.Scripts, m.deps.Printing, m.deps.Pause)
		m.sensors[name] = s
		m.endstops[name] = s
		m.samples[sc.SwitchPin] = append(m.samples[sc.SwitchPin], s.ADCCallback)
		m.logger.Infof("added analog switch sensor: %s", name)

	default:
		s := NewSimpleSwitchSensor(SimpleSwitchSensorConfig{
			Name:   name,
			Pin:    sc.SwitchPin,
			Helper: helperCfg,
		}, m.deps.Sched, m.deps.Scripts, m.deps.Printing, m.deps.Pause)
		m.sensors[name] = s
		m.buttons[sc.SwitchPin] = append(m.buttons[sc.SwitchPin], s.HandleButtonState)
		m.logger.Infof("added simple switch sensor: %s", name)
	}
	return nil
}

func (m *Manager) createSimpleSwitch(name, pin string, f eventFlags, eventDelay float64,
	handler ButtonFeedbackFunc) *SimpleSwitchSensor {
	s := NewSimpleSwitchSensor(SimpleSwitchSensorConfig{
		Name:   name,
		Pin:    pin,
		Helper: m.helperConfig(name, nil, f, eventDelay, handler),
	}, m.deps.Sched, m.deps.Scripts, m.deps.Printing, m.deps.Pause)
	m.sensors[name] = s
	m.buttons[pin] = append(m.buttons[pin], s.HandleButtonState)
	m.logger.Infof("added simple switch sensor: %s", name)
	return s
}

func (m *Manager) createProportional(pc *config.Proportional) {
	name := SensorProportional
	s := NewProportionalSensor(ProportionalConfig{
		Name:           name,
		Pin:            pc.Pin,
		MaxTension:     pc.MaxTension,
		MaxCompression: pc.MaxCompression,
		NeutralPoint:   *pc.NeutralPoint,
		Gamma:          pc.Gamma,
		Helper:         m.helperConfig(name, nil, eventFlags{clog: true, tangle: true}, 0, nil),
	}, m.deps.Bus, m.deps.Sched, m.deps.Scripts, m.deps.Printing, m.deps.Pause)
	m.sensors[name] = s
	m.samples[pc.Pin] = append(m.samples[pc.Pin], s.ADCCallback)
	m.logger.Infof("added proportional sync-feedback sensor: %s", name)
}

func (m *Manager) createWidthEndstop(cfg *config.Config, he *config.HallEndstop) error {
	name := he.AttachTo
	switch name {
	case "gate":
		name = SensorGate
	case "extruder":
		name = SensorExtruderEntry
	case "toolhead":
		name = SensorToolhead
	}
	if _, exists := m.sensors[name]; exists {
		return errors.ConfigValidationError("hall_endstop.attach_to",
			fmt.Sprintf("sensor '%s' already defined", name))
	}

	s := NewWidthEndstop(WidthEndstopConfig{
		Name:        name,
		Pin1:        he.ADC1,
		Pin2:        he.ADC2,
		CalDia1:     he.CalDia1,
		CalDia2:     he.CalDia2,
		RawDia1:     he.RawDia1,
		RawDia2:     he.RawDia2,
		MinDiameter: he.MinDiameter,
		Helper: m.helperConfig(name, nil,
			eventFlags{insert: true, runout: true}, cfg.EventDelay, nil),
	}, m.deps.Sched, m.deps.Scripts, m.deps.Printing, m.deps.Pause)
	m.sensors[name] = s
	m.endstops[name] = s
	m.samples[he.ADC1] = append(m.samples[he.ADC1], s.PrimaryCallback)
	m.samples[he.ADC2] = append(m.samples[he.ADC2], s.SecondaryCallback)
	m.logger.Infof("added hall width endstop: %s", name)
	return nil
}

// Bus returns the sync-feedback event bus.
func (m *Manager) Bus() *Bus { return m.deps.Bus }

// Lookup returns a sensor by name.
func (m *Manager) Lookup(name string) (Sensor, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sensors[name]
	return s, ok
}

// Endstop returns the endstop capability of a sensor, if it has one.
func (m *Manager) Endstop(name string) (Endstop, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.endstops[name]
	return e, ok
}

// Names returns all sensor names, sorted.
func (m *Manager) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.sensors))
	for name := range m.sensors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SampleSinks returns the ADC pin to sample-callback routing.
func (m *Manager) SampleSinks() map[string][]SampleFunc {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string][]SampleFunc, len(m.samples))
	for pin, fns := range m.samples {
		out[pin] = append([]SampleFunc(nil), fns...)
	}
	return out
}

// ButtonSinks returns the digital pin to button-callback routing.
func (m *Manager) ButtonSinks() map[string][]ButtonFunc {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string][]ButtonFunc, len(m.buttons))
	for pin, fns := range m.buttons {
		out[pin] = append([]ButtonFunc(nil), fns...)
	}
	return out
}

// HandleReady opens the warm-up window on every sensor.
func (m *Manager) HandleReady(eventtime float64) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, s := range m.sensors {
		s.Helper().HandleReady(eventtime)
	}
}

// Query returns the presence message for one sensor.
func (m *Manager) Query(name string) (string, error) {
	s, ok := m.Lookup(name)
	if !ok {
		return "", errors.UnknownSensorError(name)
	}
	if s.Helper().FilamentPresent() {
		return fmt.Sprintf("MMU Sensor %s: filament detected", name), nil
	}
	return fmt.Sprintf("MMU Sensor %s: filament not detected", name), nil
}

// SetEnabled enables or disables event dispatch for one sensor.
func (m *Manager) SetEnabled(name string, enabled bool) error {
	s, ok := m.Lookup(name)
	if !ok {
		return errors.UnknownSensorError(name)
	}
	s.Helper().SetEnabled(enabled)
	return nil
}

// StatusSnapshot returns the status record of every sensor.
func (m *Manager) StatusSnapshot(eventtime float64) map[string]map[string]any {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]map[string]any, len(m.sensors))
	for name, s := range m.sensors {
		out[name] = s.Status(eventtime)
	}
	return out
}
