// Sensor host configuration.
//
// Configuration is loaded from a single YAML file. All calibration
// parameters are validated here, at load time; the sensor pipeline never
// re-checks them at runtime.
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"mmu-sensors-go/pkg/errors"
)

// Defaults mirroring the calibration constants of the sensor hardware.
const (
	DefaultEventDelay       = 0.5
	DefaultDebounceInterval = 0.025
	DefaultPullupResistor   = 4700.0
	DefaultSampleTime       = 0.001
	DefaultSampleCount      = 5
	DefaultReportTime       = 0.010

	DefaultAnalogSampleTime = 0.005
	DefaultAnalogReportTime = 0.100

	DefaultCalDia1     = 1.5
	DefaultCalDia2     = 2.0
	DefaultRawDia1     = 9500
	DefaultRawDia2     = 10500
	DefaultMinDiameter = 1.0
)

// ADCSettings holds the sample/report cadence of an ADC pin.
type ADCSettings struct {
	SampleTime  float64 `yaml:"sample_time"`
	SampleCount int     `yaml:"sample_count"`
	ReportTime  float64 `yaml:"report_time"`
}

func (a *ADCSettings) applyDefaults() {
	if a.SampleTime == 0 {
		a.SampleTime = DefaultSampleTime
	}
	if a.SampleCount == 0 {
		a.SampleCount = DefaultSampleCount
	}
	if a.ReportTime == 0 {
		a.ReportTime = DefaultReportTime
	}
}

func (a *ADCSettings) validate(option string) error {
	if a.SampleTime <= 0 {
		return errors.ConfigValidationError(option+".sample_time", "must be above 0")
	}
	if a.SampleCount < 1 {
		return errors.ConfigValidationError(option+".sample_count", "must have minimum of 1")
	}
	if a.ReportTime <= 0 {
		return errors.ConfigValidationError(option+".report_time", "must be above 0")
	}
	return nil
}

// SwitchSensor configures one presence sensor position. With an
// analog_range and a single pin it is an ADC switch sensor; with a
// secondary pin it is a dual-coil hall sensor; with neither range it is a
// plain digital switch driven by button state reports.
type SwitchSensor struct {
	SwitchPin      string      `yaml:"switch_pin"`
	SwitchPin2     string      `yaml:"switch_pin2"`
	AnalogRange    []float64   `yaml:"analog_range"`
	PullupResistor float64     `yaml:"pullup_resistor"`
	ADC            ADCSettings `yaml:"adc"`
}

func (s *SwitchSensor) applyDefaults() {
	if s.PullupResistor == 0 {
		s.PullupResistor = DefaultPullupResistor
	}
	s.ADC.applyDefaults()
}

func (s *SwitchSensor) validate(option string) error {
	if s.SwitchPin == "" {
		return errors.ConfigValidationError(option+".switch_pin", "must be specified")
	}
	if len(s.AnalogRange) > 0 {
		if len(s.AnalogRange) != 2 {
			return errors.ConfigValidationError(option+".analog_range",
				fmt.Sprintf("expected 2 values but counted %d", len(s.AnalogRange)))
		}
		if s.AnalogRange[0] >= s.AnalogRange[1] {
			return errors.ConfigValidationError(option+".analog_range",
				"minimum must be below maximum")
		}
		if s.PullupResistor <= 0 {
			return errors.ConfigValidationError(option+".pullup_resistor", "must be above 0")
		}
	} else if s.SwitchPin2 != "" {
		return errors.ConfigValidationError(option+".switch_pin2",
			"secondary pin requires an analog_range")
	}
	return s.ADC.validate(option + ".adc")
}

// IsAnalog reports whether the sensor reads an ADC value rather than a
// digital button state.
func (s *SwitchSensor) IsAnalog() bool {
	return len(s.AnalogRange) == 2
}

// IsDualCoil reports whether two ADC pins feed this sensor.
func (s *SwitchSensor) IsDualCoil() bool {
	return s.IsAnalog() && s.SwitchPin2 != ""
}

// GatedSensor is a SwitchSensor bound to a gate index.
type GatedSensor struct {
	Gate         int `yaml:"gate"`
	SwitchSensor `yaml:",inline"`
}

// Proportional configures the analog sync-feedback sensor which maps a
// single ADC reading into [-1, 1].
type Proportional struct {
	Pin            string   `yaml:"pin"`
	MaxTension     float64  `yaml:"max_tension"`
	MaxCompression float64  `yaml:"max_compression"`
	NeutralPoint   *float64 `yaml:"neutral_point"`
	Gamma          float64  `yaml:"gamma"`
	SampleTime     float64  `yaml:"sample_time"`
	SampleCount    int      `yaml:"sample_count"`
	ReportTime     float64  `yaml:"report_time"`
}

func (p *Proportional) applyDefaults() {
	if p.Gamma == 0 {
		p.Gamma = 1.0
	}
	if p.SampleTime == 0 {
		p.SampleTime = DefaultAnalogSampleTime
	}
	if p.SampleCount == 0 {
		p.SampleCount = DefaultSampleCount
	}
	if p.ReportTime == 0 {
		p.ReportTime = DefaultAnalogReportTime
	}
	if p.NeutralPoint == nil {
		mid := (p.MaxTension + p.MaxCompression) / 2.0
		p.NeutralPoint = &mid
	}
}

func (p *Proportional) validate(option string) error {
	if p.Pin == "" {
		return errors.ConfigValidationError(option+".pin", "must be specified")
	}
	if p.MaxTension == p.MaxCompression {
		return errors.ConfigValidationError(option+".max_tension",
			"tension and compression extremes must differ")
	}
	rawMin := min(p.MaxTension, p.MaxCompression)
	rawMax := max(p.MaxTension, p.MaxCompression)
	if *p.NeutralPoint < rawMin || *p.NeutralPoint > rawMax {
		return errors.ConfigValidationError(option+".neutral_point",
			fmt.Sprintf("must be within [%g, %g]", rawMin, rawMax))
	}
	if p.Gamma <= 0 {
		return errors.ConfigValidationError(option+".gamma", "must be above 0")
	}
	if p.SampleTime <= 0 || p.ReportTime <= 0 || p.SampleCount < 1 {
		return errors.ConfigValidationError(option, "invalid sample settings")
	}
	return nil
}

// SyncFeedback configures the tension/compression switch pair and the
// optional proportional analog sensor.
type SyncFeedback struct {
	TensionPin     string        `yaml:"tension_pin"`
	CompressionPin string        `yaml:"compression_pin"`
	Analog         *Proportional `yaml:"analog"`
}

// HallEndstop configures the filament-width hall endstop, aliased onto a
// named sensor position (gate, extruder, toolhead or an explicit name).
type HallEndstop struct {
	AttachTo    string      `yaml:"attach_to"`
	ADC1        string      `yaml:"adc1"`
	ADC2        string      `yaml:"adc2"`
	CalDia1     float64     `yaml:"cal_dia1"`
	CalDia2     float64     `yaml:"cal_dia2"`
	RawDia1     int         `yaml:"raw_dia1"`
	RawDia2     int         `yaml:"raw_dia2"`
	MinDiameter float64     `yaml:"min_diameter"`
	ADC         ADCSettings `yaml:"adc"`
}

func (h *HallEndstop) applyDefaults() {
	if h.AttachTo == "" {
		h.AttachTo = "gate"
	}
	if h.CalDia1 == 0 {
		h.CalDia1 = DefaultCalDia1
	}
	if h.CalDia2 == 0 {
		h.CalDia2 = DefaultCalDia2
	}
	if h.RawDia1 == 0 {
		h.RawDia1 = DefaultRawDia1
	}
	if h.RawDia2 == 0 {
		h.RawDia2 = DefaultRawDia2
	}
	if h.MinDiameter == 0 {
		h.MinDiameter = DefaultMinDiameter
	}
	if h.ADC.SampleCount == 0 {
		h.ADC.SampleCount = 8
	}
	h.ADC.applyDefaults()
}

func (h *HallEndstop) validate(option string) error {
	if h.ADC1 == "" || h.ADC2 == "" {
		return errors.ConfigValidationError(option, "adc1 and adc2 pins are required")
	}
	if h.CalDia1 >= h.CalDia2 {
		return errors.ConfigValidationError(option+".cal_dia1",
			"first calibration diameter must be below the second")
	}
	if h.MinDiameter <= 0 {
		return errors.ConfigValidationError(option+".min_diameter", "must be above 0")
	}
	return h.ADC.validate(option + ".adc")
}

// MQTT configures the broker connection for the event/report bridge.
type MQTT struct {
	Broker      string `yaml:"broker"`
	ClientID    string `yaml:"client_id"`
	TopicPrefix string `yaml:"topic_prefix"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
}

// Config is the top-level sensor host configuration.
type Config struct {
	EventDelay          float64 `yaml:"event_delay"`
	DebounceInterval    float64 `yaml:"debounce_interval"`
	InsertRemoveInPrint *bool   `yaml:"insert_remove_in_print"`

	PreGate  []GatedSensor `yaml:"pre_gate"`
	Gate     *SwitchSensor `yaml:"gate"`
	Gear     []GatedSensor `yaml:"gear"`
	Extruder *SwitchSensor `yaml:"extruder"`
	Toolhead *SwitchSensor `yaml:"toolhead"`

	SyncFeedback *SyncFeedback `yaml:"sync_feedback"`
	HallEndstop  *HallEndstop  `yaml:"hall_endstop"`

	MQTT     MQTT   `yaml:"mqtt"`
	LogLevel string `yaml:"log_level"`
}

// Load reads, defaults and validates a configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrConfigSection, "cannot read config file")
	}
	return Parse(data)
}

// Parse parses and validates YAML configuration data.
func Parse(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrap(err, errors.ErrConfigType, "malformed config file")
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.EventDelay == 0 {
		c.EventDelay = DefaultEventDelay
	}
	if c.DebounceInterval == 0 {
		c.DebounceInterval = DefaultDebounceInterval
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.InsertRemoveInPrint == nil {
		t := true
		c.InsertRemoveInPrint = &t
	}
	if c.MQTT.TopicPrefix == "" {
		c.MQTT.TopicPrefix = "mmu/sensors"
	}
	for i := range c.PreGate {
		c.PreGate[i].applyDefaults()
	}
	for i := range c.Gear {
		c.Gear[i].applyDefaults()
	}
	for _, s := range []*SwitchSensor{c.Gate, c.Extruder, c.Toolhead} {
		if s != nil {
			s.applyDefaults()
		}
	}
	if c.SyncFeedback != nil && c.SyncFeedback.Analog != nil {
		c.SyncFeedback.Analog.applyDefaults()
	}
	if c.HallEndstop != nil {
		c.HallEndstop.applyDefaults()
	}
}

// Validate checks every calibration parameter, rejecting malformed
// configuration before any sensor is constructed.
func (c *Config) Validate() error {
	if c.EventDelay < 0 {
		return errors.ConfigValidationError("event_delay", "must have minimum of 0")
	}
	if c.DebounceInterval <= 0 {
		return errors.ConfigValidationError("debounce_interval", "must be above 0")
	}
	seenGates := map[int]struct{}{}
	for i := range c.PreGate {
		g := &c.PreGate[i]
		opt := fmt.Sprintf("pre_gate[%d]", g.Gate)
		if _, dup := seenGates[g.Gate]; dup {
			return errors.ConfigValidationError(opt, "duplicate gate index")
		}
		seenGates[g.Gate] = struct{}{}
		if err := g.validate(opt); err != nil {
			return err
		}
	}
	seenGates = map[int]struct{}{}
	for i := range c.Gear {
		g := &c.Gear[i]
		opt := fmt.Sprintf("gear[%d]", g.Gate)
		if _, dup := seenGates[g.Gate]; dup {
			return errors.ConfigValidationError(opt, "duplicate gate index")
		}
		seenGates[g.Gate] = struct{}{}
		if err := g.validate(opt); err != nil {
			return err
		}
	}
	for opt, s := range map[string]*SwitchSensor{
		"gate": c.Gate, "extruder": c.Extruder, "toolhead": c.Toolhead,
	} {
		if s != nil {
			if err := s.validate(opt); err != nil {
				return err
			}
		}
	}
	if c.SyncFeedback != nil && c.SyncFeedback.Analog != nil {
		if err := c.SyncFeedback.Analog.validate("sync_feedback.analog"); err != nil {
			return err
		}
	}
	if c.HallEndstop != nil {
		if err := c.HallEndstop.validate("hall_endstop"); err != nil {
			return err
		}
	}
	return nil
}
