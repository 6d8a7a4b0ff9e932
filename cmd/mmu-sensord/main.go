// mmu-sensord runs the MMU filament sensor host: it subscribes raw ADC
// samples and button states from an MQTT broker, drives the debounce
// and presence machinery, and publishes response commands, sync
// feedback and status snapshots back out.
//
// Copyright (C) 2025 mmu-sensors-go authors
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"mmu-sensors-go/pkg/config"
	"mmu-sensors-go/pkg/log"
	"mmu-sensors-go/pkg/mqtt"
	"mmu-sensors-go/pkg/reactor"
	"mmu-sensors-go/pkg/sensor"
)

// statusInterval is how often a retained status snapshot is published,
// in seconds on the reactor timescale.
const statusInterval = 1.0

func main() {
	configPath := pflag.StringP("config", "c", "mmu-sensors.yaml", "configuration file path")
	broker := pflag.String("broker", "", "MQTT broker URL, overrides the config file")
	logLevel := pflag.String("log-level", "", "log level (debug, info, warn, error)")
	pflag.Parse()

	if err := run(*configPath, *broker, *logLevel); err != nil {
		fmt.Fprintf(os.Stderr, "mmu-sensord: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, broker, logLevel string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if broker != "" {
		cfg.MQTT.Broker = broker
	}
	if cfg.MQTT.Broker == "" {
		return fmt.Errorf("no MQTT broker configured")
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}

	logger := log.Default()
	logger.SetLevel(log.ParseLevel(cfg.LogLevel))
	logger.Infof("starting mmu-sensord, broker %s, prefix %s",
		cfg.MQTT.Broker, cfg.MQTT.TopicPrefix)

	client, err := mqtt.NewRealClient(cfg.MQTT)
	if err != nil {
		return err
	}
	defer client.Close()

	re := reactor.New()
	tracker := mqtt.NewPrintTracker()

	manager, err := sensor.NewManager(cfg, sensor.Deps{
		Sched:    re,
		Scripts:  mqtt.NewCommandRunner(client, re.Monotonic),
		Printing: tracker,
		Pause:    mqtt.NewPauseController(client, re.Monotonic, logger.Component("mqtt")),
		Bus:      sensor.NewBus(),
		Logger:   logger.Component("sensor"),
	})
	if err != nil {
		return err
	}
	logger.Infof("configured sensors: %v", manager.Names())

	bridge := mqtt.NewBridge(client, client, manager, tracker,
		re.Monotonic, logger.Component("mqtt"))
	if err := bridge.Start(); err != nil {
		return err
	}

	re.Run()
	manager.HandleReady(re.Monotonic())

	re.RegisterTimer(func(eventtime float64) float64 {
		bridge.PublishStatus(eventtime)
		return eventtime + statusInterval
	}, re.Monotonic()+statusInterval)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	logger.Infof("received %s, shutting down", sig)

	re.End()
	re.Wait()
	return nil
}
