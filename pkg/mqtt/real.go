// Copyright (C) 2025 mmu-sensors-go authors
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package mqtt

import (
	"fmt"
	"strings"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"mmu-sensors-go/pkg/config"
)

// RealClient publishes to and subscribes from an actual MQTT broker.
type RealClient struct {
	client paho.Client
	prefix string
}

// NewRealClient connects to the broker named in the configuration.
func NewRealClient(cfg config.MQTT) (*RealClient, error) {
	clientID := cfg.ClientID
	if clientID == "" {
		clientID = "mmu-sensors"
	}
	opts := paho.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	client := paho.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return nil, fmt.Errorf("connection timeout")
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}

	return &RealClient{
		client: client,
		prefix: cfg.TopicPrefix,
	}, nil
}

func (c *RealClient) topic(suffix string) string {
	return c.prefix + "/" + suffix
}

// publish sends one payload with a short delivery timeout so a slow
// broker never stalls the sampling path.
func (c *RealClient) publish(topic string, qos byte, retained bool, payload []byte) error {
	token := c.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("publish timeout on %s", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish on %s: %w", topic, err)
	}
	return nil
}

// PublishEvent sends a response command. QoS 1: a lost runout command
// means a print failure.
func (c *RealClient) PublishEvent(event EventRecord) error {
	payload, err := FormatEvent(event)
	if err != nil {
		return fmt.Errorf("format event: %w", err)
	}
	return c.publish(c.topic(TopicEvent), 1, false, payload)
}

// PublishSyncFeedback sends one sync-feedback state change. QoS 0, a
// fresher value follows soon anyway.
func (c *RealClient) PublishSyncFeedback(fb SyncFeedbackRecord) error {
	payload, err := FormatSyncFeedback(fb)
	if err != nil {
		return fmt.Errorf("format sync feedback: %w", err)
	}
	return c.publish(c.topic(TopicSyncFeedback), 0, false, payload)
}

// PublishStatus sends a retained status snapshot so late subscribers
// see the latest sensor state immediately.
func (c *RealClient) PublishStatus(status StatusRecord) error {
	payload, err := FormatStatus(status)
	if err != nil {
		return fmt.Errorf("format status: %w", err)
	}
	return c.publish(c.topic(TopicStatus), 0, true, payload)
}

// SubscribeRaw routes every raw/<pin> sample to fn. The pin name is the
// last topic level.
func (c *RealClient) SubscribeRaw(fn func(pin string, readTime, readValue float64)) error {
	topic := c.topic(TopicRaw) + "/+"
	token := c.client.Subscribe(topic, 0, func(_ paho.Client, msg paho.Message) {
		sample, err := ParseRawSample(msg.Payload())
		if err != nil {
			return
		}
		fn(lastLevel(msg.Topic()), sample.Time, sample.Value)
	})
	if !token.WaitTimeout(10 * time.Second) {
		return fmt.Errorf("subscribe timeout on %s", topic)
	}
	return token.Error()
}

// SubscribeButtons routes every button/<pin> state to fn.
func (c *RealClient) SubscribeButtons(fn func(pin string, eventtime float64, pressed bool)) error {
	topic := c.topic(TopicButton) + "/+"
	token := c.client.Subscribe(topic, 0, func(_ paho.Client, msg paho.Message) {
		sample, err := ParseButtonSample(msg.Payload())
		if err != nil {
			return
		}
		fn(lastLevel(msg.Topic()), sample.Time, sample.Pressed)
	})
	if !token.WaitTimeout(10 * time.Second) {
		return fmt.Errorf("subscribe timeout on %s", topic)
	}
	return token.Error()
}

// SubscribePrintState routes print activity changes to fn.
func (c *RealClient) SubscribePrintState(fn func(eventtime float64, printing bool)) error {
	topic := c.topic(TopicPrintState)
	token := c.client.Subscribe(topic, 1, func(_ paho.Client, msg paho.Message) {
		state, err := ParsePrintState(msg.Payload())
		if err != nil {
			return
		}
		fn(state.Time, state.Printing)
	})
	if !token.WaitTimeout(10 * time.Second) {
		return fmt.Errorf("subscribe timeout on %s", topic)
	}
	return token.Error()
}

// Close disconnects from the broker.
func (c *RealClient) Close() error {
	c.client.Disconnect(1000)
	return nil
}

func lastLevel(topic string) string {
	if i := strings.LastIndexByte(topic, '/'); i >= 0 {
		return topic[i+1:]
	}
	return topic
}
