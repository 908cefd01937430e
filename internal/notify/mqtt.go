// internal/notify/mqtt.go
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/signalnine/hostwatch/internal/config"
	"github.com/signalnine/hostwatch/internal/logging"
	"github.com/signalnine/hostwatch/internal/protocol"
)

// publishQoS is at-least-once delivery
const publishQoS = 1

// publisher is the part of mqtt.Client the sink needs
type publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// MQTTPublisher forwards anomaly events to a broker
type MQTTPublisher struct {
	client publisher
	conn   mqtt.Client
	topic  string // may contain {server}
	logger *zap.Logger
}

// Dial connects to the configured broker
func Dial(cfg config.MQTTConfig, logger *zap.Logger) (*MQTTPublisher, error) {
	logger = logging.OrNop(logger)

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	opts.SetUsername(cfg.Username)
	opts.SetPassword(cfg.Password)
	opts.SetAutoReconnect(true)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetOnConnectHandler(func(mqtt.Client) {
		logger.Info("mqtt connection established", zap.String("broker", cfg.Broker))
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		logger.Warn("mqtt connection lost", zap.Error(err))
	})

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("connect to mqtt broker %s: %w", cfg.Broker, token.Error())
	}

	p := newPublisher(client, cfg.Topic, logger)
	p.conn = client
	return p, nil
}

func newPublisher(client publisher, topic string, logger *zap.Logger) *MQTTPublisher {
	return &MQTTPublisher{client: client, topic: topic, logger: logging.OrNop(logger)}
}

// RecordAnomaly publishes ev as JSON to the topic for its server
func (p *MQTTPublisher) RecordAnomaly(ctx context.Context, ev protocol.AnomalyEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode anomaly event: %w", err)
	}

	topic := formatTopic(p.topic, ev.Snapshot.Server)
	token := p.client.Publish(topic, publishQoS, false, payload)

	select {
	case <-token.Done():
	case <-ctx.Done():
		return ctx.Err()
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}

	p.logger.Debug("published anomaly event", zap.String("topic", topic))
	return nil
}

// Close disconnects from the broker
func (p *MQTTPublisher) Close() {
	if p.conn != nil {
		p.conn.Disconnect(250)
	}
}

// formatTopic replaces the {server} placeholder
func formatTopic(pattern, server string) string {
	return strings.ReplaceAll(pattern, "{server}", server)
}
