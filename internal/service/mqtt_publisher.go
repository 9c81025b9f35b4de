// internal/service/mqtt_publisher.go
package service

import (
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"marvelmind-service/internal/config"
	"marvelmind-service/internal/model"
)

// MQTTPublisher pushes position fixes to an MQTT broker, one topic per
// device: <prefix>/<address>.
type MQTTPublisher struct {
	client      mqtt.Client
	topicPrefix string
	qos         byte
	timeout     time.Duration
	logger      *zap.Logger
}

// NewMQTTPublisher connects to the broker and returns a ready publisher.
func NewMQTTPublisher(cfg *config.MQTTConfig, logger *zap.Logger) (*MQTTPublisher, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.BrokerURL).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(2 * time.Second).
		SetOrderMatters(false)

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	opts.OnConnect = func(mqtt.Client) {
		logger.Info("MQTT connected", zap.String("broker", cfg.BrokerURL))
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		logger.Warn("MQTT connection lost", zap.Error(err))
	}

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(cfg.Timeout) {
		return nil, fmt.Errorf("mqtt connect timed out after %s", cfg.Timeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect: %w", err)
	}

	return &MQTTPublisher{
		client:      client,
		topicPrefix: cfg.TopicPrefix,
		qos:         byte(cfg.QoS),
		timeout:     cfg.Timeout,
		logger:      logger.With(zap.String("publisher", "mqtt")),
	}, nil
}

// PublishFixes sends each fix to its device topic. Publish errors are
// logged, never surfaced: the poll loop must not stall on the broker.
func (p *MQTTPublisher) PublishFixes(fixes []*model.PositionFix) {
	for _, fix := range fixes {
		payload, err := json.Marshal(fix)
		if err != nil {
			p.logger.Error("Failed to encode fix", zap.Error(err))
			continue
		}

		topic := fmt.Sprintf("%s/%d", p.topicPrefix, fix.Address)
		token := p.client.Publish(topic, p.qos, false, payload)
		go func(t mqtt.Token, topic string) {
			if t.WaitTimeout(p.timeout) && t.Error() != nil {
				p.logger.Warn("MQTT publish failed",
					zap.String("topic", topic),
					zap.Error(t.Error()))
			}
		}(token, topic)
	}
}

// Close disconnects from the broker.
func (p *MQTTPublisher) Close() {
	p.client.Disconnect(250)
}
