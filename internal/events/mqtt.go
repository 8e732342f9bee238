package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"residence-backend/internal/config"
	"residence-backend/internal/models"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

const publishTimeout = 5 * time.Second

// publishClient is the part of mqtt.Client the publisher uses.
type publishClient interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
}

// MQTTPublisher publishes each access log as JSON to
// <topic>/<accessType>, e.g. compound/access/entry.
type MQTTPublisher struct {
	client publishClient
	topic  string
	logger *zap.Logger
}

func NewMQTTPublisher(cfg config.MQTTConfig, logger *zap.Logger) (*MQTTPublisher, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetCleanSession(true)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		logger.Warn("mqtt connection lost", zap.Error(err))
	})

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("connect to MQTT broker: %w", token.Error())
	}

	logger.Info("mqtt publisher connected", zap.String("broker", cfg.Broker), zap.String("topic", cfg.Topic))
	return newMQTTPublisher(client, cfg.Topic, logger), nil
}

func newMQTTPublisher(client publishClient, topic string, logger *zap.Logger) *MQTTPublisher {
	return &MQTTPublisher{client: client, topic: topic, logger: logger}
}

func (p *MQTTPublisher) PublishAccess(ctx context.Context, log models.AccessLog) error {
	payload, err := json.Marshal(log)
	if err != nil {
		return err
	}

	topic := p.topic + "/" + string(log.AccessType)
	token := p.client.Publish(topic, 1, false, payload)

	timeout := publishTimeout
	if dl, ok := ctx.Deadline(); ok {
		timeout = time.Until(dl)
	}
	if !token.WaitTimeout(timeout) {
		return fmt.Errorf("publish to %s timed out", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	return nil
}

func (p *MQTTPublisher) Close() {
	p.client.Disconnect(250)
}
