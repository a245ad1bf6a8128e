// Package events announces service log lifecycle transitions to interested
// fleet systems.
package events

import (
	"encoding/json"
	"fmt"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	log "github.com/sirupsen/logrus"

	"github.com/fleetops/servicelog/internal/models"
)

// Publisher receives service log lifecycle events. Implementations must not
// block the caller.
type Publisher interface {
	LogCommitted(entry models.ServiceLog)
	LogUpdated(entry models.ServiceLog)
	LogDeleted(id string)
}

// Nop discards all events.
type Nop struct{}

func (Nop) LogCommitted(models.ServiceLog) {}
func (Nop) LogUpdated(models.ServiceLog)   {}
func (Nop) LogDeleted(string)              {}

// MQTT topics for lifecycle events.
const (
	TopicCommitted = "servicelog/committed"
	TopicUpdated   = "servicelog/updated"
	TopicDeleted   = "servicelog/deleted"
)

// MQTTPublisher publishes lifecycle events as JSON payloads over MQTT.
// Publishing is fire-and-forget; delivery failures are logged, never surfaced.
type MQTTPublisher struct {
	client mqtt.Client
}

// NewMQTTPublisher connects to the broker and returns a ready publisher.
func NewMQTTPublisher(brokerURL, clientID string) (*MQTTPublisher, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(brokerURL).
		SetClientID(clientID).
		SetAutoReconnect(true)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}

	return &MQTTPublisher{client: client}, nil
}

// LogCommitted announces a newly committed service log.
func (p *MQTTPublisher) LogCommitted(entry models.ServiceLog) {
	p.publish(TopicCommitted, entry)
}

// LogUpdated announces a service log replaced through an edit session.
func (p *MQTTPublisher) LogUpdated(entry models.ServiceLog) {
	p.publish(TopicUpdated, entry)
}

// LogDeleted announces a removed service log.
func (p *MQTTPublisher) LogDeleted(id string) {
	p.publish(TopicDeleted, map[string]string{"id": id})
}

// Close disconnects from the broker.
func (p *MQTTPublisher) Close() {
	p.client.Disconnect(250)
}

func (p *MQTTPublisher) publish(topic string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.WithError(err).WithField("topic", topic).Warn("Failed to marshal event payload")
		return
	}
	p.client.Publish(topic, 0, false, data)
}
