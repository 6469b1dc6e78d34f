package sinks

import (
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// MQTT publishes every Sink event as a JSON message on a broker topic, so
// a remote dashboard can watch a long-running stitch job. Grounded on
// kwv-tudomesh's use of github.com/eclipse/paho.mqtt.golang for fire-and-
// forget telemetry publish.
type MQTT struct {
	client mqtt.Client
	topic  string
}

// NewMQTT connects to brokerURL and returns an MQTT sink publishing under
// topic. The connection uses QoS 0 (at-most-once): a solver worker must
// never block waiting on broker acknowledgment.
func NewMQTT(brokerURL, clientID, topic string) (*MQTT, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(brokerURL).
		SetClientID(clientID).
		SetConnectTimeout(5 * time.Second).
		SetAutoReconnect(true)

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(5*time.Second) || token.Error() != nil {
		if err := token.Error(); err != nil {
			return nil, fmt.Errorf("sinks: mqtt connect to %s: %w", brokerURL, err)
		}
		return nil, fmt.Errorf("sinks: mqtt connect to %s: timed out", brokerURL)
	}

	return &MQTT{client: client, topic: topic}, nil
}

type mqttEvent struct {
	Kind    string `json:"kind"`
	Level   string `json:"level,omitempty"`
	Message string `json:"message,omitempty"`
	Phase   string `json:"phase,omitempty"`
	Step    int    `json:"step,omitempty"`
	NMax    int    `json:"nmax,omitempty"`
}

func (m *MQTT) publish(ev mqttEvent) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return
	}
	// QoS 0, fire-and-forget: a slow or disconnected broker must never
	// stall a solver worker goroutine.
	m.client.Publish(m.topic, 0, false, payload)
}

func (m *MQTT) Log(level Level, message string) {
	m.publish(mqttEvent{Kind: "log", Level: level.String(), Message: message})
}

func (m *MQTT) Fatal(message string) {
	m.publish(mqttEvent{Kind: "fatal", Level: Error.String(), Message: message})
}

func (m *MQTT) Progress(phase string, step, nmax int) {
	m.publish(mqttEvent{Kind: "progress", Phase: phase, Step: step, NMax: nmax})
}

// Close disconnects from the broker, waiting up to 250ms for in-flight
// publishes to drain.
func (m *MQTT) Close() {
	m.client.Disconnect(250)
}
