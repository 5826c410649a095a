package mqtt

import (
	"fmt"
	"sync"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/jmertens/nikobus2mqtt/internal/event"
	"github.com/sirupsen/logrus"
)

const topicPrefix = "nikobus2mqtt"

// Publisher is the MQTT-backed event sink. Button events go out on a
// per-address event topic; cover position updates are routed to the
// bridge registered for that module channel.
type Publisher struct {
	client paho.Client

	mu      sync.Mutex
	bridges map[string]*Bridge
}

func NewPublisher(client paho.Client) *Publisher {
	return &Publisher{client: client, bridges: map[string]*Bridge{}}
}

func (p *Publisher) register(b *Bridge) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.bridges[channelKey(b.cover.Address(), b.cover.Channel())] = b
}

func (p *Publisher) Publish(name string, data map[string]interface{}) {
	switch name {
	case event.CoverPosition:
		address, _ := data["address"].(string)
		channel, _ := data["channel"].(int)
		state, _ := data["state"].(string)
		position, _ := data["position"].(int)

		p.mu.Lock()
		b := p.bridges[channelKey(address, channel)]
		p.mu.Unlock()

		if b == nil {
			logrus.Warnf("mqtt: position update for unknown channel %s:%d", address, channel)
			return
		}
		b.publishPosition(state, position)

	case event.ButtonDiscovered:
		address, _ := data["address"].(string)
		topic := fmt.Sprintf("%s/button/%s/discovered", topicPrefix, address)
		if token := p.client.Publish(topic, 0, true, "1"); token.Wait() && token.Error() != nil {
			logrus.Errorf("mqtt: button discovery publish failed: %s", token.Error())
		}

	default:
		address, _ := data["address"].(string)
		topic := fmt.Sprintf("%s/button/%s/event", topicPrefix, address)
		if token := p.client.Publish(topic, 0, false, name); token.Wait() && token.Error() != nil {
			logrus.Errorf("mqtt: button event publish failed: %s", token.Error())
		}
	}
}

func channelKey(address string, channel int) string {
	return fmt.Sprintf("%s:%d", address, channel)
}
