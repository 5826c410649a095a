package mqtt

import (
	"context"
	"fmt"
	"strconv"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/jmertens/nikobus2mqtt/internal/cover"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	mqttOpenCmd  = "open"
	mqttCloseCmd = "close"
	mqttStopCmd  = "stop"
)

// Bridge maps one cover controller to its MQTT topics.
type Bridge struct {
	mqtt  paho.Client
	cover *cover.Controller

	StateTopic    string
	PositionTopic string

	CommandTopic        string
	PositionChangeTopic string
}

func NewBridge(client paho.Client, c *cover.Controller, p *Publisher) *Bridge {
	bridge := &Bridge{mqtt: client, cover: c}
	bridge.StateTopic = fmt.Sprintf("%s/cover/%s/state", topicPrefix, c.Name())
	bridge.PositionTopic = fmt.Sprintf("%s/cover/%s/position", topicPrefix, c.Name())
	bridge.CommandTopic = fmt.Sprintf("%s/cover/%s/set", topicPrefix, c.Name())
	bridge.PositionChangeTopic = fmt.Sprintf("%s/cover/%s/position/set", topicPrefix, c.Name())

	p.register(bridge)
	bridge.restorePosition()

	return bridge
}

func (b *Bridge) Subscribe(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		if token := b.mqtt.Unsubscribe(b.PositionChangeTopic, b.CommandTopic); token.Wait() && token.Error() != nil {
			logrus.Errorf("%s: MQTT topics unsubscribe failed: %s", b.cover.Name(), token.Error())
		}
	}()

	if token := b.mqtt.Subscribe(b.CommandTopic, 0, b.onCommandHandler(ctx)); token.Wait() && token.Error() != nil {
		return errors.Wrapf(token.Error(), "%s: MQTT command topic subscription failed", b.cover.Name())
	}
	logrus.Infof("%s: MQTT command topic subscribed", b.cover.Name())

	if token := b.mqtt.Subscribe(b.PositionChangeTopic, 0, b.onPositionChangeHandler(ctx)); token.Wait() && token.Error() != nil {
		return errors.Wrapf(token.Error(), "%s: MQTT position change topic subscription failed", b.cover.Name())
	}
	logrus.Infof("%s: MQTT position change topic subscribed", b.cover.Name())

	return nil
}

func (b *Bridge) publishPosition(state string, position int) {
	if token := b.mqtt.Publish(b.StateTopic, 0, true, state); token.Wait() && token.Error() != nil {
		logrus.Errorf("%s: MQTT state publish failed: %s", b.cover.Name(), token.Error())
	}
	if token := b.mqtt.Publish(b.PositionTopic, 0, true, strconv.Itoa(position)); token.Wait() && token.Error() != nil {
		logrus.Errorf("%s: MQTT position publish failed: %s", b.cover.Name(), token.Error())
	}
}

func (b *Bridge) onCommandHandler(ctx context.Context) paho.MessageHandler {
	return func(_ paho.Client, msg paho.Message) {
		cmd := string(msg.Payload())
		var err error
		switch cmd {
		case mqttOpenCmd:
			err = b.cover.Open(ctx)
		case mqttCloseCmd:
			err = b.cover.Close(ctx)
		case mqttStopCmd:
			err = b.cover.Stop(ctx)
		default:
			logrus.Errorf("%s: MQTT unsupported %s command received", b.cover.Name(), cmd)
			return
		}
		if err != nil {
			logrus.Error(err)
		}
	}
}

func (b *Bridge) onPositionChangeHandler(ctx context.Context) paho.MessageHandler {
	return func(_ paho.Client, msg paho.Message) {
		pos, err := strconv.Atoi(string(msg.Payload()))
		if err != nil {
			logrus.Error(err)
			return
		}
		if err := b.cover.SetPosition(ctx, pos); err != nil {
			logrus.Error(err)
		}
	}
}

// restorePosition seeds the controller from the retained position topic,
// then unsubscribes so live updates do not loop back.
func (b *Bridge) restorePosition() {
	restoreHandler := func(_ paho.Client, msg paho.Message) {
		pos, err := strconv.Atoi(string(msg.Payload()))
		if err != nil {
			logrus.Error(err)
			return
		}
		b.cover.RestorePosition(pos)

		if token := b.mqtt.Unsubscribe(b.PositionTopic); token.Wait() && token.Error() != nil {
			logrus.Errorf("%s: MQTT position restore topic unsubscribe failed: %s", b.cover.Name(), token.Error())
			return
		}
		logrus.Debugf("%s: MQTT position restore topic unsubscribed", b.cover.Name())
	}

	if token := b.mqtt.Subscribe(b.PositionTopic, 0, restoreHandler); token.Wait() && token.Error() != nil {
		logrus.Errorf("%s: MQTT position restore topic subscription failed: %s", b.cover.Name(), token.Error())
	}
}
