package main

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/jmertens/nikobus2mqtt/internal/bus"
	"github.com/jmertens/nikobus2mqtt/internal/button"
	"github.com/jmertens/nikobus2mqtt/internal/cover"
	"github.com/jmertens/nikobus2mqtt/internal/event"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"
)

type cfgMQTT struct {
	ClientID string `yaml:"client_id" default:"nikobus2mqtt" env:"CLIENT_ID"`
	Broker   string `yaml:"broker" default:"127.0.0.1:1883" env:"BROKER"`
	Username string `yaml:"username" env:"USERNAME"`
	Password string `yaml:"password" env:"PASSWORD"`
}

type cfgHASS struct {
	Enabled     bool   `yaml:"enabled" default:"true" env:"ENABLED"`
	TopicPrefix string `yaml:"topic_prefix" default:"homeassistant" env:"TOPIC_PREFIX"`
}

type cfgBus struct {
	ConnectionString string `yaml:"connection_string" default:"serial:/dev/ttyUSB0" env:"CONNECTION_STRING"`
}

type cfgButton struct {
	Debounce time.Duration `yaml:"debounce" default:"150ms"`
	Short    time.Duration `yaml:"short" default:"1s"`
	Medium   time.Duration `yaml:"medium" default:"2s"`
	Long     time.Duration `yaml:"long" default:"3s"`
}

type cfgCover struct {
	Name       string        `yaml:"name"`
	Address    string        `yaml:"address"`
	Channel    int           `yaml:"channel"`
	FullTravel time.Duration `yaml:"full_travel" default:"30s"`
}

var Cfg struct {
	LogLevel string `yaml:"log_level" default:"info" env:"LOG_LEVEL"`

	MQTT cfgMQTT `yaml:"mqtt" env:"MQTT"`
	HASS cfgHASS `yaml:"hass" env:"HASS"`
	Bus  cfgBus  `yaml:"bus" env:"BUS"`

	Button cfgButton  `yaml:"button"`
	Covers []cfgCover `yaml:"covers"`
}

var configLoader = aconfig.LoaderFor(&Cfg, aconfig.Config{
	EnvPrefix: "N2M",
})

func loadConfigFromYamlFile(filename string) {
	f, err := os.Open(filename)
	if err != nil {
		logrus.Error(err)
		return
	}
	defer f.Close()

	if err := yaml.NewDecoder(f).Decode(&Cfg); err != nil {
		logrus.Fatal(err)
	}
}

func pahoOptsFromConfig() *paho.ClientOptions {
	return paho.NewClientOptions().
		SetClientID(Cfg.MQTT.ClientID).
		AddBroker(Cfg.MQTT.Broker).
		SetUsername(Cfg.MQTT.Username).
		SetPassword(Cfg.MQTT.Password).
		SetConnectTimeout(time.Second).
		SetPingTimeout(time.Second).
		SetWriteTimeout(time.Second).
		SetAutoReconnect(true)
}

func buttonConfigFromConfig() button.Config {
	return button.Config{
		Debounce: Cfg.Button.Debounce,
		Short:    Cfg.Button.Short,
		Medium:   Cfg.Button.Medium,
		Long:     Cfg.Button.Long,
	}
}

func controllersFromConfig(commander bus.Commander, sink event.Sink) (controllers []*cover.Controller) {
	for _, cfg := range Cfg.Covers {
		fullTravel := cfg.FullTravel
		if fullTravel == 0 {
			fullTravel = 30 * time.Second
		}

		c, err := cover.NewController(cover.Config{
			Name:       cfg.Name,
			Address:    cfg.Address,
			Channel:    cfg.Channel,
			FullTravel: fullTravel,
		}, commander, sink)
		if err != nil {
			logrus.Fatal(err)
		}
		controllers = append(controllers, c)
	}

	return controllers
}
