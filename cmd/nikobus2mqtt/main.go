package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/jmertens/nikobus2mqtt/internal/bus"
	"github.com/jmertens/nikobus2mqtt/internal/button"
	"github.com/jmertens/nikobus2mqtt/internal/mqtt"
	"github.com/sirupsen/logrus"
)

func main() {
	logrus.SetFormatter(&logrus.TextFormatter{
		DisableColors: false,
		FullTimestamp: true,
	})

	configPath := flag.String("config", "config.yaml", "config.yaml file path")
	flag.Parse()

	if err := configLoader.Load(); err != nil {
		logrus.Fatal(err)
	}
	loadConfigFromYamlFile(*configPath)

	level, err := logrus.ParseLevel(Cfg.LogLevel)
	if err != nil {
		logrus.Fatal(err)
	}
	logrus.SetLevel(level)

	ctx, cancel := context.WithCancel(context.Background())
	var bridges []*mqtt.Bridge
	cfg := pahoOptsFromConfig()
	cfg.OnConnect = func(m paho.Client) {
		logrus.Info("MQTT broker connected")
		subscribe(ctx, bridges)
	}
	cfg.OnConnectionLost = func(_ paho.Client, err error) {
		logrus.Errorf("MQTT broker connection lost: %s", err.Error())
	}

	m := paho.NewClient(cfg)
	if token := m.Connect(); token.Wait() && token.Error() != nil {
		logrus.Fatal(token.Error())
	}

	codec := bus.ASCIICodec{}
	conn, err := bus.Dial(Cfg.Bus.ConnectionString, codec)
	if err != nil {
		logrus.Fatal(err)
	}

	publisher := mqtt.NewPublisher(m)
	registry := button.NewRegistry(publisher)
	classifier, err := button.NewClassifier(buttonConfigFromConfig(), publisher, registry.Discover)
	if err != nil {
		logrus.Fatal(err)
	}

	for _, c := range controllersFromConfig(conn, publisher) {
		bridge := mqtt.NewBridge(m, c, publisher)
		if Cfg.HASS.Enabled {
			if err := mqtt.PublishHAAutoDiscovery(m, Cfg.HASS.TopicPrefix, mqtt.NewHACoverFromBridge(bridge)); err != nil {
				logrus.Fatal(err)
			}
		}
		bridges = append(bridges, bridge)
	}
	subscribe(ctx, bridges)

	listener := bus.NewListener(codec, classifier.HandleSignal)
	go func() {
		if err := listener.Listen(ctx, conn.Reader()); err != nil {
			logrus.Error(err)
		}
	}()

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt)

	go func() {
		oscall := <-c
		log.Printf("system call:%+v", oscall)
		cancel()
	}()

	<-ctx.Done()

	classifier.Close()
	if err := conn.Close(); err != nil {
		logrus.Error(err)
	}

	cleanupTime := time.Second
	logrus.Infof("cleanups for %s...", cleanupTime.String())
	time.Sleep(cleanupTime)
}

func subscribe(ctx context.Context, bridges []*mqtt.Bridge) {
	for _, bridge := range bridges {
		if err := bridge.Subscribe(ctx); err != nil {
			logrus.Error(err)
		}
	}
}
