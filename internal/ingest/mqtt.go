package ingest

import (
	"context"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"biosense/internal/config"
	"biosense/internal/model"
)

func StartMQTT(ctx context.Context, cfg *config.Manager, out chan<- model.RawPacket, logger *slog.Logger) {
	current := cfg.Get().Ingest.MQTT
	if !current.Enabled {
		if logger != nil {
			logger.Info("mqtt ingest disabled")
		}
		return
	}
	if logger != nil {
		logger.Info("mqtt ingest enabled", "broker", current.Broker, "topic", current.Topic)
	}

	clientID := current.ClientID
	if clientID == "" {
		clientID = "biosense-ingest"
	}
	opts := mqtt.NewClientOptions().
		AddBroker(current.Broker).
		SetClientID(clientID).
		SetUsername(current.Username).
		SetPassword(current.Password).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second)
	opts.SetOnConnectHandler(func(client mqtt.Client) {
		token := client.Subscribe(current.Topic, 1, func(_ mqtt.Client, msg mqtt.Message) {
			pkt, err := ParseFrame(msg.Payload())
			if err != nil {
				if logger != nil {
					logger.Warn("mqtt frame error", "topic", msg.Topic(), "err", err)
				}
				return
			}
			SendNonBlocking(ctx, out, pkt, logger)
		})
		token.Wait()
		if err := token.Error(); err != nil && logger != nil {
			logger.Warn("mqtt subscribe failed", "topic", current.Topic, "err", err)
		}
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		if logger != nil {
			logger.Warn("mqtt connection lost", "err", err)
		}
	})

	client := mqtt.NewClient(opts)
	go func() {
		token := client.Connect()
		token.Wait()
		if err := token.Error(); err != nil && logger != nil {
			logger.Warn("mqtt connect failed", "broker", current.Broker, "err", err)
		}
		<-ctx.Done()
		client.Disconnect(250)
	}()
}
