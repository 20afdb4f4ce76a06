// Package transport builds the publisher/subscriber pair carrying canonical
// records from the event log to the fan-out stage. The default "channel"
// transport keeps everything in-process; brokered transports additionally
// export every record to external infrastructure.
package transport

import (
	"context"
	"fmt"
	"strings"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/drblury/chargestream/internal/gateway/config"
)

// Transport combines a publisher and subscriber pair produced by a factory.
type Transport struct {
	Publisher  message.Publisher
	Subscriber message.Subscriber
}

// Factory abstracts how the gateway initialises its record transport.
type Factory interface {
	Build(ctx context.Context, conf *config.Config, logger watermill.LoggerAdapter) (Transport, error)
}

// DefaultFactory returns the built-in transport factory.
func DefaultFactory() Factory {
	return defaultFactory{}
}

type defaultFactory struct{}

func (defaultFactory) Build(ctx context.Context, conf *config.Config, logger watermill.LoggerAdapter) (Transport, error) {
	if conf == nil {
		return Transport{}, fmt.Errorf("config is required")
	}

	switch strings.ToLower(conf.PubSubSystem) {
	case "", "channel", "gochannel":
		return channelTransport(conf, logger)
	case "nats":
		return natsTransport(conf, logger)
	case "kafka":
		return kafkaTransport(conf, logger)
	case "rabbitmq":
		return rabbitTransport(conf, logger)
	case "http":
		return httpTransport(conf, logger)
	case "aws":
		return awsTransport(ctx, conf, logger)
	default:
		return Transport{}, fmt.Errorf("unsupported pubsub system: %s", conf.PubSubSystem)
	}
}
