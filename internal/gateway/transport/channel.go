package transport

import (
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/drblury/chargestream/internal/gateway/config"
)

var (
	GoChannelFactory = func(cfg gochannel.Config, logger watermill.LoggerAdapter) (message.Publisher, message.Subscriber) {
		pubSub := gochannel.NewGoChannel(cfg, logger)
		return pubSub, pubSub
	}
)

func channelTransport(conf *config.Config, logger watermill.LoggerAdapter) (Transport, error) {
	// The record pipeline relies on publish order; buffer so a burst of
	// appends never waits on the router goroutine.
	pub, sub := GoChannelFactory(gochannel.Config{
		OutputChannelBuffer: int64(conf.OccurrenceBuffer),
	}, logger)

	return Transport{
		Publisher:  pub,
		Subscriber: sub,
	}, nil
}
