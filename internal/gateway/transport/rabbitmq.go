package transport

import (
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-amqp/v3/pkg/amqp"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/drblury/chargestream/internal/gateway/config"
)

var (
	AmqpConnectionFactory = func(cfg amqp.ConnectionConfig, logger watermill.LoggerAdapter) (*amqp.ConnectionWrapper, error) {
		return amqp.NewConnection(cfg, logger)
	}
	AmqpPublisherFactory = func(cfg amqp.Config, logger watermill.LoggerAdapter, conn *amqp.ConnectionWrapper) (message.Publisher, error) {
		return amqp.NewPublisherWithConnection(cfg, logger, conn)
	}
	AmqpSubscriberFactory = func(cfg amqp.Config, logger watermill.LoggerAdapter, conn *amqp.ConnectionWrapper) (message.Subscriber, error) {
		return amqp.NewSubscriberWithConnection(cfg, logger, conn)
	}
)

func rabbitTransport(conf *config.Config, logger watermill.LoggerAdapter) (Transport, error) {
	amqpConfig := amqp.NewDurablePubSubConfig(
		conf.RabbitMQURL,
		amqp.GenerateQueueNameTopicNameWithSuffix("-chargestream"),
	)
	conn, err := AmqpConnectionFactory(amqp.ConnectionConfig{
		AmqpURI:   conf.RabbitMQURL,
		TLSConfig: nil,
		Reconnect: amqp.DefaultReconnectConfig(),
	}, logger)
	if err != nil {
		return Transport{}, err
	}

	publisher, err := AmqpPublisherFactory(amqpConfig, logger, conn)
	if err != nil {
		return Transport{}, err
	}
	subscriber, err := AmqpSubscriberFactory(amqpConfig, logger, conn)
	if err != nil {
		return Transport{}, err
	}
	return Transport{Publisher: publisher, Subscriber: subscriber}, nil
}
