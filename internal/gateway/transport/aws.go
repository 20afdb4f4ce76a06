package transport

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-aws/sns"
	"github.com/ThreeDotsLabs/watermill-aws/sqs"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	amazonsns "github.com/aws/aws-sdk-go-v2/service/sns"
	amazonsqs "github.com/aws/aws-sdk-go-v2/service/sqs"
	smithyendpoints "github.com/aws/smithy-go/endpoints"

	"github.com/drblury/chargestream/internal/gateway/config"
)

var (
	AWSDefaultConfigLoader  = awsconfig.LoadDefaultConfig
	SNSTopicResolverFactory = sns.NewGenerateArnTopicResolver
	SNSPublisherFactory     = func(cfg sns.PublisherConfig, logger watermill.LoggerAdapter) (message.Publisher, error) {
		return sns.NewPublisher(cfg, logger)
	}
	SNSSubscriberFactory = func(cfg sns.SubscriberConfig, sqsCfg sqs.SubscriberConfig, logger watermill.LoggerAdapter) (message.Subscriber, error) {
		return sns.NewSubscriber(cfg, sqsCfg, logger)
	}
)

const (
	localstackAccountID = "000000000000"
	awsAccountIDLength  = 12
)

func awsTransport(ctx context.Context, conf *config.Config, logger watermill.LoggerAdapter) (Transport, error) {
	cfg, err := createAWSConfig(ctx, conf, logger)
	if err != nil {
		return Transport{}, err
	}

	publisher, err := createAwsPublisher(conf, logger, cfg)
	if err != nil {
		return Transport{}, err
	}
	subscriber, err := createAwsSubscriber(conf, logger, cfg)
	if err != nil {
		return Transport{}, err
	}
	return Transport{Publisher: publisher, Subscriber: subscriber}, nil
}

func createAWSConfig(ctx context.Context, conf *config.Config, logger watermill.LoggerAdapter) (*aws.Config, error) {
	var opts []func(*awsconfig.LoadOptions) error

	if conf.AWSRegion != "" {
		opts = append(opts, awsconfig.WithRegion(conf.AWSRegion))
	}
	if conf.AWSAccessKeyID != "" && conf.AWSSecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(staticCredentialsProvider(conf.AWSAccessKeyID, conf.AWSSecretAccessKey)))
	}

	cfg, err := AWSDefaultConfigLoader(ctx, opts...)
	if err != nil {
		logger.Error("Failed to load AWS default config", err, watermill.LogFields{"requested_region": conf.AWSRegion})
		return nil, err
	}
	// Ensure region is set even if the loader ignores options (e.g. in tests).
	if conf.AWSRegion != "" {
		cfg.Region = conf.AWSRegion
	}
	return &cfg, nil
}

func createAwsPublisher(conf *config.Config, logger watermill.LoggerAdapter, cfg *aws.Config) (message.Publisher, error) {
	accountID, region := resolveAccountAndRegion(conf, logger, cfg.Region)

	topicResolver, err := SNSTopicResolverFactory(accountID, region)
	if err != nil {
		return nil, err
	}

	publisherConfig := sns.PublisherConfig{
		TopicResolver: topicResolver,
		AWSConfig:     *cfg,
		Marshaler:     sns.DefaultMarshalerUnmarshaler{},
	}
	if conf.AWSEndpoint != "" {
		endpoint := conf.AWSEndpoint
		publisherConfig.OptFns = []func(*amazonsns.Options){
			func(o *amazonsns.Options) {
				o.BaseEndpoint = aws.String(endpoint)
			},
		}
	}

	return SNSPublisherFactory(publisherConfig, logger)
}

func createAwsSubscriber(conf *config.Config, logger watermill.LoggerAdapter, cfg *aws.Config) (message.Subscriber, error) {
	accountID, region := resolveAccountAndRegion(conf, logger, cfg.Region)

	topicResolver, err := SNSTopicResolverFactory(accountID, region)
	if err != nil {
		return nil, err
	}

	snsOpts, sqsOpts, err := endpointOverrides(conf)
	if err != nil {
		return nil, err
	}

	subscriberConfig := sns.SubscriberConfig{
		AWSConfig: aws.Config{
			Credentials: aws.AnonymousCredentials{},
		},
		OptFns:               snsOpts,
		TopicResolver:        topicResolver,
		GenerateSqsQueueName: generateSqsQueueName,
	}

	return SNSSubscriberFactory(
		subscriberConfig,
		sqs.SubscriberConfig{
			AWSConfig: *cfg,
			OptFns:    sqsOpts,
		},
		logger,
	)
}

func generateSqsQueueName(ctx context.Context, snsTopic sns.TopicArn) (string, error) {
	topic, err := sns.ExtractTopicNameFromTopicArn(snsTopic)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%v-gateway", topic), nil
}

func endpointOverrides(conf *config.Config) ([]func(*amazonsns.Options), []func(*amazonsqs.Options), error) {
	if conf.AWSEndpoint == "" {
		return nil, nil, nil
	}

	parsedURL, err := url.Parse(conf.AWSEndpoint)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse AWS endpoint: %w", err)
	}

	snsOpts := []func(*amazonsns.Options){
		amazonsns.WithEndpointResolverV2(sns.OverrideEndpointResolver{
			Endpoint: smithyendpoints.Endpoint{URI: *parsedURL},
		}),
	}
	sqsOpts := []func(*amazonsqs.Options){
		amazonsqs.WithEndpointResolverV2(sqs.OverrideEndpointResolver{
			Endpoint: smithyendpoints.Endpoint{URI: *parsedURL},
		}),
	}
	return snsOpts, sqsOpts, nil
}

func resolveAccountAndRegion(conf *config.Config, logger watermill.LoggerAdapter, fallbackRegion string) (string, string) {
	accountID := strings.Trim(conf.AWSAccountID, "\"' ")
	region := conf.AWSRegion
	if region == "" {
		region = fallbackRegion
	}

	// LocalStack deployments commonly leave the account ID unset.
	if conf.AWSEndpoint != "" && (accountID == "" || len(accountID) != awsAccountIDLength) {
		logger.Info("Using LocalStack default AWS account ID", watermill.LogFields{"configured": accountID})
		accountID = localstackAccountID
	}

	return accountID, region
}

func staticCredentialsProvider(accessKeyID, secretAccessKey string) aws.CredentialsProvider {
	return aws.CredentialsProviderFunc(func(ctx context.Context) (aws.Credentials, error) {
		return aws.Credentials{
			AccessKeyID:     accessKeyID,
			SecretAccessKey: secretAccessKey,
		}, nil
	})
}
