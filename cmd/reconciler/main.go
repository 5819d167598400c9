package main

import (
	"context"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/rs/zerolog"

	"github.com/openfloat/go-payment-switch/internal/aws"
	"github.com/openfloat/go-payment-switch/internal/config"
	"github.com/openfloat/go-payment-switch/internal/connector"
	"github.com/openfloat/go-payment-switch/internal/mandates"
	"github.com/openfloat/go-payment-switch/internal/metrics"
	"github.com/openfloat/go-payment-switch/internal/payments"
	"github.com/openfloat/go-payment-switch/internal/redirects"
)

func main() {
	log := zerolog.New(os.Stderr).With().Timestamp().Str("service", "payment-reconciler").Logger()
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	clients, err := aws.NewAWSClients(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to init aws clients")
	}

	registry, err := connector.BuildRegistry(cfg.ConnectorNames, cfg.ConnectorURLs, cfg.ConnectorCaps, cfg.ConnectorTimeout)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build connector registry")
	}

	redirectStore := redirects.NewRedisStore(cfg.RedisAddr, cfg.RedisPoolSize, cfg.RedirectTTL)

	engine := payments.NewEngine(payments.Deps{
		Store:            payments.NewStore(clients.DynamoDB, cfg.TransactionsTable),
		Mandates:         mandates.NewManager(mandates.NewStore(clients.DynamoDB, cfg.MandatesTable), log),
		Registry:         registry,
		Redirects:        redirectStore,
		Queue:            aws.NewPublisher(clients.SQS, cfg.ReconciliationQueueURL),
		Metrics:          metrics.NewRecorder(clients.CloudWatch, log),
		Log:              log,
		IdempotencyTable: cfg.IdempotencyTable,
		IdempotencyTTL:   cfg.IdempotencyTTL,
		ConnectorTimeout: cfg.ConnectorTimeout,
		Freshness:        cfg.FreshnessThreshold,
	})

	processor := NewProcessor(engine, log)
	lambda.Start(processor.Handle)
}
