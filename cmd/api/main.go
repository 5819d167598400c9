package main

import (
	"context"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	ginadapter "github.com/awslabs/aws-lambda-go-api-proxy/gin"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/openfloat/go-payment-switch/internal/aws"
	"github.com/openfloat/go-payment-switch/internal/config"
	"github.com/openfloat/go-payment-switch/internal/connector"
	"github.com/openfloat/go-payment-switch/internal/handlers"
	"github.com/openfloat/go-payment-switch/internal/idempotency"
	"github.com/openfloat/go-payment-switch/internal/mandates"
	"github.com/openfloat/go-payment-switch/internal/metrics"
	"github.com/openfloat/go-payment-switch/internal/payments"
	"github.com/openfloat/go-payment-switch/internal/redirects"
)

func setupRouter(cfg handlers.HandlerConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	handlers.RegisterPaymentRoutes(r, cfg)

	return r
}

func main() {
	log := zerolog.New(os.Stderr).With().Timestamp().Str("service", "payment-api").Logger()
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
	if err := redirectStore.Ping(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to reach redis")
	}

	mandateManager := mandates.NewManager(mandates.NewStore(clients.DynamoDB, cfg.MandatesTable), log)

	engine := payments.NewEngine(payments.Deps{
		Store:            payments.NewStore(clients.DynamoDB, cfg.TransactionsTable),
		Mandates:         mandateManager,
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

	r := setupRouter(handlers.HandlerConfig{
		Engine:           engine,
		Mandates:         mandateManager,
		IdempotencyStore: idempotency.NewStore(clients.DynamoDB, cfg.IdempotencyTable, cfg.IdempotencyTTL),
		Log:              log,
	})

	if cfg.RunLocal {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("running local server")
		if err := r.Run(cfg.HTTPAddr); err != nil {
			log.Fatal().Err(err).Msg("failed to run local server")
		}
		return
	}

	adapter := ginadapter.New(r)
	lambda.Start(func(ctx context.Context, req events.APIGatewayProxyRequest) (interface{}, error) {
		return adapter.ProxyWithContext(ctx, req)
	})
}
