package infra

import (
	"log"

	"github.com/tnqbao/gau-compute-dispatcher/config"
	"github.com/tnqbao/gau-compute-dispatcher/infra/produce"
)

type Infra struct {
	Telemetry        *TelemetryClient
	Logger           *LoggerClient
	Postgres         *PostgresClient
	RabbitMQ         *RabbitMQClient
	Produce          *produce.Produce
	Redis            *RedisClient
	EC2              *EC2Client
	UploadAuthorizer UploadAuthorizer
}

var infraInstance *Infra

// InitInfra wires the clients shared by the HTTP API and the consumer. Redis
// is only connected when launch de-duplication is enabled.
func InitInfra(cfg *config.Config) *Infra {
	if infraInstance != nil {
		return infraInstance
	}

	telemetry := InitTelemetryClient(cfg.EnvConfig)

	logger := InitLoggerClient(cfg.EnvConfig, telemetry.LoggerProvider)
	if logger == nil {
		panic("Failed to initialize Logger service")
	}

	postgres := InitPostgresClient(cfg.EnvConfig)
	if postgres == nil {
		panic("Failed to initialize Postgres service")
	}

	rabbitMQ := InitRabbitMQClient(cfg.EnvConfig)
	if rabbitMQ == nil {
		panic("Failed to initialize RabbitMQ service")
	}

	produceService := produce.InitProduce(rabbitMQ.Channel)
	if produceService == nil {
		panic("Failed to initialize Produce service")
	}

	var redis *RedisClient
	if cfg.EnvConfig.Consumer.DedupEnabled {
		redis = InitRedisClient(cfg.EnvConfig)
	} else {
		log.Println("Launch de-duplication disabled, Redis not connected")
	}

	ec2Client := InitEC2Client(cfg.EnvConfig)
	if ec2Client == nil {
		panic("Failed to initialize EC2 service")
	}

	uploadAuthorizer := InitUploadAuthorizer(cfg.EnvConfig)
	if uploadAuthorizer == nil {
		panic("Failed to initialize Upload authorization service")
	}

	infraInstance = &Infra{
		Telemetry:        telemetry,
		Logger:           logger,
		Postgres:         postgres,
		RabbitMQ:         rabbitMQ,
		Produce:          produceService,
		Redis:            redis,
		EC2:              ec2Client,
		UploadAuthorizer: uploadAuthorizer,
	}

	return infraInstance
}

func GetClient() *Infra {
	if infraInstance == nil {
		panic("Infra not initialized. Call InitInfra() first.")
	}
	return infraInstance
}
