package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type EnvConfig struct {
	Postgres struct {
		HOST     string
		Database string
		Username string
		Password string
		Port     string
	}
	JWT struct {
		SecretKey string
		Algorithm string
	}
	ServiceAuth struct {
		AccessKey string
		SecretKey string
	}
	CORS struct {
		AllowDomains string
	}
	Redis struct {
		Password  string
		Database  int
		RedisHost string
		RedisPort string
	}
	RabbitMQ struct {
		Host     string
		Port     string
		Username string
		Password string
		Prefetch int
	}
	Storage struct {
		Driver    string // "s3" or "minio"
		Bucket    string
		Region    string
		UploadTTL time.Duration
	}
	Minio struct {
		Endpoint     string
		RootUser     string
		RootPassword string
		UseSSL       bool
	}
	AWS struct {
		Region          string
		AccessKeyID     string
		SecretAccessKey string
	}
	Provisioner struct {
		ImageNamePattern    string
		ImageArchitecture   string
		ImageVirtualization string
		ImageRootDevice     string
		ImageOwner          string
		InstanceType        string
		SubnetID            string
		SecurityGroupIDs    []string
		InstanceProfile     string
		KeyName             string
		ScriptRepo          string
		ResultTable         string
		CallTimeout         time.Duration
	}
	Consumer struct {
		Concurrency   int
		DedupEnabled  bool
		DedupTTL      time.Duration
		RelaySchedule string
		RelayBatch    int
		MetricsAddr   string
	}
	Grafana struct {
		OTLPEndpoint string
		Insecure     bool
		ServiceName  string
	}
	Environment struct {
		Mode  string
		Group string
	}
	HTTPAddr string
	APIURL   string
}

func LoadEnvConfig() *EnvConfig {
	var config EnvConfig

	// Postgres
	config.Postgres.HOST = os.Getenv("PGPOOL_HOST")
	config.Postgres.Database = os.Getenv("PGPOOL_DB")
	config.Postgres.Username = os.Getenv("PGPOOL_USER")
	config.Postgres.Password = os.Getenv("PGPOOL_PASSWORD")
	config.Postgres.Port = getEnv("PGPOOL_PORT", "5432")

	// JWT
	config.JWT.SecretKey = os.Getenv("JWT_SECRET_KEY")
	config.JWT.Algorithm = getEnv("JWT_ALGORITHM", "HS256")

	// HMAC credentials for service-to-service calls (dispatchctl)
	config.ServiceAuth.AccessKey = os.Getenv("SERVICE_ACCESS_KEY")
	config.ServiceAuth.SecretKey = os.Getenv("SERVICE_SECRET_KEY")

	config.CORS.AllowDomains = os.Getenv("ALLOWED_DOMAINS")

	config.Redis.Password = os.Getenv("REDIS_PASSWORD")
	config.Redis.Database, _ = strconv.Atoi(os.Getenv("REDIS_DB"))
	config.Redis.RedisHost = getEnv("REDIS_HOST", "localhost")
	config.Redis.RedisPort = getEnv("REDIS_PORT", "6379")

	// RabbitMQ
	config.RabbitMQ.Host = getEnv("RABBITMQ_HOST", "localhost")
	config.RabbitMQ.Port = getEnv("RABBITMQ_PORT", "5672")
	config.RabbitMQ.Username = getEnv("RABBITMQ_USER", "guest")
	config.RabbitMQ.Password = getEnv("RABBITMQ_PASSWORD", "guest")
	config.RabbitMQ.Prefetch = getEnvInt("RABBITMQ_PREFETCH", 8)

	// Object storage for uploaded artifacts
	config.Storage.Driver = strings.ToLower(getEnv("STORAGE_DRIVER", "s3"))
	config.Storage.Bucket = getEnv("BUCKET_NAME", "store-react-challenge-files")
	config.Storage.Region = getEnv("STORAGE_REGION", "us-east-1")
	config.Storage.UploadTTL = getEnvDuration("UPLOAD_URL_TTL", 120*time.Second)

	config.Minio.Endpoint = os.Getenv("MINIO_ENDPOINT")
	config.Minio.RootUser = os.Getenv("MINIO_ROOT_USER")
	config.Minio.RootPassword = os.Getenv("MINIO_ROOT_PASSWORD")
	config.Minio.UseSSL = getEnvBool("MINIO_USE_SSL", false)

	config.AWS.Region = getEnv("AWS_REGION", "us-east-1")
	// Static keys are optional; the default credential chain is used otherwise.
	config.AWS.AccessKeyID = os.Getenv("AWS_ACCESS_KEY_ID")
	config.AWS.SecretAccessKey = os.Getenv("AWS_SECRET_ACCESS_KEY")

	// Compute provisioning, defaults match the Ubuntu 22.04 amd64 worker image
	config.Provisioner.ImageNamePattern = getEnv("IMAGE_NAME_PATTERN", "ubuntu/images/hvm-ssd/ubuntu-jammy-22.04-amd64-server-*")
	config.Provisioner.ImageArchitecture = getEnv("IMAGE_ARCHITECTURE", "x86_64")
	config.Provisioner.ImageVirtualization = getEnv("IMAGE_VIRTUALIZATION_TYPE", "hvm")
	config.Provisioner.ImageRootDevice = getEnv("IMAGE_ROOT_DEVICE_TYPE", "ebs")
	config.Provisioner.ImageOwner = getEnv("IMAGE_OWNER", "099720109477")
	config.Provisioner.InstanceType = getEnv("INSTANCE_TYPE", "t3.small")
	config.Provisioner.SubnetID = os.Getenv("SUBNET_ID")
	config.Provisioner.SecurityGroupIDs = splitList(os.Getenv("SECURITY_GROUP_ID"))
	config.Provisioner.InstanceProfile = os.Getenv("INSTANCE_PROFILE_NAME")
	config.Provisioner.KeyName = os.Getenv("KEY_NAME")
	config.Provisioner.ScriptRepo = os.Getenv("SCRIPT_REPO")
	if config.Provisioner.ScriptRepo == "" {
		if bucket := os.Getenv("SCRIPT_BUCKET_NAME"); bucket != "" {
			config.Provisioner.ScriptRepo = fmt.Sprintf("s3://%s/ec2_script.sh", bucket)
		}
	}
	config.Provisioner.ResultTable = getEnv("TABLE_NAME", "InputEntries")
	config.Provisioner.CallTimeout = getEnvDuration("PROVISION_CALL_TIMEOUT", 20*time.Second)

	config.Consumer.Concurrency = getEnvInt("CONSUMER_CONCURRENCY", 4)
	config.Consumer.DedupEnabled = getEnvBool("DEDUP_ENABLED", false)
	config.Consumer.DedupTTL = getEnvDuration("DEDUP_TTL", time.Hour)
	config.Consumer.RelaySchedule = getEnv("OUTBOX_RELAY_SCHEDULE", "@every 2s")
	config.Consumer.RelayBatch = getEnvInt("OUTBOX_RELAY_BATCH", 50)
	config.Consumer.MetricsAddr = getEnv("METRICS_ADDR", ":9090")

	// Grafana/OpenTelemetry
	grafanaEndpoint := os.Getenv("GRAFANA_OTLP_ENDPOINT")
	// Remove protocol for OpenTelemetry client to avoid duplicate protocols
	if strings.HasPrefix(grafanaEndpoint, "https://") {
		config.Grafana.OTLPEndpoint = strings.TrimPrefix(grafanaEndpoint, "https://")
	} else if strings.HasPrefix(grafanaEndpoint, "http://") {
		config.Grafana.OTLPEndpoint = strings.TrimPrefix(grafanaEndpoint, "http://")
		config.Grafana.Insecure = true
	} else {
		config.Grafana.OTLPEndpoint = grafanaEndpoint
	}
	config.Grafana.ServiceName = getEnv("SERVICE_NAME", "gau-compute-dispatcher")

	config.Environment.Mode = getEnv("DEPLOY_ENV", "development")
	config.Environment.Group = getEnv("GROUP_NAME", "local")

	config.HTTPAddr = getEnv("HTTP_ADDR", ":8080")
	config.APIURL = getEnv("DISPATCH_API_URL", "http://localhost:8080")

	return &config
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return fallback
}

// getEnvDuration accepts Go durations ("90s") or plain seconds ("90").
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	if d, err := time.ParseDuration(val); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(val); err == nil {
		return time.Duration(secs) * time.Second
	}
	return fallback
}

func splitList(val string) []string {
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
