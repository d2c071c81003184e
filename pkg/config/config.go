package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	QueueDriverRedis    = "redis"
	QueueDriverRabbitMQ = "rabbitmq"
)

type Config struct {
	HTTP     HTTPConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	S3       S3Config
	RabbitMQ RabbitMQConfig
	Queue    QueueConfig
	Intake   IntakeConfig
	Stream   StreamConfig
	Limit    RateLimitConfig
	Auth     AuthConfig
	Worker   WorkerConfig
	OpenAI   OpenAIConfig
	Log      LogConfig
}

type HTTPConfig struct {
	Addr string
}

type PostgresConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type S3Config struct {
	Endpoint  string
	Bucket    string
	AccessKey string
	SecretKey string
	Region    string
	UseSSL    bool
	URLExpiry time.Duration
}

type RabbitMQConfig struct {
	URL        string
	Exchange   string
	RoutingKey string
	Queue      string
}

type QueueConfig struct {
	Driver   string
	RedisKey string
}

type IntakeConfig struct {
	MaxAudioBytes int64
	RetryAttempts int
}

type StreamConfig struct {
	GracePeriod time.Duration
	StatusTTL   time.Duration
}

type RateLimitConfig struct {
	Limit  int
	Window time.Duration
}

type AuthConfig struct {
	// Tokens maps bearer tokens to user ids.
	Tokens map[string]string
}

type WorkerConfig struct {
	Concurrency int
	PollTimeout time.Duration
}

type OpenAIConfig struct {
	APIKey  string
	BaseURL string
}

type LogConfig struct {
	Level  string
	Format string
}

// Load reads the environment, optionally seeded from envFile. A missing env file is not an error.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
		}
	}

	tokens, err := parseTokens(getEnv("AUTH_TOKENS", ""))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		HTTP: HTTPConfig{
			Addr: getEnv("HTTP_ADDR", ":8080"),
		},
		Postgres: PostgresConfig{
			Host:     getEnv("PSQL_HOST", "localhost"),
			Port:     getEnvAsInt("PSQL_PORT", 5432),
			User:     getEnv("PSQL_USER", "transcriber"),
			Password: getEnv("PSQL_PASSWORD", ""),
			DBName:   getEnv("PSQL_DB", "transcriber"),
			SSLMode:  getEnv("PSQL_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_HOST", "localhost") + ":" + getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		S3: S3Config{
			Endpoint:  getEnv("S3_HOST", "localhost") + ":" + getEnv("S3_PORT", "9000"),
			Bucket:    getEnv("S3_BUCKET", "audio"),
			AccessKey: getEnv("S3_ACCESS_KEY", ""),
			SecretKey: getEnv("S3_SECRET_KEY", ""),
			Region:    getEnv("S3_REGION", "us-east-1"),
			UseSSL:    getEnvAsBool("S3_USE_SSL", false),
			URLExpiry: getEnvAsDuration("S3_URL_EXPIRY", time.Hour),
		},
		RabbitMQ: RabbitMQConfig{
			URL:        rabbitURL(),
			Exchange:   getEnv("RABBITMQ_EXCHANGE", "transcription.exchange"),
			RoutingKey: getEnv("RABBITMQ_ROUTING_KEY", "transcription.created"),
			Queue:      getEnv("RABBITMQ_QUEUE", "transcription.queue"),
		},
		Queue: QueueConfig{
			Driver:   strings.ToLower(getEnv("QUEUE_DRIVER", QueueDriverRedis)),
			RedisKey: getEnv("QUEUE_REDIS_KEY", "transcription:queue"),
		},
		Intake: IntakeConfig{
			MaxAudioBytes: int64(getEnvAsInt("INTAKE_MAX_AUDIO_BYTES", 50<<20)),
			RetryAttempts: getEnvAsInt("INTAKE_ENQUEUE_ATTEMPTS", 5),
		},
		Stream: StreamConfig{
			GracePeriod: getEnvAsDuration("STREAM_GRACE_PERIOD", time.Second),
			StatusTTL:   getEnvAsDuration("STREAM_STATUS_TTL", 24*time.Hour),
		},
		Limit: RateLimitConfig{
			Limit:  getEnvAsInt("RATE_LIMIT", 10),
			Window: getEnvAsDuration("RATE_LIMIT_WINDOW", time.Second),
		},
		Auth: AuthConfig{
			Tokens: tokens,
		},
		Worker: WorkerConfig{
			Concurrency: getEnvAsInt("WORKER_CONCURRENCY", 1),
			PollTimeout: getEnvAsDuration("WORKER_POLL_TIMEOUT", 5*time.Second),
		},
		OpenAI: OpenAIConfig{
			APIKey:  getEnv("OPENAI_API_KEY", ""),
			BaseURL: getEnv("OPENAI_BASE_URL", ""),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Queue.Driver {
	case QueueDriverRedis:
	case QueueDriverRabbitMQ:
		if c.RabbitMQ.URL == "" {
			return errors.New("QUEUE_DRIVER=rabbitmq requires RABBITMQ_URL or RABBITMQ_HOST")
		}
	default:
		return fmt.Errorf("unknown QUEUE_DRIVER %q", c.Queue.Driver)
	}
	if c.Intake.MaxAudioBytes <= 0 {
		return errors.New("INTAKE_MAX_AUDIO_BYTES must be positive")
	}
	if c.Worker.Concurrency < 1 {
		return errors.New("WORKER_CONCURRENCY must be at least 1")
	}
	return nil
}

func rabbitURL() string {
	if u := os.Getenv("RABBITMQ_URL"); u != "" {
		return u
	}
	host := os.Getenv("RABBITMQ_HOST")
	if host == "" {
		return ""
	}
	return "amqp://" + getEnv("RABBITMQ_USER", "guest") + ":" + getEnv("RABBITMQ_PASSWORD", "guest") +
		"@" + host + ":" + getEnv("RABBITMQ_PORT", "5672") + "/"
}

// parseTokens reads "token:user,token2:user2".
func parseTokens(raw string) (map[string]string, error) {
	tokens := make(map[string]string)
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		token, user, ok := strings.Cut(pair, ":")
		if !ok || token == "" || user == "" {
			return nil, fmt.Errorf("invalid AUTH_TOKENS entry %q, want token:user", pair)
		}
		tokens[token] = user
	}
	return tokens, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	value, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	value, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	value, err := time.ParseDuration(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return value
}
