package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/JojoWeyn/transcriber/internal/domain/usecase"
	psqlRepo "github.com/JojoWeyn/transcriber/internal/repository/psql"
	"github.com/JojoWeyn/transcriber/internal/repository/rabbitmq"
	redisRepo "github.com/JojoWeyn/transcriber/internal/repository/redis"
	s3Repo "github.com/JojoWeyn/transcriber/internal/repository/s3"
	"github.com/JojoWeyn/transcriber/pkg/client/psql"
	redisGo "github.com/JojoWeyn/transcriber/pkg/client/redis"
	s3ClientGo "github.com/JojoWeyn/transcriber/pkg/client/s3"
	"github.com/JojoWeyn/transcriber/pkg/config"
	"github.com/JojoWeyn/transcriber/pkg/logger"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"github.com/urfave/cli/v3"
	"gorm.io/gorm"
)

// JobQueue is whichever queue driver the config selects.
type JobQueue interface {
	usecase.QueuePusher
	usecase.QueueConsumer
}

// AppContext holds the clients every command shares.
type AppContext struct {
	Config *config.Config
	Logger *slog.Logger

	DB       *gorm.DB
	Records  *psqlRepo.GormTranscriptionRepo
	Redis    *redis.Client
	Progress *redisRepo.ProgressChannel
	Queue    JobQueue
	Storage  *s3ClientGo.StorageS3
	Audio    *s3Repo.S3Repo

	closers []func() error
}

func newAppContext(cmd *cli.Command) (*AppContext, error) {
	cfg, err := config.Load(cmd.String("env"))
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	appLogger := logger.New(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})

	ac := &AppContext{Config: cfg, Logger: appLogger}
	if err := ac.connectDB(); err != nil {
		ac.Close()
		return nil, err
	}
	return ac, nil
}

func (ac *AppContext) connectDB() error {
	cfg := ac.Config.Postgres
	db, err := psql.NewPostgresDB(psql.Config{
		Host:     cfg.Host,
		Port:     cfg.Port,
		User:     cfg.User,
		Password: cfg.Password,
		DBName:   cfg.DBName,
		SslMode:  cfg.SSLMode,
	})
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	ac.closers = append(ac.closers, sqlDB.Close)
	ac.DB = db
	ac.Records = psqlRepo.NewGormTranscriptionRepo(db)
	return nil
}

// connectStreams opens Redis, the job queue and the artifact store.
func (ac *AppContext) connectStreams(ctx context.Context) error {
	cfg := ac.Config

	client, err := redisGo.NewRedisClient(ctx, redisGo.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		return err
	}
	ac.closers = append(ac.closers, client.Close)
	ac.Redis = client
	ac.Progress = redisRepo.NewProgressChannel(client, cfg.Stream.StatusTTL)

	switch cfg.Queue.Driver {
	case config.QueueDriverRabbitMQ:
		conn, err := amqp.Dial(cfg.RabbitMQ.URL)
		if err != nil {
			return fmt.Errorf("failed to connect to rabbitmq: %w", err)
		}
		ac.closers = append(ac.closers, conn.Close)
		q, err := rabbitmq.NewQueue(conn, cfg.RabbitMQ.Exchange, cfg.RabbitMQ.RoutingKey, cfg.RabbitMQ.Queue)
		if err != nil {
			return fmt.Errorf("failed to init rabbitmq queue: %w", err)
		}
		ac.closers = append(ac.closers, q.Close)
		ac.Queue = q
	default:
		ac.Queue = redisRepo.NewQueue(client, cfg.Queue.RedisKey)
	}

	storage, err := s3ClientGo.NewS3Client(s3ClientGo.Config{
		Endpoint:  cfg.S3.Endpoint,
		AccessKey: cfg.S3.AccessKey,
		SecretKey: cfg.S3.SecretKey,
		Bucket:    cfg.S3.Bucket,
		Region:    cfg.S3.Region,
		UseSSL:    cfg.S3.UseSSL,
	})
	if err != nil {
		return err
	}
	if err := storage.EnsureBucket(ctx, cfg.S3.Region); err != nil {
		return err
	}
	ac.Storage = storage
	ac.Audio = s3Repo.NewS3Repo(storage)
	return nil
}

// Close releases clients in reverse order of acquisition.
func (ac *AppContext) Close() {
	var errs []error
	for i := len(ac.closers) - 1; i >= 0; i-- {
		if err := ac.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil && ac.Logger != nil {
		ac.Logger.Warn("close clients", "error", err)
	}
}
