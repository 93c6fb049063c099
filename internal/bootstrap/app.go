package bootstrap

import (
	"context"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	appsvc "discus-vision/internal/app"
	"discus-vision/internal/cache"
	"discus-vision/internal/config"
	"discus-vision/internal/model"
	mysqlClient "discus-vision/internal/platform/mysql"
	rabbitmqClient "discus-vision/internal/platform/rabbitmq"
	redisClient "discus-vision/internal/platform/redis"
	"discus-vision/internal/repository"
	"discus-vision/internal/storage"
	"discus-vision/internal/vision"
	"discus-vision/internal/worker"
)

type App struct {
	Config    *config.Config
	Logger    *zap.SugaredLogger
	Store     *storage.SlotStore
	Predictor vision.Predictor
	Images    *appsvc.ImageService

	MySQL           *gorm.DB
	Redis           *redis.Client
	MQConn          *amqp.Connection
	EventPublisher  *rabbitmqClient.EventPublisher
	PredictionSaver *worker.PredictionPersistWorker

	StartedAt time.Time
}

// New prepares the storage directory, the predictor and every enabled
// backing service. Failing to prepare the storage directory is fatal to the
// caller; there is nothing useful the service can do without it.
func New(ctx context.Context, cfg *config.Config, logger *zap.SugaredLogger) (*App, error) {
	a := &App{
		Config:    cfg,
		Logger:    logger,
		StartedAt: time.Now(),
	}

	a.Store = storage.NewSlotStore(cfg.Storage.Dir, cfg.Storage.MaxUploadBytes)
	if err := a.Store.Ensure(); err != nil {
		return nil, err
	}
	logger.Infow("storage ready", "dir", cfg.Storage.Dir, "max_upload_bytes", cfg.Storage.MaxUploadBytes)

	predictor, err := NewPredictor(cfg)
	if err != nil {
		return nil, err
	}
	a.Predictor = predictor

	var opts []appsvc.Option

	if cfg.MySQL.Enabled {
		db, err := mysqlClient.New(ctx, cfg.MySQLDSN())
		if err != nil {
			a.Close()
			return nil, err
		}
		a.MySQL = db
		if err := db.AutoMigrate(&model.PredictionRecord{}); err != nil {
			a.Close()
			return nil, fmt.Errorf("auto migrate tables failed: %w", err)
		}
		opts = append(opts, appsvc.WithHistory(repository.NewPredictionRepository(db)))
	}

	if cfg.Redis.Enabled {
		client, err := redisClient.New(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.Redis = client
		ttl := time.Duration(cfg.Redis.PredictionTTLSeconds) * time.Second
		opts = append(opts, appsvc.WithCache(cache.NewPredictionCache(client, ttl)))
	}

	if cfg.RabbitMQ.Enabled {
		conn, err := rabbitmqClient.New(ctx, cfg.RabbitMQ.URL)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.MQConn = conn
		a.EventPublisher = rabbitmqClient.NewEventPublisher(conn, cfg.RabbitMQ.PredictionQueue)
		opts = append(opts, appsvc.WithPublisher(a.EventPublisher))

		// Without a database there is nowhere to persist events; they stay
		// queued for a later instance that has one.
		if a.MySQL != nil {
			a.PredictionSaver = worker.NewPredictionPersistWorker(
				conn,
				repository.NewPredictionRepository(a.MySQL),
				cfg.RabbitMQ.PredictionQueue,
				logger,
			)
			if err := a.PredictionSaver.Start(ctx); err != nil {
				a.Close()
				return nil, fmt.Errorf("start prediction worker failed: %w", err)
			}
		}
	}

	a.Images = appsvc.NewImageService(a.Store, a.Predictor, logger, opts...)
	return a, nil
}

// NewPredictor picks the predictor named by cfg.Predictor.Backend.
func NewPredictor(cfg *config.Config) (vision.Predictor, error) {
	switch cfg.Predictor.Backend {
	case "remote":
		return vision.NewRemotePredictor(cfg.Predictor.RemoteURL, time.Duration(cfg.Predictor.TimeoutSeconds)*time.Second), nil
	case "onnx":
		return vision.NewClassifier(cfg.Vision.ModelPath, cfg.Vision.ONNXSharedLibPath, vision.Labels), nil
	case "mock":
		return vision.NewMockPredictor(cfg.Predictor.MockSeed, time.Duration(cfg.Predictor.MockDelayMS)*time.Millisecond), nil
	default:
		return nil, fmt.Errorf("unknown predictor backend %q", cfg.Predictor.Backend)
	}
}

func (a *App) Close() error {
	var closeErr error
	if a.PredictionSaver != nil {
		a.PredictionSaver.Close()
	}
	if a.EventPublisher != nil {
		if err := a.EventPublisher.Close(); err != nil {
			closeErr = err
		}
	}
	if a.MQConn != nil {
		if err := a.MQConn.Close(); err != nil {
			closeErr = err
		}
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			closeErr = err
		}
	}
	if a.MySQL != nil {
		sqlDB, err := a.MySQL.DB()
		if err == nil {
			if err := sqlDB.Close(); err != nil {
				closeErr = err
			}
		}
	}
	if c, ok := a.Predictor.(*vision.Classifier); ok {
		c.Close()
	}
	return closeErr
}
