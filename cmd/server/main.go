package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/joho/godotenv"
	"github.com/nextai/nextai/internal/config"
	"github.com/nextai/nextai/internal/handlers"
	"github.com/nextai/nextai/internal/identity"
	"github.com/nextai/nextai/internal/middleware"
	"github.com/nextai/nextai/internal/repository"
	"github.com/nextai/nextai/internal/reset"
	"github.com/nextai/nextai/internal/service"
	"github.com/nextai/nextai/internal/worker"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetLevel(logrus.InfoLevel)

	if err := godotenv.Load(); err != nil {
		logger.Info("No .env file found, using process environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logger.WithError(err).Fatal("Failed to load configuration")
	}

	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logger.SetLevel(level)
	} else {
		logger.WithField("log_level", cfg.LogLevel).Warn("Unknown log level, using info")
	}

	dynamoClient, err := initDynamoDB(cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize DynamoDB")
	}

	redisClient, err := initRedis(cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize Redis")
	}
	defer redisClient.Close()

	// Initialize repositories
	accountRepo := repository.NewAccountRepository(dynamoClient, cfg.DynamoDB.TableName, logger)
	profileRepo := repository.NewProfileRepository(dynamoClient, cfg.DynamoDB.TableName, logger)
	chatRepo := repository.NewChatRepository(dynamoClient, cfg.DynamoDB.TableName, logger)

	var codeStore reset.CodeStore
	switch cfg.Reset.VerificationBackend {
	case config.VerificationBackendRedis:
		codeStore = repository.NewRedisVerificationStore(redisClient, cfg.Reset.CodeExpiry, cfg.Reset.RecordRetention, logger)
	default:
		codeStore = repository.NewVerificationCodeRepository(dynamoClient, cfg.DynamoDB.TableName, cfg.Reset.CodeExpiry, cfg.Reset.RecordRetention, logger)
	}
	logger.WithField("backend", cfg.Reset.VerificationBackend).Info("Verification code store selected")

	// Initialize services
	jwtService, err := service.NewJWTService(&cfg.JWT, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize JWT service")
	}

	mailer := service.NewMailer(cfg.Mail, logger)
	provider := identity.NewProvider(accountRepo, mailer, cfg.Auth.BcryptCost, logger)
	refreshTokenService := service.NewRefreshTokenService(redisClient, logger)
	gateway := service.NewCredentialGateway(provider, jwtService, refreshTokenService, logger)
	accountService := service.NewAccountService(gateway, profileRepo, logger)
	chatService := service.NewChatService(chatRepo, cfg.Chat.ListLimit, logger)

	resetQueue := service.NewResetQueue(redisClient, cfg.Reset.QueueKey, logger)
	sessions := reset.NewSessionStore(redisClient, cfg.Reset.SessionTTL, cfg.Reset.LockTTL, logger)
	workflow := reset.NewWorkflow(reset.Dependencies{
		Gateway:   gateway,
		Store:     codeStore,
		Generator: service.NewCodeGenerator(),
		Sender:    service.NewCodeMailer(mailer, cfg.Reset.CodeExpiry),
		Hasher:    provider,
		Queue:     resetQueue,
	}, logger)

	router := &handlers.Router{
		Auth:           handlers.NewAuthHandlers(accountService, gateway, logger),
		Reset:          handlers.NewResetHandlers(workflow, sessions, logger),
		Profile:        handlers.NewProfileHandlers(accountService, logger),
		Chats:          handlers.NewChatHandlers(chatService, logger),
		AuthMiddleware: middleware.NewAuthMiddleware(jwtService, logger),
		AllowedOrigins: cfg.Server.AllowedOrigins,
	}

	workerCtx, stopWorker := context.WithCancel(context.Background())
	workerDone := make(chan struct{})
	if cfg.Worker.Enabled {
		consumer := worker.NewResetConsumer(resetQueue, provider, cfg.Worker.PollInterval, logger)
		go func() {
			defer close(workerDone)
			consumer.Run(workerCtx)
		}()
	} else {
		close(workerDone)
		logger.Warn("Password reset worker disabled")
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router.Handler(logger),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.WithField("port", cfg.Server.Port).Info("Starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("Server failed to start")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
	}

	stopWorker()
	select {
	case <-workerDone:
	case <-ctx.Done():
		logger.Warn("Password reset worker did not stop in time")
	}

	logger.Info("Server exited")
}

func initDynamoDB(cfg *config.Config, logger *logrus.Logger) (*dynamodb.Client, error) {
	var awsCfg aws.Config
	var err error

	if cfg.DynamoDB.Endpoint != "" {
		awsCfg, err = awsconfig.LoadDefaultConfig(context.TODO(),
			awsconfig.WithRegion(cfg.DynamoDB.Region),
			awsconfig.WithEndpointResolverWithOptions(aws.EndpointResolverWithOptionsFunc(
				func(service, region string, options ...interface{}) (aws.Endpoint, error) {
					return aws.Endpoint{
						URL:           cfg.DynamoDB.Endpoint,
						SigningRegion: cfg.DynamoDB.Region,
					}, nil
				})),
		)
	} else {
		awsCfg, err = awsconfig.LoadDefaultConfig(context.TODO(), awsconfig.WithRegion(cfg.DynamoDB.Region))
	}

	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := dynamodb.NewFromConfig(awsCfg)
	logger.WithField("table", cfg.DynamoDB.TableName).Info("DynamoDB client initialized")
	return client, nil
}

func initRedis(cfg *config.Config, logger *logrus.Logger) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Endpoint,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.Redis.Endpoint, err)
	}

	logger.WithField("endpoint", cfg.Redis.Endpoint).Info("Redis client initialized")
	return client, nil
}
