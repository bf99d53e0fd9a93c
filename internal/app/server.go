// internal/app/server.go
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"adminauth-service/internal/config"
	"adminauth-service/internal/db"
	"adminauth-service/internal/events"
	auditHandler "adminauth-service/internal/handlers/audit"
	authHandler "adminauth-service/internal/handlers/auth"
	wsHandler "adminauth-service/internal/handlers/websocket"
	"adminauth-service/internal/middleware"
	"adminauth-service/internal/pkg/hash"
	"adminauth-service/internal/pkg/jwt"
	"adminauth-service/internal/pkg/session"
	"adminauth-service/internal/repository/postgres"
	authUsecase "adminauth-service/internal/service/auth"
	"adminauth-service/internal/service/email"
	"adminauth-service/internal/websocket"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const serviceName = "adminauth-service"

type Server struct {
	cfg         config.AppConfig
	engine      *gin.Engine
	logger      *zap.Logger
	httpServer  *http.Server
	authService *authUsecase.AuthService

	stopHub context.CancelFunc
	closers []func() error
}

func NewServer(cfg config.AppConfig, logger *zap.Logger) *Server {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{cfg: cfg, engine: gin.New(), logger: logger}
}

// Build connects to storage and wires every component. Resources opened here
// are released by Shutdown, also when Build fails half way.
func (s *Server) Build(ctx context.Context) error {
	logger := s.logger

	// ----- PostgreSQL -----
	pool, err := db.ConnectDB(ctx, s.cfg.DatabaseURL)
	if err != nil {
		return err
	}
	s.onClose(func() error { pool.Close(); return nil })
	logger.Info("connected to PostgreSQL")

	// ----- Redis -----
	redisClient, err := db.NewRedisClient(ctx, db.RedisConfig{
		ClusterMode: false,
		Addresses:   []string{s.cfg.RedisAddr},
		Password:    s.cfg.RedisPass,
		DB:          s.cfg.RedisDB,
		PoolSize:    10,
	})
	if err != nil {
		return err
	}
	s.onClose(redisClient.Close)
	logger.Info("connected to Redis", zap.String("addr", s.cfg.RedisAddr))

	// ----- JWT Manager -----
	jwtManager, err := jwt.LoadAndBuild(s.cfg.JWT)
	if err != nil {
		return fmt.Errorf("failed to load JWT manager: %w", err)
	}

	// ----- Hashing -----
	hasher, err := hash.New(s.cfg.HashAlgorithm)
	if err != nil {
		return err
	}

	// ----- Repositories & Stores -----
	accountRepo := postgres.NewAccountRepository(pool)
	auditRepo := postgres.NewAuditRepository(pool)
	resetStore, err := newResetStore(s.cfg, pool, redisClient)
	if err != nil {
		return err
	}
	refreshStore := session.NewRefreshStore(redisClient)
	rateLimiter := session.NewRateLimiter(redisClient, s.cfg.LoginRateLimit, s.cfg.LoginRateWindow)

	// ----- Token issuer & WebSocket Hub -----
	tokens := authUsecase.NewTokenIssuer(jwtManager, refreshStore, accountRepo, logger)

	hub := websocket.NewHub(tokens, logger)
	hubCtx, stopHub := context.WithCancel(context.Background())
	s.stopHub = stopHub
	go hub.Run(hubCtx)

	// ----- Events -----
	publisher, err := s.buildPublisher(hub, auditRepo)
	if err != nil {
		return err
	}

	// ----- Email -----
	if s.cfg.SMTPHost == "" {
		logger.Warn("SMTP_HOST not set, reset links cannot be delivered")
	}
	emailSender := email.NewEmailSender(
		s.cfg.SMTPHost,
		s.cfg.SMTPPort,
		s.cfg.SMTPUser,
		s.cfg.SMTPPass,
		s.cfg.SMTPFromName,
		s.cfg.SMTPSecure,
	)
	notifier := email.NewResetNotifier(emailSender, s.cfg.ResetBaseURL, s.cfg.ResetTokenTTL, logger)

	// ----- Services (Usecases) -----
	authService := authUsecase.NewAuthService(
		accountRepo,
		authUsecase.NewCredentialVerifier(hasher, logger),
		authUsecase.NewLockoutTracker(accountRepo, publisher, s.cfg.LockoutThreshold, logger),
		tokens,
		authUsecase.NewResetTokenManager(resetStore, s.cfg.ResetTokenTTL),
		hasher,
		notifier,
		publisher,
		logger,
	)
	s.authService = authService

	// ----- Metrics -----
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics, err := middleware.NewHTTPMetrics(middleware.HTTPMetricsOptions{Registerer: registry})
	if err != nil {
		return err
	}

	// ----- Router -----
	SetupRouter(s.engine, logger, &Handlers{
		AuthHandler:    authHandler.NewAuthHandler(authService, rateLimiter, metrics, logger),
		AuditHandler:   auditHandler.NewAuditHandler(auditRepo, logger),
		WSHandler:      wsHandler.NewWebSocketHandler(hub, s.cfg.AllowedOrigins, logger),
		AuthMiddleware: middleware.NewAuthMiddleware(authService),
		Metrics:        metrics,
		Gatherer:       registry,
	})

	s.httpServer = &http.Server{
		Addr:              s.cfg.HTTPAddr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return nil
}

// Run serves HTTP until Shutdown is called.
func (s *Server) Run() error {
	if s.httpServer == nil {
		return errors.New("server not built")
	}
	s.logger.Info("server running", zap.String("addr", s.cfg.HTTPAddr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains HTTP, stops the hub and closes storage and producers in
// reverse order of creation.
func (s *Server) Shutdown(ctx context.Context) error {
	var errs []error
	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("http shutdown: %w", err))
		}
	}
	if s.stopHub != nil {
		s.stopHub()
	}
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}

func (s *Server) onClose(fn func() error) {
	s.closers = append(s.closers, fn)
}

// buildPublisher fans events out to the structured log, the audit table, the
// websocket hub and, when brokers are configured, Kafka.
func (s *Server) buildPublisher(hub events.Broadcaster, store events.EventStore) (events.Publisher, error) {
	audit := events.NewStorePublisher(store, 2*time.Second, s.logger)
	s.onClose(audit.Close)

	publishers := events.Multi{
		events.NewLogPublisher(s.logger),
		audit,
		events.NewHubPublisher(hub),
	}

	if len(s.cfg.KafkaBrokers) == 0 {
		s.logger.Info("KAFKA_BROKERS not set, audit events stay local")
		return publishers, nil
	}

	producer, err := events.NewSaramaProducer(s.cfg.KafkaBrokers)
	if err != nil {
		return nil, err
	}
	kafka := events.NewKafkaPublisher(producer, s.cfg.KafkaTopic, serviceName, s.logger)
	s.onClose(kafka.Close)

	return append(publishers, kafka), nil
}

func newResetStore(cfg config.AppConfig, pool postgres.Pool, client redis.UniversalClient) (authUsecase.ResetTokenStore, error) {
	switch cfg.ResetTokenBackend {
	case "", "postgres":
		return postgres.NewResetTokenRepository(pool), nil
	case "redis":
		return session.NewResetTokenCache(client, cfg.ResetTokenTTL), nil
	default:
		return nil, fmt.Errorf("unknown RESET_TOKEN_BACKEND %q", cfg.ResetTokenBackend)
	}
}
