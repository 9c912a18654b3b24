package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/prepvoice/prepvoice/handlers"
	"github.com/prepvoice/prepvoice/internal/agent"
	"github.com/prepvoice/prepvoice/internal/config"
	"github.com/prepvoice/prepvoice/internal/database"
	"github.com/prepvoice/prepvoice/internal/feedback"
	"github.com/prepvoice/prepvoice/internal/interviews"
	"github.com/prepvoice/prepvoice/internal/sessions"
	"github.com/prepvoice/prepvoice/internal/storage"
	"github.com/prepvoice/prepvoice/internal/tokens"
	"github.com/prepvoice/prepvoice/internal/users"
	"github.com/prepvoice/prepvoice/internal/voice"
	"github.com/prepvoice/prepvoice/pkg/logger"
	"github.com/prepvoice/prepvoice/pkg/metrics"
	"github.com/prepvoice/prepvoice/pkg/middleware"
)

var startTime = time.Now()

func main() {
	// logging first (LOG_LEVEL env: debug|info|warn|error|fatal)
	logger.Init(os.Getenv("LOG_LEVEL"))

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}
	logger.Infof("config loaded: mongo=%v redis=%v voice=%v llm=%v",
		cfg.MongoDB.URI != "", cfg.Redis.Host != "", cfg.Voice.GatewayURL != "", cfg.LLM.APIKey != "")

	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	// Lightweight CORS middleware for dev/test: set common headers and respond to OPTIONS.
	// (Keep this intentionally simple — production should use a stricter policy.)
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "Content-Length")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(200)
			return
		}
		c.Next()
	})

	r.Use(gin.Logger(), gin.Recovery())

	// Connect to Redis early so the rate limiter and token blacklist can use it
	var redisClient *redis.Client
	if cfg.Redis.Host != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Host + ":" + cfg.Redis.Port,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			logger.Warnf("failed to connect to Redis (%s:%s): %v", cfg.Redis.Host, cfg.Redis.Port, err)
			redisClient = nil
		} else {
			sessions.SetBlacklistClient(redisClient)
			logger.Infof("connected to Redis at %s:%s", cfg.Redis.Host, cfg.Redis.Port)
		}
	}

	// Optional global rate limiter (per-user when authenticated, otherwise per-IP)
	if cfg.RateLimit.Enabled {
		if cfg.RateLimit.UseRedis && redisClient != nil {
			win := time.Duration(cfg.RateLimit.WindowSeconds) * time.Second
			r.Use(middleware.RedisRateLimitMiddleware(redisClient, cfg.RateLimit.RPS, cfg.RateLimit.Burst, win))
		} else {
			r.Use(middleware.RateLimitMiddleware(cfg.RateLimit.RPS, cfg.RateLimit.Burst))
		}
	}

	// MongoDB is the system of record for users, interviews and feedback;
	// retry with backoff to tolerate startup races against the database.
	ctx := context.Background()
	client, err := database.ConnectMongoWithRetry(ctx, cfg.MongoDB.URI, cfg.MongoDB.Timeout, 5)
	if err != nil {
		logger.Fatalf("could not connect to MongoDB: %v", err)
	}
	defer func() { _ = client.Disconnect(ctx) }()

	db := client.Database(cfg.MongoDB.Database)
	userSvc := users.NewService(users.NewMongoUserRepository(db.Collection("users")))

	// Refresh sessions live in Redis when available (fast, TTL native),
	// otherwise in a Mongo collection.
	var sessionsSvc *sessions.Service
	if redisClient != nil {
		sessionsSvc = sessions.NewService(sessions.NewRedisRepository(redisClient, "session:"))
	} else {
		sessionsSvc = sessions.NewService(sessions.NewMongoRepository(db.Collection("sessions")))
	}

	gen, err := interviews.NewLLMQuestionGenerator(cfg.LLM.BaseURL, cfg.LLM.APIKey, cfg.LLM.Model)
	if err != nil {
		logger.Fatalf("LLM init failed (set LLM_API_KEY or OPENAI_API_KEY): %v", err)
	}
	scorer, err := feedback.NewLLMScorer(cfg.LLM.BaseURL, cfg.LLM.APIKey, cfg.LLM.Model)
	if err != nil {
		logger.Fatalf("LLM init failed: %v", err)
	}
	interviewSvc := interviews.NewService(interviews.NewMongoRepository(db.Collection("interviews")), gen)
	feedbackSvc := feedback.NewService(feedback.NewMongoRepository(db.Collection("feedback")), scorer)

	// Transcript archive is optional; without MinIO finished calls simply
	// skip archiving.
	var archive *storage.MinIOStorage
	if mcfg := storage.LoadMinIOConfig(); mcfg.Endpoint != "" {
		archive, err = storage.NewMinIOStorage(mcfg)
		if err != nil {
			logger.Warnf("transcript archive disabled: %v", err)
			archive = nil
		} else {
			logger.Infof("transcript archive enabled (bucket %s)", mcfg.Bucket)
		}
	}

	voiceClient := voice.NewClient(voice.Config{GatewayURL: cfg.Voice.GatewayURL, APIKey: cfg.Voice.APIKey})
	if cfg.Voice.GatewayURL == "" {
		logger.Warnf("VOICE_GATEWAY_URL not set; call endpoints will fail to start calls")
	}
	var archiver agent.TranscriptArchiver
	if archive != nil {
		archiver = archive
	}
	registry := agent.NewRegistry(agent.NewVoiceStarter(voiceClient), feedbackSvc, archiver, agent.Options{
		AssistantID:     cfg.Voice.AssistantID,
		WorkflowID:      cfg.Voice.WorkflowID,
		MaxCallDuration: cfg.Voice.MaxCallDuration,
	})

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "healthy")
	})

	// readiness: 200 only when critical dependencies are reachable
	r.GET("/ready", func(c *gin.Context) {
		ready := true
		deps := map[string]bool{}

		pingCtx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		deps["mongodb"] = client.Ping(pingCtx, nil) == nil
		if !deps["mongodb"] {
			ready = false
		}

		if cfg.Redis.Host != "" {
			deps["redis"] = redisClient != nil && redisClient.Ping(pingCtx).Err() == nil
			if !deps["redis"] && cfg.RateLimit.UseRedis {
				ready = false
			}
		}

		deps["voice"] = cfg.Voice.GatewayURL != ""
		deps["archive"] = archive != nil

		status := http.StatusOK
		body := gin.H{"status": "ready", "deps": deps, "uptime": time.Since(startTime).String()}
		if !ready {
			status = http.StatusServiceUnavailable
			body["status"] = "not_ready"
		}
		c.JSON(status, body)
	})

	authHandler := handlers.NewAuthHandler(cfg, userSvc, sessionsSvc)
	authHandler.Register(r.Group("/"))
	handlers.RegisterSwagger(r)

	verifier := tokens.NewVerifier(cfg)
	authMW := middleware.AuthMiddlewareWithRevocation(verifier, sessions.IsAccessTokenBlacklisted)

	r.GET("/auth/me", authMW, authHandler.Me)

	api := r.Group("/api/v1", authMW)
	api.GET("/me", authHandler.Me)
	handlers.NewInterviewHandler(interviewSvc, feedbackSvc).Register(api)
	var signer handlers.TranscriptURLSigner
	if archive != nil {
		signer = archive
	}
	handlers.NewCallHandler(registry, interviewSvc, signer).Register(api)

	metrics.RegisterCollectors(prometheus.DefaultRegisterer)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	// no blanket read/write timeouts: /api/v1/calls/:id/events holds a
	// long-lived WebSocket and a server WriteTimeout would sever it
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		logger.Infof("starting prepvoice on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Infof("shutting down")
	registry.StopAll()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("server shutdown: %v", err)
	}
}
