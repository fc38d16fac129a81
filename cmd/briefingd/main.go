package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"oddlynews/internal/cache"
	"oddlynews/internal/chain"
	"oddlynews/internal/client/elevenlabs"
	"oddlynews/internal/client/perplexity"
	polymarketgamma "oddlynews/internal/client/polymarket/gamma"
	"oddlynews/internal/client/supabase"
	"oddlynews/internal/config"
	cronrunner "oddlynews/internal/cron"
	"oddlynews/internal/db"
	"oddlynews/internal/errtrack"
	"oddlynews/internal/handler"
	"oddlynews/internal/llm"
	"oddlynews/internal/logger"
	"oddlynews/internal/metrics"
	"oddlynews/internal/middleware"
	gormrepository "oddlynews/internal/repository/gorm"
	"oddlynews/internal/service"

	_ "oddlynews/docs"
)

func main() {
	// A missing .env is fine; real deployments use the environment.
	_ = godotenv.Load()

	cfgPath := os.Getenv("ODDLY_CONFIG")
	if cfgPath == "" {
		cfgPath = "config/config.yaml"
	}

	envOnly := false
	if envOnlyRaw := os.Getenv("ODDLY_ENV_ONLY"); envOnlyRaw != "" {
		envOnly = strings.EqualFold(envOnlyRaw, "true") || envOnlyRaw == "1"
	}

	cfg, err := config.Load(cfgPath, envOnly)
	if err != nil {
		panic(err)
	}

	logger, err := logger.New(cfg.Log)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	tracker, err := errtrack.New(cfg.Sentry.DSN, cfg.App.Env)
	if err != nil {
		logger.Warn("sentry init failed (error tracking disabled)", zap.Error(err))
	}
	defer tracker.Flush(2 * time.Second)

	dbConn, err := db.Open(cfg.DB)
	if err != nil {
		logger.Fatal("db open failed", zap.Error(err))
	}
	defer db.Close(dbConn)

	if err := db.SetTimezone(dbConn, cfg.DB.Timezone); err != nil {
		logger.Warn("failed to set timezone", zap.Error(err))
	}
	if err := db.AutoMigrate(dbConn); err != nil {
		logger.Fatal("auto-migrate failed", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store := gormrepository.New(dbConn.Gorm, dbConn.Admin)
	marker, redisStore := initMarker(ctx, cfg.Redis, logger)
	if redisStore != nil {
		defer redisStore.Close()
	}

	gammaClient := polymarketgamma.NewClientWithHost(&http.Client{Timeout: cfg.Gamma.Timeout}, cfg.Gamma.BaseURL)
	searchClient := perplexity.NewClient(&http.Client{Timeout: cfg.Search.Timeout}, cfg.Search.BaseURL, cfg.Search.APIKey, cfg.Search.RequestsPerSec)
	ttsClient := elevenlabs.NewClient(&http.Client{Timeout: cfg.TTS.Timeout}, cfg.TTS.BaseURL, cfg.TTS.APIKey, cfg.TTS.ModelID, cfg.TTS.OutputFormat)
	storageClient := supabase.NewStorageClient(&http.Client{Timeout: cfg.Storage.Timeout}, cfg.Storage.URL, cfg.Storage.ServiceKey)
	llmClient, err := llm.NewClient(llm.Options{
		APIKey:  cfg.LLM.APIKey,
		BaseURL: cfg.LLM.BaseURL,
		Model:   cfg.LLM.Model,
		Timeout: cfg.LLM.Timeout,
	}, logger)
	if err != nil {
		logger.Fatal("llm client init failed", zap.Error(err))
	}

	var registrar *chain.Registrar
	if cfg.Chain.Enabled {
		registrar = initRegistrar(ctx, cfg.Chain, logger)
	}

	registry := &service.AgentRegistry{
		Repo:         store,
		Mnemonic:     cfg.Chain.MasterMnemonic,
		DefaultVoice: cfg.TTS.DefaultVoice,
		Logger:       logger,
	}
	if registrar != nil {
		registry.Registrar = registrar
	}
	if cfg.Seed.Enabled {
		n, err := registry.SeedDefaultAgents(ctx)
		if err != nil {
			logger.Warn("seed default agents failed", zap.Error(err))
		} else if n > 0 {
			logger.Info("seeded default agents", zap.Int("count", n))
		}
	}

	briefings := &service.BriefingStore{
		Repo:    store,
		Storage: storageClient,
		Bucket:  cfg.Storage.Bucket,
		Logger:  logger,
	}
	observers := service.Observers{metrics.PipelineObserver{}}
	if tracker != nil {
		observers = append(observers, tracker)
	}
	pipeline := &service.Pipeline{
		Markets:  gammaClient,
		Insights: &service.InsightExtractor{LLM: llmClient, MaxQueries: cfg.Pipeline.MaxSearchQueries, Logger: logger},
		News: &service.NewsFetcher{
			Search:           searchClient,
			MaxResults:       cfg.Search.MaxResults,
			MaxTokensPerPage: cfg.Search.MaxTokensPerPage,
			Logger:           logger,
		},
		Scripts:          &service.ScriptSynthesizer{LLM: llmClient, Format: service.ScriptFormat(cfg.LLM.ScriptFormat), Logger: logger},
		Audio:            &service.AudioSynthesizer{TTS: ttsClient, DefaultVoice: cfg.TTS.DefaultVoice, Logger: logger},
		Store:            briefings,
		Guard:            &service.GenerationGuard{Marker: marker, TTL: cfg.GenerationTTL(), Logger: logger},
		Observer:         observers,
		FreshnessMinutes: cfg.Pipeline.FreshnessMinutes,
		MarketLimit:      cfg.Gamma.Limit,
		Logger:           logger,
	}

	if strings.EqualFold(cfg.App.Env, "dev") {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(middleware.CORS())
	engine.Use(middleware.RequestLogger(logger))
	engine.Use(middleware.RequireBearer(cfg.Middleware.AdminToken))

	healthHandler := &handler.HealthHandler{DB: dbConn.Gorm}
	if redisStore != nil {
		healthHandler.Redis = redisStore
	}
	healthHandler.Register(engine)
	middleware.RegisterDocs(engine)
	agentHandler := &handler.AgentHandler{
		Agents:       registry,
		Generator:    pipeline,
		History:      briefings,
		Tracker:      tracker,
		HistoryLimit: cfg.Pipeline.HistoryLimit,
		Logger:       logger,
	}
	agentHandler.Register(engine)

	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))
	engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	srv := &http.Server{
		Addr:    cfg.Server.HTTPAddr,
		Handler: engine,
	}

	cronRunner := cronrunner.New(logger, ctx)
	if cfg.Cron.Enabled && registrar != nil {
		if _, err := cronRunner.Add("ens_retry", cfg.Cron.ENSRetry, cronrunner.ENSRetryJob(registry, logger)); err != nil {
			logger.Warn("cron register ens retry failed", zap.Error(err))
		}
		if _, err := cronRunner.Add("balance_check", cfg.Cron.BalanceCheck, cronrunner.BalanceCheckJob(registrar, logger)); err != nil {
			logger.Warn("cron register balance check failed", zap.Error(err))
		}
	}
	cronRunner.Start()
	defer cronRunner.Stop()

	errCh := make(chan error, 1)

	go func() {
		logger.Info("http server starting", zap.String("addr", cfg.Server.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown requested")
	case err := <-errCh:
		logger.Error("server error", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}

// initMarker returns the Redis-backed generation marker when Redis is
// configured and reachable, otherwise an in-process store.
func initMarker(ctx context.Context, cfg config.RedisConfig, logger *zap.Logger) (cache.Store, *cache.RedisStore) {
	if strings.TrimSpace(cfg.Addr) == "" {
		logger.Info("redis not configured, generation guard is process-local")
		return cache.NewMemoryStore(), nil
	}
	rs := cache.NewRedisStore(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rs.Ping(pingCtx); err != nil {
		logger.Warn("redis ping failed, generation guard is process-local", zap.Error(err))
		_ = rs.Close()
		return cache.NewMemoryStore(), nil
	}
	logger.Info("redis connected", zap.String("addr", cfg.Addr))
	return rs, rs
}

func initRegistrar(ctx context.Context, cfg config.ChainConfig, logger *zap.Logger) *chain.Registrar {
	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	backend, err := chain.Dial(dialCtx, cfg.RPCURL)
	if err != nil {
		logger.Warn("rpc dial failed (ens disabled)", zap.Error(err))
		return nil
	}
	registrar, err := chain.NewRegistrar(backend, chain.RegistrarOptions{
		Address:             cfg.RegistrarAddress,
		PrivateKey:          cfg.RegistrarPrivateKey,
		ParentDomain:        cfg.ParentDomain,
		GasMarginPct:        cfg.GasMarginPct,
		MinBalanceEth:       cfg.MinBalanceEth,
		ConfirmationTimeout: cfg.ConfirmationTimeout,
	}, logger)
	if err != nil {
		logger.Warn("registrar init failed (ens disabled)", zap.Error(err))
		return nil
	}
	logger.Info("ens registrar ready",
		zap.String("signer", registrar.SignerAddress().Hex()),
		zap.String("parent", cfg.ParentDomain),
	)
	if bal, err := registrar.Balance(ctx); err == nil && !bal.Sufficient {
		logger.Warn("registrar balance low", zap.String("eth", bal.Ether.String()))
	}
	if _, gwei, err := registrar.GasPrice(ctx); err == nil {
		logger.Info("current gas price", zap.String("gwei", gwei.StringFixed(3)))
	}
	return registrar
}
