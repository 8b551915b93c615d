// cmd/foodlogd/main.go
package main

import (
	"context"
	"flag"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"foodlog/internal/common/cache"
	"foodlog/internal/common/config"
	"foodlog/internal/common/logger"
	"foodlog/internal/common/observability"
	"foodlog/internal/extract/llm"
	"foodlog/internal/nutrition/fdc"
	"foodlog/internal/nutrition/openfoodfacts"
	"foodlog/internal/nutrition/resolver"
	"foodlog/internal/pipeline"
	"foodlog/internal/server"
)

func main() {
	configPath := flag.String("config", "", "path to a config file; otherwise the usual locations are searched")
	flag.Parse()

	var (
		cfg *config.Config
		err error
	)
	if *configPath != "" {
		cfg, err = config.LoadFromFile(*configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		fallback := logger.New("info", "console")
		fallback.Fatal("config load failed", zap.Error(err))
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting foodlogd...",
		zap.String("ollama_host", cfg.Ollama.Host),
		zap.String("ollama_model", cfg.Ollama.Model),
	)

	obs := observability.New("foodlogd")
	defer obs.Shutdown()

	ctx := context.Background()

	// --- Optional Redis cache tier ---
	remote := cache.NewRemote(cfg.Redis, cfg.Providers.GetCacheTTL())
	if remote != nil {
		if err := remote.Ping(ctx); err != nil {
			zapLog.Warn("redis unreachable, continuing with in-process cache only", zap.Error(err))
		} else {
			zapLog.Info("Redis cache tier connected", zap.String("addr", cfg.Redis.Address))
		}
		defer remote.Close()
	}

	// --- Nutrition providers ---
	offClient := openfoodfacts.NewClient(openfoodfacts.Config{
		BaseURL:  cfg.Providers.OpenFoodFacts.BaseURL,
		CacheTTL: cfg.Providers.GetCacheTTL(),
		CacheMax: cfg.Providers.CacheSize,
	}, remote, log)

	fdcClient := fdc.NewClient(fdc.Config{
		BaseURL:  cfg.Providers.FoodDataCentral.BaseURL,
		APIKey:   cfg.Providers.FoodDataCentral.APIKey,
		CacheTTL: cfg.Providers.GetCacheTTL(),
		CacheMax: cfg.Providers.CacheSize,
	}, remote, log)
	if !fdcClient.Enabled() {
		zapLog.Warn("FoodData Central disabled: no API key configured")
	}

	nutritionResolver := resolver.New(offClient, fdcClient, resolver.Config{
		Concurrency: cfg.Nutrition.Concurrency,
		CountryISO2: cfg.Nutrition.CountryISO2,
	}, log)

	// --- Extraction ---
	extractor := llm.NewExtractor(llm.Config{
		Host:      cfg.Ollama.Host,
		Model:     cfg.Ollama.Model,
		NumCtx:    cfg.Ollama.NumCtx,
		MaxTokens: cfg.Ollama.MaxTokens,
		Timeout:   cfg.Ollama.GetTimeout(),
		KeepAlive: cfg.Ollama.KeepAlive,
	}, log)

	p := pipeline.New(extractor, nutritionResolver, pipeline.Config{
		CountryISO2: cfg.Nutrition.CountryISO2,
	}, obs, log)

	// --- HTTP Server ---
	srv := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      server.New(p, log).Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
	}

	go func() {
		zapLog.Info("HTTP server listening", zap.String("addr", cfg.Server.Address))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLog.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, draining requests...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error during HTTP shutdown", zap.Error(err))
	}

	zapLog.Info("foodlogd stopped gracefully")
}
