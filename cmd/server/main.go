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

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"posdoctor/internal/cache"
	"posdoctor/internal/config"
	"posdoctor/internal/httpapi"
	"posdoctor/internal/logger"
	"posdoctor/internal/reconcile"
	"posdoctor/internal/service"
	"posdoctor/internal/store/backend"
)

func main() {
	cfg := config.Load()
	log := logger.New(logger.Config{Env: cfg.Env, Level: cfg.LogLevel})
	if err := validateSecurityConfig(cfg); err != nil {
		log.Fatal().Err(err).Msg("invalid security configuration")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	closers := make([]func() error, 0, 2)

	st, closeStore, err := backend.Open(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Str("backend", cfg.StoreBackend).Msg("store unavailable; refusing to start")
	}
	closers = append(closers, closeStore)
	log.Info().Str("backend", cfg.StoreBackend).Msg("store opened")

	reports, closeReports := newReportCache(ctx, cfg, log)
	closers = append(closers, closeReports)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := service.NewMetrics(registry)

	svc := service.New(st, reports, metrics, log, service.Options{
		Reconcile: reconcile.Options{
			StaleAfter:             cfg.StaleAfter(),
			StampEndTimeOnDemotion: cfg.StampDemotedEndTime,
			ClearStalePointer:      cfg.ClearStalePointer,
		},
		AdminPassword: cfg.SeedAdminPassword,
		ReportTTL:     cfg.ReportTTL(),
	})

	if cfg.RepairOnStart {
		if _, err := svc.Repair(ctx); err != nil {
			log.Error().Err(err).Msg("startup repair failed")
		}
	}

	if cfg.RepairSchedule != "" {
		scheduler, err := service.ScheduleRepair(svc, cfg.RepairSchedule, time.Local)
		if err != nil {
			log.Fatal().Err(err).Str("at", cfg.RepairSchedule).Msg("invalid REPAIR_SCHEDULE")
		}
		defer scheduler.Stop()
		log.Info().Str("at", cfg.RepairSchedule).Msg("daily repair scheduled")
	}

	auth := httpapi.NewAuthManager(cfg.AuthSecret, time.Duration(cfg.AccessTokenTTLMinutes)*time.Minute, cfg.ManagerPIN, svc)
	api := httpapi.New(svc, auth, cfg.AllowedOrigin, promhttp.HandlerFor(registry, promhttp.HandlerOpts{}), log)

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.Address()).Msg("maintenance API listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown error")
	}

	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			log.Error().Err(err).Msg("close error")
		}
	}

	log.Info().Msg("server stopped")
}

// newReportCache uses Redis when REDIS_ADDR is set and reachable, otherwise
// an in-process cache.
func newReportCache(ctx context.Context, cfg config.Config, log zerolog.Logger) (cache.ReportCache, func() error) {
	if cfg.RedisAddr == "" {
		log.Info().Msg("report cache: memory")
		return cache.NewMemoryReportCache(), func() error { return nil }
	}
	redisCache := cache.NewRedisReportCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.RedisPrefix)
	if err := redisCache.Ping(ctx); err != nil {
		log.Warn().Err(err).Msg("redis unavailable, using memory report cache")
		_ = redisCache.Close()
		return cache.NewMemoryReportCache(), func() error { return nil }
	}
	log.Info().Msg("report cache: redis")
	return redisCache, redisCache.Close
}

func validateSecurityConfig(cfg config.Config) error {
	if len(cfg.AuthSecret) < 32 {
		return fmt.Errorf("AUTH_SECRET must be set and at least 32 characters")
	}
	if len(cfg.ManagerPIN) < 6 {
		return fmt.Errorf("MANAGER_PIN must be set and at least 6 digits")
	}
	if err := validatePINStrength(cfg.ManagerPIN); err != nil {
		return fmt.Errorf("MANAGER_PIN is too weak: %w", err)
	}
	if cfg.SeedAdminPassword != "" && len(cfg.SeedAdminPassword) < 8 {
		return fmt.Errorf("SEED_ADMIN_PASSWORD must be at least 8 characters")
	}
	return nil
}

// validatePINStrength rejects PINs that are all the same digit,
// sequential (ascending or descending), or from a known-weak list.
func validatePINStrength(pin string) error {
	known := map[string]bool{
		"123456": true, "654321": true, "000000": true, "111111": true,
		"222222": true, "333333": true, "444444": true, "555555": true,
		"666666": true, "777777": true, "888888": true, "999999": true,
		"121212": true, "112233": true, "123123": true,
	}
	if known[pin] {
		return fmt.Errorf("common PIN not allowed")
	}

	allSame := true
	for i := 1; i < len(pin); i++ {
		if pin[i] != pin[0] {
			allSame = false
			break
		}
	}
	if allSame {
		return fmt.Errorf("all-same-digit PIN not allowed")
	}

	// Ascending or descending runs, e.g. 234567 or 987654.
	ascending, descending := true, true
	for i := 1; i < len(pin); i++ {
		diff := int(pin[i]) - int(pin[i-1])
		if diff != 1 {
			ascending = false
		}
		if diff != -1 {
			descending = false
		}
	}
	if ascending || descending {
		return fmt.Errorf("sequential PIN not allowed")
	}

	return nil
}
