// Command server starts the originmesh control-plane service: it loads the
// declarative VirtualHost/Domain/Origin tree, wires the ingest adapters into
// the Orchestrator's module registry, and serves the admin API and chat
// WebSocket endpoint.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"originmesh/internal/chatapp"
	"originmesh/internal/ingest"
	"originmesh/internal/observability/logging"
	"originmesh/internal/observability/metrics"
	"originmesh/internal/orchestrator"
	"originmesh/internal/orchestrator/config"
	"originmesh/internal/server"
)

func main() {
	addr := flag.String("addr", "", "HTTP listen address")
	mode := flag.String("mode", "", "server runtime mode (development or production)")
	hostsFile := flag.String("hosts", "", "path to the virtual host YAML document")
	tlsCert := flag.String("tls-cert", "", "path to TLS certificate file")
	tlsKey := flag.String("tls-key", "", "path to TLS private key file")
	logLevel := flag.String("log-level", "info", "log level (debug, info, warn, error)")
	globalRPS := flag.Float64("rate-global-rps", 0, "global request rate limit in requests per second")
	globalBurst := flag.Int("rate-global-burst", 0, "global rate limit burst allowance")
	adminLimit := flag.Int("rate-admin-limit", 0, "maximum admin mutation attempts per window for a single client")
	adminWindow := flag.Duration("rate-admin-window", 0, "window for counting admin mutation attempts")
	adminOrigins := flag.String("admin-origins", "", "comma separated origins allowed to call the admin API with credentials")
	viewerOrigins := flag.String("viewer-origins", "", "comma separated origins allowed to read viewer-facing endpoints")
	flag.Parse()

	logger := logging.New(logging.Config{Level: firstNonEmpty(*logLevel, os.Getenv("ORIGINMESH_LOG_LEVEL"))})
	auditLogger := logging.WithComponent(logger, "audit")

	if err := config.LoadDotEnv(); err != nil {
		logger.Warn("failed to load .env", "error", err)
	}

	serverMode := modeValue(*mode, os.Getenv("ORIGINMESH_MODE"))
	listenAddr := resolveListenAddr(*addr, serverMode, os.Getenv("ORIGINMESH_ADDR"))
	tlsCertPath := firstNonEmpty(*tlsCert, os.Getenv("ORIGINMESH_TLS_CERT"))
	tlsKeyPath := firstNonEmpty(*tlsKey, os.Getenv("ORIGINMESH_TLS_KEY"))

	registry := orchestrator.NewRegistry(logging.WithComponent(logger, "registry"))
	orch := orchestrator.New(registry, logging.WithComponent(logger, "orchestrator"))

	ingestConfig, err := ingest.LoadConfigFromEnv()
	if err != nil {
		logger.Error("failed to load ingest configuration", "error", err)
		os.Exit(1)
	}
	if ingestConfig.Enabled() {
		provider, publisher, transcoder, router, err := ingestConfig.NewOrchestratorModules(orchestrator.ProviderRtmp)
		if err != nil {
			logger.Error("failed to build ingest modules", "error", err)
			os.Exit(1)
		}
		for _, module := range []orchestrator.Module{provider, publisher, transcoder, router} {
			if err := registry.Register(module); err != nil {
				logger.Error("failed to register ingest module", "type", module.GetModuleType().String(), "error", err)
				os.Exit(1)
			}
		}
		logger.Info("ingest modules registered", "srs_api", ingestConfig.SRSBaseURL, "ome_api", ingestConfig.OMEBaseURL, "transcoder_api", ingestConfig.JobBaseURL)
	} else {
		logger.Warn("ingest configuration incomplete, running without upstream provider/publisher/transcoder modules")
	}

	hostsPath := resolveHostsPath(*hostsFile, os.Getenv("ORIGINMESH_HOSTS_FILE"))
	if hostsPath != "" {
		hosts, err := config.LoadHostConfigsFile(hostsPath)
		if err != nil {
			logger.Error("failed to load virtual host configuration", "path", hostsPath, "error", err)
			os.Exit(1)
		}
		if err := orch.ApplyOriginMap(context.Background(), hosts); err != nil {
			logger.Error("failed to apply virtual host configuration", "path", hostsPath, "error", err)
			os.Exit(1)
		}
		logger.Info("virtual host configuration applied", "path", hostsPath, "count", len(hosts))
	} else {
		logger.Warn("no virtual host configuration provided, starting with an empty tree")
	}

	recorder := metrics.Default()
	prom := metrics.NewOrchestratorMetrics()
	orch.SetMetrics(prom)

	chatInterceptor := chatapp.NewInterceptor(logging.WithComponent(logger, "chat"))

	rateCfg := server.RateLimitConfig{
		GlobalRPS:   resolveFloat(*globalRPS, "ORIGINMESH_RATE_GLOBAL_RPS"),
		GlobalBurst: resolveInt(*globalBurst, "ORIGINMESH_RATE_GLOBAL_BURST"),
		AdminLimit:  resolveInt(*adminLimit, "ORIGINMESH_RATE_ADMIN_LIMIT"),
		AdminWindow: resolveDuration(*adminWindow, "ORIGINMESH_RATE_ADMIN_WINDOW", time.Minute),
	}

	corsCfg := server.CORSConfig{
		AdminOrigins:  splitAndTrim(firstNonEmpty(*adminOrigins, os.Getenv("ORIGINMESH_ADMIN_ORIGINS"))),
		ViewerOrigins: splitAndTrim(firstNonEmpty(*viewerOrigins, os.Getenv("ORIGINMESH_VIEWER_ORIGINS"))),
	}

	tlsCfg := server.TLSConfig{
		CertFile: tlsCertPath,
		KeyFile:  tlsKeyPath,
	}

	srv, err := server.New(orch, chatInterceptor, server.Config{
		Addr:        listenAddr,
		TLS:         tlsCfg,
		RateLimit:   rateCfg,
		CORS:        corsCfg,
		Logger:      logger,
		AuditLogger: auditLogger,
		Metrics:     recorder,
		Prometheus:  prom,
	})
	if err != nil {
		logger.Error("failed to initialise server", "error", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger.Info("originmesh listening", "addr", listenAddr, "mode", serverMode)
	if tlsCfg.CertFile != "" && tlsCfg.KeyFile != "" {
		logger.Info("TLS enabled", "cert_file", tlsCfg.CertFile)
	}
	logger.Info("metrics endpoint available", "path", "/metrics", "prometheus_path", "/metrics/prometheus")

	if err := srv.Run(ctx, nil); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

func resolveListenAddr(flagValue, mode, envValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if env := strings.TrimSpace(envValue); env != "" {
		return env
	}
	return defaultListenForMode(mode)
}

func modeValue(flagMode, envMode string) string {
	mode := strings.ToLower(strings.TrimSpace(flagMode))
	if mode == "" {
		mode = strings.ToLower(strings.TrimSpace(envMode))
	}
	if mode == "" {
		mode = "development"
	}
	return mode
}

func defaultListenForMode(mode string) string {
	if mode == "production" {
		return ":80"
	}
	return ":8080"
}

func resolveHostsPath(flagValue, envValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if env := strings.TrimSpace(envValue); env != "" {
		return env
	}
	if _, err := os.Stat("hosts.yaml"); err == nil {
		return "hosts.yaml"
	}
	return ""
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed != "" {
			return trimmed
		}
	}
	return ""
}

func splitAndTrim(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func resolveFloat(flagValue float64, envKey string) float64 {
	if flagValue > 0 {
		return flagValue
	}
	if env := os.Getenv(envKey); env != "" {
		if value, err := strconv.ParseFloat(strings.TrimSpace(env), 64); err == nil {
			return value
		}
	}
	return 0
}

func resolveInt(flagValue int, envKey string) int {
	if flagValue > 0 {
		return flagValue
	}
	if env := os.Getenv(envKey); env != "" {
		if value, err := strconv.Atoi(strings.TrimSpace(env)); err == nil {
			return value
		}
	}
	return 0
}

func resolveDuration(flagValue time.Duration, envKey string, fallback time.Duration) time.Duration {
	if flagValue > 0 {
		return flagValue
	}
	if env := os.Getenv(envKey); env != "" {
		if value, err := time.ParseDuration(env); err == nil {
			return value
		}
	}
	if fallback > 0 {
		return fallback
	}
	return 0
}
