package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/daemonunit42/modguard/internal/classifier"
	"github.com/daemonunit42/modguard/internal/config"
	"github.com/daemonunit42/modguard/internal/ledger"
	"github.com/daemonunit42/modguard/internal/messaging"
	"github.com/daemonunit42/modguard/internal/metrics"
	"github.com/daemonunit42/modguard/internal/moderation"
	"github.com/daemonunit42/modguard/internal/ratelimit"
)

// timedClassifier records classifier round-trip latency.
type timedClassifier struct {
	inner moderation.Classifier
}

func (t timedClassifier) Classify(ctx context.Context, message string) (string, error) {
	start := time.Now()
	reply, err := t.inner.Classify(ctx, message)
	metrics.ClassifierLatency.Observe(time.Since(start).Seconds())
	return reply, err
}

// errBudget is returned by budgetExhausted so over-limit checks resolve
// fail-open through the pipeline's transport-error path.
var errBudget = errors.New("classifier budget exhausted")

// budgetExhausted stands in for the real classifier when a user has used up
// their AI budget for the window.
type budgetExhausted struct{}

func (budgetExhausted) Classify(context.Context, string) (string, error) {
	return "", errBudget
}

func main() {
	cfg := config.Load()

	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			logrus.Fatalf("open log file: %v", err)
		}
		defer f.Close()
		logrus.SetOutput(io.MultiWriter(os.Stdout, f))
	}

	logrus.Info("Starting modguard moderation service...")

	if cfg.APIKey == "" {
		logrus.Fatal("OPENROUTER_API_KEY not set")
	}

	// Redis backs the rate limiter and, optionally, the ledger.
	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		cancel()
		logrus.Fatalf("failed to connect to Redis: %v", err)
	}
	cancel()

	repo, cleanup, err := openRepository(cfg, rdb)
	if err != nil {
		logrus.Fatalf("ledger backend: %v", err)
	}
	defer cleanup()

	ctx := context.Background()
	warnings, err := ledger.New(ctx, repo)
	if err != nil {
		logrus.Fatalf("ledger: %v", err)
	}
	// The gauge must survive restarts: seed it from the loaded snapshot
	// before any in-process transitions move it.
	metrics.BannedUsers.Set(float64(warnings.BannedCount()))

	limiter := ratelimit.NewLimiter(rdb)

	client := classifier.NewClient(classifier.Config{
		Endpoint: cfg.Endpoint,
		APIKey:   cfg.APIKey,
		Model:    cfg.Model,
		Timeout:  cfg.ClassifierTimeout,
	})
	filter := moderation.NewFilter()
	pipeline := moderation.NewPipeline(filter, timedClassifier{inner: client})
	localOnly := moderation.NewPipeline(filter, budgetExhausted{})

	// NATS setup.
	natsConfig := messaging.DefaultNATSConfig()
	natsConfig.URL = cfg.NATSURL
	natsConfig.Name = "modguard-moderatord"

	natsClient, err := messaging.NewNATSClient(natsConfig)
	if err != nil {
		logrus.Fatalf("failed to connect to NATS: %v", err)
	}

	err = natsClient.SubscribeModerationCheck(func(data []byte) {
		var req moderation.CheckRequest
		if err := json.Unmarshal(data, &req); err != nil {
			logrus.Warnf("[moderatord] failed to unmarshal request: %v", err)
			return
		}

		ctx := context.Background()

		// Flood guard: drop the request entirely; the requester fails open.
		if allowed, _ := limiter.Allow(ctx, req.Username, ratelimit.RuleCheck); !allowed {
			logrus.Warnf("[moderatord] rate limited user=%s, dropping check", req.Username)
			return
		}

		p := pipeline
		if allowed, _ := limiter.Allow(ctx, req.Username, ratelimit.RuleClassify); !allowed {
			p = localOnly
			logrus.Infof("[moderatord] classifier budget exhausted user=%s, local filter only", req.Username)
		} else if remaining, err := limiter.Remaining(ctx, req.Username, ratelimit.RuleClassify); err == nil && remaining <= 2 {
			logrus.Infof("[moderatord] classifier budget low user=%s remaining=%d", req.Username, remaining)
		}

		verdict := p.Evaluate(ctx, req.Text)
		metrics.EvaluationsTotal.WithLabelValues(verdict.Source).Inc()

		count := warnings.GetWarnings(req.Username)
		if verdict.Bad {
			metrics.ViolationsTotal.WithLabelValues(verdict.Severity).Inc()
			previous := count
			count = warnings.RecordViolation(ctx, req.Username, req.Text, verdict)
			metrics.WarningsIssued.Inc()
			if count >= ledger.MaxWarnings && previous < ledger.MaxWarnings {
				metrics.BannedUsers.Inc()
			}
			logrus.Infof("[moderatord] FLAGGED user=%s source=%s severity=%s warnings=%d",
				req.Username, verdict.Source, verdict.Severity, count)
		} else {
			logrus.Infof("[moderatord] CLEAN user=%s source=%s", req.Username, verdict.Source)
		}

		result := moderation.CheckResult{
			Username: req.Username,
			Bad:      verdict.Bad,
			Reason:   verdict.Reason,
			Severity: verdict.Severity,
			Category: verdict.Category,
			Source:   verdict.Source,
			Warnings: count,
		}
		respData, err := json.Marshal(result)
		if err != nil {
			logrus.Warnf("[moderatord] failed to marshal result: %v", err)
			return
		}
		if err := natsClient.PublishModerationResult(req.Username, respData); err != nil {
			logrus.Warnf("[moderatord] failed to publish result: %v", err)
		}
	})
	if err != nil {
		logrus.Fatalf("failed to subscribe to moderation checks: %v", err)
	}

	err = natsClient.SubscribeAppeals(func(data []byte) {
		var req moderation.AppealRequest
		if err := json.Unmarshal(data, &req); err != nil {
			logrus.Warnf("[moderatord] failed to unmarshal appeal: %v", err)
			return
		}

		ctx := context.Background()
		previous := warnings.GetWarnings(req.Username)
		granted := warnings.Appeal(ctx, req.Username)
		if granted {
			metrics.AppealsTotal.WithLabelValues("granted").Inc()
			if previous >= ledger.MaxWarnings {
				metrics.BannedUsers.Dec()
			}
			logrus.Infof("[moderatord] appeal granted user=%s", req.Username)
		} else {
			metrics.AppealsTotal.WithLabelValues("denied").Inc()
			logrus.Infof("[moderatord] appeal denied user=%s", req.Username)
		}

		result := moderation.AppealResult{
			Username: req.Username,
			Granted:  granted,
			Warnings: warnings.GetWarnings(req.Username),
		}
		respData, err := json.Marshal(result)
		if err != nil {
			logrus.Warnf("[moderatord] failed to marshal appeal result: %v", err)
			return
		}
		if err := natsClient.PublishAppealResult(req.Username, respData); err != nil {
			logrus.Warnf("[moderatord] failed to publish appeal result: %v", err)
		}
	})
	if err != nil {
		logrus.Fatalf("failed to subscribe to appeals: %v", err)
	}

	// Prometheus metrics endpoint.
	metricsServer := &http.Server{Addr: cfg.MetricsAddr, Handler: metrics.Handler()}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Errorf("[metrics] server: %v", err)
		}
	}()

	logrus.Info("modguard moderation service running")
	logrus.Infof("  nats_url:     %s", cfg.NATSURL)
	logrus.Infof("  redis_addr:   %s", cfg.RedisAddr)
	logrus.Infof("  backend:      %s", cfg.LedgerBackend)
	logrus.Infof("  metrics_addr: %s", cfg.MetricsAddr)
	logrus.Infof("  model:        %s", cfg.Model)

	// Graceful shutdown.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logrus.Infof("received signal %v, shutting down...", sig)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	metricsServer.Shutdown(shutdownCtx)
	natsClient.Close()
	rdb.Close()
}

// openRepository builds the configured ledger backend. The returned cleanup
// closes backend resources the caller doesn't otherwise own.
func openRepository(cfg config.Config, rdb *redis.Client) (ledger.Repository, func(), error) {
	switch cfg.LedgerBackend {
	case config.BackendRedis:
		return ledger.NewRedisRepository(rdb, ""), func() {}, nil
	case config.BackendPostgres:
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		repo, err := ledger.OpenPostgres(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		if err := repo.Migrate(); err != nil {
			repo.Close()
			return nil, nil, err
		}
		return repo, func() { repo.Close() }, nil
	default:
		return ledger.NewFileRepository(cfg.LedgerFile), func() {}, nil
	}
}
