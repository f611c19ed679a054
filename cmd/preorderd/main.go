// Command preorderd runs the pre-order service HTTP server.
package main

import (
	"context"
	"expvar"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"preordercore/internal/adapters/export"
	"preordercore/internal/adapters/httpapi"
	"preordercore/internal/blob"
	"preordercore/internal/core"
)

type serverConfig struct {
	Addr            string        `envconfig:"ADDR" default:":8080"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
	LogLevel        string        `envconfig:"LOG_LEVEL" default:"info"`
	BlobNamespace   string        `envconfig:"BLOB_NAMESPACE" default:"shared"`
}

// logrusLogger adapts logrus to the service Logger interface.
type logrusLogger struct {
	entry *logrus.Entry
}

func (l logrusLogger) Debug(msg string, keyvals ...any) { l.withFields(keyvals).Debug(msg) }
func (l logrusLogger) Info(msg string, keyvals ...any)  { l.withFields(keyvals).Info(msg) }
func (l logrusLogger) Warn(msg string, keyvals ...any)  { l.withFields(keyvals).Warn(msg) }
func (l logrusLogger) Error(msg string, keyvals ...any) { l.withFields(keyvals).Error(msg) }

func (l logrusLogger) withFields(keyvals []any) *logrus.Entry {
	fields := logrus.Fields{}
	for i := 0; i+1 < len(keyvals); i += 2 {
		key, ok := keyvals[i].(string)
		if !ok {
			continue
		}
		fields[key] = keyvals[i+1]
	}
	return l.entry.WithFields(fields)
}

func main() {
	var cfg serverConfig
	if err := envconfig.Process("preorderd", &cfg); err != nil {
		logrus.Fatalf("parse config: %v", err)
	}

	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(level)
	}
	entry := logrus.NewEntry(log)

	engine := core.NewDefaultRulesEngine()
	store, err := core.OpenPersistentStore(engine)
	if err != nil {
		log.Fatalf("open store: %v", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics, err := core.NewPrometheusMetricsRecorder(registry)
	if err != nil {
		log.Fatalf("register metrics: %v", err)
	}

	service := core.NewService(store,
		core.WithLogger(logrusLogger{entry: entry}),
		core.WithMetricsRecorder(metrics),
		core.WithTracer(core.NewJSONTracer(os.Stderr)),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	blobStore, err := blob.Open(ctx)
	if err != nil {
		log.Fatalf("open blob store: %v", err)
	}
	worker := export.NewWorker(service, blob.NewNamespace(blobStore, cfg.BlobNamespace), nil)
	worker.Start()

	mux := http.NewServeMux()
	mux.Handle("/api/v1/", httpapi.NewHandler(service, worker))
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	mux.Handle("/debug/vars", expvar.Handler())

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.WithField("addr", cfg.Addr).Info("server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("serve: %v", err)
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Errorf("server shutdown: %v", err)
	}
	if err := worker.Stop(shutdownCtx); err != nil {
		log.Errorf("worker shutdown: %v", err)
	}
}
