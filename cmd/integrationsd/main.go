// Command integrationsd serves the Zoom webhook endpoint of the integration
// runtime and exposes Prometheus metrics.
//
// Configuration is read from a YAML file; ${ENV} references are expanded so
// secrets can stay in the environment.
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp"

	"github.com/goliatone/go-integrations/adapters/logruslog"
	"github.com/goliatone/go-integrations/adapters/prommetrics"
	"github.com/goliatone/go-integrations/adapters/yamlconfig"
	"github.com/goliatone/go-integrations/bootstrap"
	"github.com/goliatone/go-integrations/webhooks"
)

func main() {
	var (
		cfgPath       string
		section       string
		listen        string
		metricsListen string
		logLevel      string
	)
	flag.StringVar(&cfgPath, "config", "config.yaml", "Path to YAML configuration")
	flag.StringVar(&section, "section", "integrations", "Top level YAML key holding the configuration")
	flag.StringVar(&listen, "listen", ":8080", "Webhook listen address")
	flag.StringVar(&metricsListen, "metrics-listen", ":9090", "Prometheus listen address, empty to disable")
	flag.StringVar(&logLevel, "log-level", "info", "Log level")
	flag.Parse()

	provider := logruslog.NewProvider(logruslog.NewJSON(logruslog.WithLevel(logLevel)))
	log := provider.GetLogger("integrationsd")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := yamlconfig.Load(ctx, cfgPath, section)
	if err != nil {
		log.Error("config load failed", "path", cfgPath, "error", err)
		os.Exit(1)
	}

	recorder, err := prommetrics.NewRecorder(prometheus.DefaultRegisterer, prommetrics.WithNamespace("integrations"))
	if err != nil {
		log.Error("metrics recorder failed", "error", err)
		os.Exit(1)
	}

	runtime, err := bootstrap.Setup(ctx, cfg,
		bootstrap.WithLoggerProvider(provider),
		bootstrap.WithMetricsRecorder(recorder),
		bootstrap.WithZoomEventHandler(webhooks.EventHandlerFunc(func(_ context.Context, event webhooks.ZoomEvent) error {
			log.Debug("zoom event ignored", "event", event.Event)
			return nil
		})),
	)
	if err != nil {
		log.Error("runtime setup failed", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := runtime.Close(); closeErr != nil {
			log.Warn("runtime close failed", "error", closeErr)
		}
	}()

	var metricsServer *http.Server
	if metricsListen != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsServer = &http.Server{
			Addr:              metricsListen,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			log.Info("metrics server started", "listen", metricsListen)
			if serveErr := metricsServer.ListenAndServe(); serveErr != nil && serveErr != http.ErrServerClosed {
				log.Error("metrics server exited", "error", serveErr)
			}
		}()
	}

	srv := &fasthttp.Server{
		Handler:            routes(runtime.ZoomWebhook),
		ReadTimeout:        5 * time.Second,
		WriteTimeout:       5 * time.Second,
		MaxRequestBodySize: 1 << 20,
	}
	go func() {
		log.Info("serving webhooks", "listen", listen)
		if serveErr := srv.ListenAndServe(listen); serveErr != nil {
			log.Error("webhook server exited", "error", serveErr)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	if err := srv.Shutdown(); err != nil {
		log.Warn("webhook server shutdown failed", "error", err)
	}
	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}
}

func routes(zoom *webhooks.ZoomHandler) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		switch string(ctx.Path()) {
		case "/webhooks/zoom":
			zoom.ServeFastHTTP(ctx)
		case "/healthz":
			ctx.SetStatusCode(fasthttp.StatusOK)
			ctx.SetBodyString("ok")
		default:
			ctx.SetStatusCode(fasthttp.StatusNotFound)
		}
	}
}
