// Package planserver exposes a QueryPlanner as a thin HTTP service:
// POST a GraphQL operation, get back its query plan as JSON. It does
// not execute the plan against any subgraph — running a plan is out of
// this repo's scope, left to whatever gateway embeds planctl.
package planserver

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/n9te9/federation-query-planner/internal/telemetry"
	"github.com/n9te9/federation-query-planner/planner"
	"github.com/n9te9/federation-query-planner/registry"
)

const serverVersion = "v0.1.0"

// Config is the YAML file planctl serve reads at startup.
type Config struct {
	ServiceName     string        `yaml:"service_name"`
	Port            int           `yaml:"port"`
	TimeoutDuration string        `yaml:"timeout_duration" default:"5s"`
	Manifest        string        `yaml:"manifest"`
	Opentelemetry   OTelSetting   `yaml:"opentelemetry"`
	Planning        PlanningOpts  `yaml:"planning"`
}

// OTelSetting toggles OTLP trace export, mirroring the teacher's
// gateway.OpentelemetrySetting shape.
type OTelSetting struct {
	Tracing TracingSetting `yaml:"tracing"`
}

// TracingSetting enables the OTLP exporter.
type TracingSetting struct {
	Enable bool `yaml:"enable" default:"false"`
}

// PlanningOpts controls query-planning behavior, exposed as server
// config rather than per-request, since conformance across a fleet
// matters more than per-caller overrides.
type PlanningOpts struct {
	AutoFragmentization bool `yaml:"auto_fragmentization"`
}

// LoadConfig reads and parses a planctl serve config file.
func LoadConfig(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return &cfg, nil
}

type server struct {
	planner  *planner.QueryPlanner
	opts     PlanningOpts
	registry *registry.Registry
}

type planRequest struct {
	Query         string `json:"query"`
	OperationName string `json:"operationName"`
}

func (s *server) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	requestID := req.Header.Get("X-Request-Id")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	logger := slog.With("request_id", requestID)

	switch {
	case req.URL.Path == "/plan" && req.Method == http.MethodPost:
		s.handlePlan(w, req, logger)
	case req.URL.Path == "/schema/registration" && req.Method == http.MethodPost:
		s.registry.RegisterGateway(w, req)
	default:
		http.NotFound(w, req)
	}
}

func (s *server) handlePlan(w http.ResponseWriter, req *http.Request, logger *slog.Logger) {
	var body planRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		http.Error(w, "failed to decode request body", http.StatusBadRequest)
		return
	}

	plan, err := s.planner.Plan(body.Query, planner.QueryPlanningOptions{
		AutoFragmentization: s.opts.AutoFragmentization,
		OperationName:       body.OperationName,
	})
	if err != nil {
		logger.Error("planning failed", "error", err)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(plan); err != nil {
		logger.Error("failed to encode plan", "error", err)
	}
}

// Run loads cfg's manifest, builds a QueryPlanner, and serves it over
// HTTP until the process receives a termination signal.
func Run(cfg *Config) error {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	subgraphs, err := registry.LoadSubGraphs(cfg.Manifest)
	if err != nil {
		return fmt.Errorf("loading manifest: %w", err)
	}

	sdls, err := registry.LoadSDLs(cfg.Manifest)
	if err != nil {
		return fmt.Errorf("loading manifest: %w", err)
	}

	p, err := planner.NewQueryPlanner(sdls)
	if err != nil {
		return fmt.Errorf("building planner: %w", err)
	}

	reg := registry.NewRegistry()
	reg.Seed(subgraphs)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, os.Kill, syscall.SIGTERM)
	defer cancel()
	reg.Start(ctx)

	s := &server{planner: p, opts: cfg.Planning, registry: reg}

	var handler http.Handler = s
	if cfg.Opentelemetry.Tracing.Enable {
		handler = otelhttp.NewHandler(s, cfg.ServiceName)

		shutdown, err := telemetry.InitTracer(ctx, cfg.ServiceName, serverVersion)
		if err != nil {
			return fmt.Errorf("initializing tracer: %w", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(shutdownCtx); err != nil {
				logger.Error("failed to shut down tracer", "error", err)
			}
		}()
	}

	timeout, err := time.ParseDuration(cfg.TimeoutDuration)
	if err != nil {
		timeout = 5 * time.Second
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: handler,
	}

	go func() {
		logger.Info("starting planctl server", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed", "error", err)
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	logger.Info("shutting down planctl server")
	return srv.Shutdown(shutdownCtx)
}
