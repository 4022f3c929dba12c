// Package app wires the engine runtime: storage, oracle, schedulers, and the
// serving surfaces.
package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/crucible-sim/crucible/internal/engine/domain"
	"github.com/crucible-sim/crucible/internal/engine/escalation"
	"github.com/crucible-sim/crucible/internal/engine/generation"
	"github.com/crucible-sim/crucible/internal/engine/impact"
	"github.com/crucible-sim/crucible/internal/engine/publish"
	"github.com/crucible-sim/crucible/internal/engine/scheduler"
	"github.com/crucible-sim/crucible/internal/notify"
	"github.com/crucible-sim/crucible/internal/oracle"
	"github.com/crucible-sim/crucible/internal/platform/metrics"
	"github.com/crucible-sim/crucible/internal/platform/timeouts"
	"github.com/crucible-sim/crucible/internal/storage"
	enginesqlite "github.com/crucible-sim/crucible/internal/storage/sqlite"
)

// RuntimeConfig controls engine startup and scheduler cadence.
type RuntimeConfig struct {
	HTTPPort int
	GRPCPort int
	DBPath   string

	OracleAPIKey      string
	OracleBaseURL     string
	OracleModel       string
	OracleTemperature float32

	TimedEnabled          bool
	TimedInterval         time.Duration
	ReactionInterval      time.Duration
	DecisionWindow        time.Duration
	MaxInjectsPerDecision int
}

const (
	defaultHTTPPort = 8090
	defaultGRPCPort = 8091
	defaultDBPath   = "data/engine.db"
)

// Run starts the engine runtime and blocks until ctx is cancelled.
func Run(ctx context.Context, cfg RuntimeConfig) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if cfg.HTTPPort <= 0 {
		cfg.HTTPPort = defaultHTTPPort
	}
	if cfg.GRPCPort <= 0 {
		cfg.GRPCPort = defaultGRPCPort
	}
	if strings.TrimSpace(cfg.DBPath) == "" {
		cfg.DBPath = defaultDBPath
	}

	if dir := filepath.Dir(cfg.DBPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create engine storage dir: %w", err)
		}
	}

	store, err := enginesqlite.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open engine sqlite store: %w", err)
	}
	defer func() {
		if closeErr := store.Close(); closeErr != nil {
			log.Printf("close engine sqlite store: %v", closeErr)
		}
	}()

	oracleClient, err := oracle.New(oracle.Config{
		APIKey:      cfg.OracleAPIKey,
		BaseURL:     cfg.OracleBaseURL,
		Model:       cfg.OracleModel,
		Temperature: cfg.OracleTemperature,
	})
	if err != nil {
		return fmt.Errorf("create oracle client: %w", err)
	}

	hub := notify.NewHub()
	publisher := publish.NewPublisher(store, hub)
	dispatcher := scheduler.NewDispatcher(store, oracleClient, publisher, cfg.MaxInjectsPerDecision)
	reaction := scheduler.NewReactionScheduler(
		store,
		escalation.NewModeler(oracleClient),
		impact.NewComputer(oracleClient),
		generation.NewGenerator(oracleClient),
		publisher,
		cfg.ReactionInterval,
		cfg.DecisionWindow,
	)

	reactionCancel, reactionDone := reaction.Start()
	defer func() {
		reactionCancel()
		<-reactionDone
	}()

	if cfg.TimedEnabled {
		timed := scheduler.NewTimedScheduler(store, oracleClient, publisher, cfg.TimedInterval, cfg.DecisionWindow)
		timedCancel, timedDone := timed.Start()
		defer func() {
			timedCancel()
			<-timedDone
		}()
	} else {
		log.Printf("timed scheduler disabled")
	}

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           NewHandler(hub, dispatcher, store, store),
		ReadHeaderTimeout: timeouts.ReadHeader,
	}
	httpErr := make(chan error, 1)
	go func() {
		log.Printf("engine http server listening at %s", httpServer.Addr)
		httpErr <- httpServer.ListenAndServe()
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeouts.Shutdown)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("shutdown http server: %v", err)
		}
		<-httpErr
	}()

	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.GRPCPort))
	if err != nil {
		return fmt.Errorf("listen on engine grpc port %d: %w", cfg.GRPCPort, err)
	}
	defer listener.Close()

	grpcServer := grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus("engine.runtime", grpc_health_v1.HealthCheckResponse_SERVING)

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- grpcServer.Serve(listener)
	}()
	defer func() {
		healthServer.Shutdown()
		grpcServer.GracefulStop()
		<-serveErr
	}()

	log.Printf("engine grpc server listening at %v", listener.Addr())
	<-ctx.Done()
	return nil
}

// Dispatcher handles one executed decision.
type Dispatcher interface {
	DispatchDecision(ctx context.Context, decisionID string) (int, error)
}

// impactResponse carries the latest impact snapshot plus the series length,
// so facilitators can confirm the per-cycle time series has no gaps.
type impactResponse struct {
	Snapshot domain.ImpactMatrixSnapshot `json:"snapshot"`
	Series   int                         `json:"series"`
}

// NewHandler builds the engine's HTTP surface: the observer WebSocket, the
// decision-executed hook, the snapshot read endpoints, and Prometheus
// metrics.
func NewHandler(hub *notify.Hub, dispatcher Dispatcher, store storage.SessionStore, snapshots storage.SnapshotStore) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /ws/sessions/{id}", func(w http.ResponseWriter, r *http.Request) {
		sessionID := r.PathValue("id")
		if store != nil {
			if _, err := store.GetSession(r.Context(), sessionID); errors.Is(err, storage.ErrNotFound) {
				http.Error(w, "session not found", http.StatusNotFound)
				return
			}
		}
		hub.ServeSession(w, r, sessionID)
	})

	mux.HandleFunc("POST /internal/decisions/{id}/executed", func(w http.ResponseWriter, r *http.Request) {
		decisionID := r.PathValue("id")
		released, err := dispatcher.DispatchDecision(r.Context(), decisionID)
		if errors.Is(err, storage.ErrNotFound) {
			http.Error(w, "decision not found", http.StatusNotFound)
			return
		}
		if errors.Is(err, domain.ErrDecisionNotExecuted) {
			http.Error(w, "decision is not executed", http.StatusConflict)
			return
		}
		if err != nil {
			log.Printf("dispatch decision %s: %v", decisionID, err)
			http.Error(w, "dispatch failed", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(map[string]int{"released": released}); err != nil {
			log.Printf("encode dispatch response: %v", err)
		}
	})

	mux.HandleFunc("GET /sessions/{id}/escalation", func(w http.ResponseWriter, r *http.Request) {
		sessionID := r.PathValue("id")
		snapshot, found, err := snapshots.LatestEscalationSnapshot(r.Context(), sessionID)
		if err != nil {
			log.Printf("latest escalation snapshot for %s: %v", sessionID, err)
			http.Error(w, "snapshot lookup failed", http.StatusInternalServerError)
			return
		}
		if !found {
			http.Error(w, "no escalation snapshot yet", http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(snapshot); err != nil {
			log.Printf("encode escalation snapshot: %v", err)
		}
	})

	mux.HandleFunc("GET /sessions/{id}/impact", func(w http.ResponseWriter, r *http.Request) {
		sessionID := r.PathValue("id")
		snapshot, found, err := snapshots.LatestImpactSnapshot(r.Context(), sessionID)
		if err != nil {
			log.Printf("latest impact snapshot for %s: %v", sessionID, err)
			http.Error(w, "snapshot lookup failed", http.StatusInternalServerError)
			return
		}
		if !found {
			http.Error(w, "no impact snapshot yet", http.StatusNotFound)
			return
		}
		series, err := snapshots.CountImpactSnapshots(r.Context(), sessionID)
		if err != nil {
			log.Printf("count impact snapshots for %s: %v", sessionID, err)
			http.Error(w, "snapshot lookup failed", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(impactResponse{Snapshot: snapshot, Series: series}); err != nil {
			log.Printf("encode impact snapshot: %v", err)
		}
	})

	mux.Handle("GET /metrics", metrics.Handler())

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	return mux
}
