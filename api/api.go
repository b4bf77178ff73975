// Package api SNSM Backend API
//
//	@title			SNSM Backend API
//	@version		1.0
//	@description	Threat scoring, anomaly detection and firewall orchestration for SNSM sensor agents
//
// @license.name	MIT
// @license.url	https://opensource.org/licenses/MIT
//
// @host		localhost:8080
// @BasePath	/
package api

import (
	"context"
	"net/http"
	"time"

	"snsm/anomaly"
	"snsm/blocklist"
	"snsm/config"
	"snsm/core"
	"snsm/scoring"
	"snsm/storage"

	"github.com/gorilla/mux"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// rateLimiterTTL is how long an idle client keeps its limiter
const rateLimiterTTL = time.Hour

// maxTrackedClients bounds the rate limiter table
const maxTrackedClients = 10000

// Dependencies collects everything the API server needs. Storage fields
// use the narrow storage interfaces so handler tests can swap in the
// in-memory mocks.
type Dependencies struct {
	AlertStorage       storage.AlertStorageInterface
	FlowStorage        storage.FlowStorageInterface
	AgentStorage       storage.AgentStorageInterface
	ThreatScoreStorage storage.ThreatScoreStorageInterface
	IncidentStorage    storage.IncidentStorageInterface
	Aggregator         *scoring.Aggregator
	Detector           *anomaly.Detector
	Trigger            *scoring.Trigger
	Blocklist          *blocklist.Manager
	Cache              *core.RedisCache
}

// API holds the API server
type API struct {
	router       *mux.Router
	server       *http.Server
	deps         Dependencies
	config       *config.Config
	logger       *zap.SugaredLogger
	rateLimiters *expirable.LRU[string, *rate.Limiter]
}

// NewAPI creates a new API server
func NewAPI(deps Dependencies, config *config.Config, logger *zap.SugaredLogger) *API {
	api := &API{
		router: mux.NewRouter(),
		deps:   deps,
		config: config,
		logger: logger,
		rateLimiters: expirable.NewLRU[string, *rate.Limiter](
			maxTrackedClients, nil, rateLimiterTTL),
	}
	api.setupRoutes()
	return api
}

// setupRoutes sets up the API routes
func (a *API) setupRoutes() {
	a.router.Use(a.recoveryMiddleware)
	a.router.Use(a.corsMiddleware)
	a.router.Use(a.rateLimitMiddleware)

	// agent lifecycle
	a.router.HandleFunc("/api/agents/register", a.registerAgent).Methods("POST")
	a.router.HandleFunc("/api/agents/heartbeat", a.agentHeartbeat).Methods("POST")
	a.router.HandleFunc("/api/agents", a.getAgents).Methods("GET")
	a.router.HandleFunc("/api/agents/{agent_id}/blocklist", a.getAgentBlocklist).Methods("GET")

	// event ingestion
	a.router.HandleFunc("/api/ingest/suricata", a.ingestSuricata).Methods("POST")
	a.router.HandleFunc("/api/ingest/zeek", a.ingestZeek).Methods("POST")
	a.router.HandleFunc("/api/ingest/flows", a.ingestFlows).Methods("POST")
	a.router.HandleFunc("/api/ingest/metrics", a.ingestMetrics).Methods("POST")

	// firewall orchestration
	a.router.HandleFunc("/api/firewall/block", a.blockIP).Methods("POST")
	a.router.HandleFunc("/api/firewall/unblock", a.unblockIP).Methods("POST")
	a.router.HandleFunc("/api/firewall/blocks", a.getBlocks).Methods("GET")

	// dashboard queries
	a.router.HandleFunc("/api/threat-scores", a.getTopThreatScores).Methods("GET")
	a.router.HandleFunc("/api/threat-scores/{ip}", a.getThreatScore).Methods("GET")
	a.router.HandleFunc("/api/alerts", a.getAlerts).Methods("GET")
	a.router.HandleFunc("/api/flows", a.getFlows).Methods("GET")
	a.router.HandleFunc("/api/statistics", a.getStatistics).Methods("GET")
	a.router.HandleFunc("/api/incidents", a.getIncidents).Methods("GET")
	a.router.HandleFunc("/api/incidents", a.createIncident).Methods("POST")
	a.router.HandleFunc("/api/incidents/{id}", a.getIncident).Methods("GET")
	a.router.HandleFunc("/api/incidents/{id}", a.updateIncident).Methods("PUT")

	a.router.HandleFunc("/health", a.healthCheck).Methods("GET")
	a.router.Handle("/metrics", promhttp.Handler())

	// Swagger UI
	a.router.PathPrefix("/swagger/").Handler(httpSwagger.WrapHandler)
}

// Router exposes the configured router for tests
func (a *API) Router() http.Handler {
	return a.router
}

// Start starts the API server
func (a *API) Start(addr string) error {
	a.server = &http.Server{
		Addr:    addr,
		Handler: a.router,
	}
	return a.server.ListenAndServe()
}

// Stop stops the API server
func (a *API) Stop(ctx context.Context) error {
	if a.server != nil {
		return a.server.Shutdown(ctx)
	}
	return nil
}
