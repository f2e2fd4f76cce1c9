package httpadapter

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/kirillkom/gapdrill/internal/config"
	"github.com/kirillkom/gapdrill/internal/core/ports"
	"github.com/kirillkom/gapdrill/internal/observability/metrics"
)

const maxRequestBodyBytes = 1 << 20

// HealthChecker reports whether the record store is reachable.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

type Dependencies struct {
	Grants     ports.UploadGrantIssuer
	Confirmer  ports.UploadConfirmer
	Uploads    ports.UploadManager
	Recognizer ports.Recognizer
	Library    ports.ErrorLibrary
	Tokens     ports.TokenVerifier

	Health  HealthChecker
	Metrics *metrics.HTTPServerMetrics
}

type Router struct {
	cfg      config.Config
	deps     Dependencies
	contract *contract
}

func NewRouter(cfg config.Config, deps Dependencies) (*Router, error) {
	if deps.Tokens == nil {
		return nil, fmt.Errorf("token verifier is required")
	}
	c, err := loadContract(context.Background())
	if err != nil {
		return nil, err
	}
	return &Router{cfg: cfg, deps: deps, contract: c}, nil
}

func (rt *Router) Handler() http.Handler {
	root := mux.NewRouter()
	root.NotFoundHandler = http.HandlerFunc(notFound)
	root.MethodNotAllowedHandler = http.HandlerFunc(methodNotAllowed)

	root.HandleFunc("/healthz", rt.healthz).Methods(http.MethodGet)
	root.HandleFunc("/openapi.yaml", serveOpenAPI).Methods(http.MethodGet)
	if rt.deps.Metrics != nil {
		root.Handle("/metrics", rt.deps.Metrics.Handler()).Methods(http.MethodGet)
	}

	onReject := func(reason string) {
		if rt.deps.Metrics != nil {
			rt.deps.Metrics.RecordRejected(rt.serviceName(), reason)
		}
	}
	rates := newRateGate(rt.cfg.APIRateLimitRPS, rt.cfg.APIRateLimitBurst, onReject)
	inFlight := newInFlightGate(rt.cfg.APIBackpressureMaxInFlight, rt.cfg.APIBackpressureWait, onReject)

	api := root.PathPrefix("/v1").Subrouter()
	// Subrouters do not inherit the root's fallback handlers.
	api.NotFoundHandler = http.HandlerFunc(notFound)
	api.MethodNotAllowedHandler = http.HandlerFunc(methodNotAllowed)
	api.Use(
		rates.middleware,
		inFlight.middleware,
		authMiddleware(rt.deps.Tokens),
		rt.contract.middleware,
	)

	api.HandleFunc("/upload-grant", rt.issueUploadGrant).Methods(http.MethodPost)

	api.HandleFunc("/uploads", rt.confirmUpload).Methods(http.MethodPost)
	api.HandleFunc("/uploads", rt.listUploads).Methods(http.MethodGet)
	api.HandleFunc("/uploads/{id}", rt.getUpload).Methods(http.MethodGet)
	api.HandleFunc("/uploads/{id}", rt.updateUpload).Methods(http.MethodPut)
	api.HandleFunc("/uploads/{id}", rt.deleteUpload).Methods(http.MethodDelete)
	api.HandleFunc("/uploads/{id}/error-library", rt.listUploadLibraryEntries).Methods(http.MethodGet)

	api.HandleFunc("/recognize", rt.recognize).Methods(http.MethodPost)
	api.HandleFunc("/recognition-results", rt.listRecognitionResults).Methods(http.MethodGet)

	api.HandleFunc("/error-library", rt.createLibraryEntry).Methods(http.MethodPost)
	api.HandleFunc("/error-library", rt.listLibraryEntries).Methods(http.MethodGet)
	api.HandleFunc("/error-library/export", rt.exportLibrary).Methods(http.MethodGet)
	api.HandleFunc("/error-library/{id}", rt.getLibraryEntry).Methods(http.MethodGet)
	api.HandleFunc("/error-library/{id}", rt.updateLibraryEntry).Methods(http.MethodPut)
	api.HandleFunc("/error-library/{id}", rt.deleteLibraryEntry).Methods(http.MethodDelete)

	var handler http.Handler = root
	if rt.deps.Metrics != nil {
		handler = rt.deps.Metrics.Middleware(rt.serviceName(), handler)
	}
	handler = recoverMiddleware(handler)
	handler = accessLogMiddleware(handler)
	handler = requestIDMiddleware(handler)
	return otelhttp.NewHandler(handler, rt.serviceName())
}

func (rt *Router) serviceName() string {
	if rt.cfg.ServiceName != "" {
		return rt.cfg.ServiceName
	}
	return "gapdrill-api"
}

func (rt *Router) healthz(w http.ResponseWriter, r *http.Request) {
	if rt.deps.Health != nil {
		if err := rt.deps.Health.Ping(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, errorResponse{
				Error: "record store is unreachable",
				Code:  "TEMPORARILY_UNAVAILABLE",
			})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func notFound(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusNotFound, errorResponse{Error: "route not found", Code: "NOT_FOUND"})
}

func methodNotAllowed(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed", Code: "METHOD_NOT_ALLOWED"})
}

func pathID(r *http.Request) string {
	return mux.Vars(r)["id"]
}
