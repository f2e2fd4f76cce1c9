package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"

	httpadapter "github.com/kirillkom/gapdrill/internal/adapters/http"
	"github.com/kirillkom/gapdrill/internal/config"
	"github.com/kirillkom/gapdrill/internal/core/domain"
	"github.com/kirillkom/gapdrill/internal/core/ports"
	"github.com/kirillkom/gapdrill/internal/core/usecase"
	"github.com/kirillkom/gapdrill/internal/infrastructure/export/xlsx"
	"github.com/kirillkom/gapdrill/internal/infrastructure/identity/jwtauth"
	"github.com/kirillkom/gapdrill/internal/infrastructure/objectstore/miniostore"
	"github.com/kirillkom/gapdrill/internal/infrastructure/objectstore/s3store"
	"github.com/kirillkom/gapdrill/internal/infrastructure/recognition/vision"
	"github.com/kirillkom/gapdrill/internal/infrastructure/repository/memory"
	"github.com/kirillkom/gapdrill/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/gapdrill/internal/infrastructure/resilience"
	"github.com/kirillkom/gapdrill/internal/observability/metrics"
)

type App struct {
	Config  config.Config
	Handler http.Handler

	closeFn func()
}

type stores struct {
	uploads ports.UploadStore
	results ports.RecognitionStore
	library ports.LibraryStore
	health  httpadapter.HealthChecker
	db      *sql.DB
}

func New(ctx context.Context, cfg config.Config) (*App, error) {
	locator, err := domain.NewLocator(cfg.ObjectStorePublicDomain)
	if err != nil {
		return nil, fmt.Errorf("init locator: %w", err)
	}
	if !locator.AcceptsHost(cfg.ObjectStorePublicHost) {
		return nil, fmt.Errorf("object store public host %q is outside %q", cfg.ObjectStorePublicHost, locator.PublicDomain())
	}

	httpMetrics := metrics.NewHTTPServerMetrics(cfg.ServiceName)
	workflowMetrics := metrics.NewWorkflowMetrics(cfg.ServiceName, httpMetrics.Registry())

	st, err := openStores(ctx, cfg)
	if err != nil {
		return nil, err
	}
	closeStores := func() {
		if st.db != nil {
			_ = st.db.Close()
		}
	}

	objects, err := openObjectStore(ctx, cfg, locator)
	if err != nil {
		closeStores()
		return nil, err
	}

	verifier, err := jwtauth.NewVerifier(cfg.AuthJWTSecret, cfg.AuthJWTIssuer, cfg.AuthJWTAudience)
	if err != nil {
		closeStores()
		return nil, fmt.Errorf("init token verifier: %w", err)
	}

	policy := resilience.DefaultConfig()
	policy.RetryMaxAttempts = cfg.RecognitionRetryMaxAttempts
	policy.RetryInitialBackoff = cfg.RecognitionRetryInitialBackoff
	policy.RetryMaxBackoff = cfg.RecognitionRetryMaxBackoff
	policy.RetryMultiplier = cfg.RecognitionRetryMultiplier
	policy.BreakerEnabled = cfg.RecognitionBreakerEnabled
	policy.OnRetry = workflowMetrics.RecordRetry

	engine := vision.New(vision.Options{
		BaseURL:        cfg.RecognitionBaseURL,
		APIKey:         cfg.RecognitionAPIKey,
		Model:          cfg.RecognitionModel,
		MaxTokens:      cfg.RecognitionMaxTokens,
		AttemptTimeout: cfg.RecognitionAttemptTimeout,
		Policy:         resilience.NewExecutor(policy),
	})

	grantUC := usecase.NewIssueUploadGrantUseCase(objects, locator, usecase.GrantOptions{
		PublicHost:          cfg.ObjectStorePublicHost,
		PublicBaseURL:       cfg.PublicBaseURL,
		TTL:                 cfg.UploadGrantTTL,
		MaxSizeBytes:        cfg.UploadMaxBytes,
		AllowedContentTypes: cfg.UploadAllowedTypes,
	})
	confirmUC := usecase.NewConfirmUploadUseCase(st.uploads, objects, locator, workflowMetrics, cfg.CompensationTimeout)
	uploadsUC := usecase.NewManageUploadsUseCase(st.uploads, st.results, objects, locator)
	recognizeUC := usecase.NewRecognizeUseCase(st.uploads, st.results, engine, locator, workflowMetrics, cfg.RecognitionTimeout)
	libraryUC := usecase.NewErrorLibraryUseCase(st.library, st.uploads, xlsx.NewExporter())

	router, err := httpadapter.NewRouter(cfg, httpadapter.Dependencies{
		Grants:     grantUC,
		Confirmer:  confirmUC,
		Uploads:    uploadsUC,
		Recognizer: recognizeUC,
		Library:    libraryUC,
		Tokens:     verifier,
		Health:     st.health,
		Metrics:    httpMetrics,
	})
	if err != nil {
		closeStores()
		return nil, fmt.Errorf("init router: %w", err)
	}

	return &App{
		Config:  cfg,
		Handler: router.Handler(),
		closeFn: closeStores,
	}, nil
}

func openStores(ctx context.Context, cfg config.Config) (*stores, error) {
	if cfg.StoreDriver == "memory" {
		slog.WarnContext(ctx, "store_driver_memory", "detail", "records are kept in process memory and lost on restart")
		m := memory.NewStore()
		return &stores{uploads: m, results: m, library: m, health: m}, nil
	}

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := postgres.Migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate schema: %w", err)
	}
	uploads := postgres.NewUploadRepository(db)
	return &stores{
		uploads: uploads,
		results: postgres.NewRecognitionRepository(db),
		library: postgres.NewLibraryRepository(db),
		health:  uploads,
		db:      db,
	}, nil
}

func openObjectStore(ctx context.Context, cfg config.Config, locator *domain.Locator) (ports.ObjectStore, error) {
	switch cfg.ObjectStoreDriver {
	case "s3":
		store, err := s3store.New(ctx, s3store.Options{
			Endpoint:  cfg.ObjectStoreEndpoint,
			AccessKey: cfg.ObjectStoreAccessKey,
			SecretKey: cfg.ObjectStoreSecretKey,
			Bucket:    cfg.ObjectStoreBucket,
			Region:    cfg.ObjectStoreRegion,
			PathStyle: cfg.ObjectStoreEndpoint != "",
		}, locator)
		if err != nil {
			return nil, fmt.Errorf("init s3 object store: %w", err)
		}
		return store, nil
	default:
		store, err := miniostore.New(miniostore.Options{
			Endpoint:  cfg.ObjectStoreEndpoint,
			AccessKey: cfg.ObjectStoreAccessKey,
			SecretKey: cfg.ObjectStoreSecretKey,
			Bucket:    cfg.ObjectStoreBucket,
			Region:    cfg.ObjectStoreRegion,
			UseSSL:    cfg.ObjectStoreUseSSL,
		}, locator)
		if err != nil {
			return nil, fmt.Errorf("init minio object store: %w", err)
		}
		if cfg.ObjectStoreCreateBucket {
			if err := store.EnsureBucket(ctx); err != nil {
				return nil, fmt.Errorf("ensure bucket: %w", err)
			}
		}
		return store, nil
	}
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
