package app

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/auditworks/auditapi/internal/adapters/events"
	"github.com/auditworks/auditapi/internal/adapters/httpapi"
	sqliteadapter "github.com/auditworks/auditapi/internal/adapters/sqlite"
	"github.com/auditworks/auditapi/internal/adapters/sqlite/gormsqlite"
	"github.com/auditworks/auditapi/internal/core/domain"
	"github.com/auditworks/auditapi/internal/core/ports"
	"github.com/auditworks/auditapi/internal/core/usecase"
	"github.com/auditworks/auditapi/migrations"
)

type Config struct {
	Addr   string
	DBPath string

	// Bootstrap provisions an owner actor, their company and an API key at
	// startup so a fresh deployment is usable without manual inserts.
	BootstrapAPIKey      string
	BootstrapActorID     string
	BootstrapActorName   string
	BootstrapCompanyID   string
	BootstrapCompanyName string

	WebhookURL    string
	WebhookSecret string

	// Recommendation band boundaries as percentages. Zero values fall back to
	// the defaults (60/75/85).
	RecHighThreshold   float64
	RecMediumThreshold float64
	RecLowThreshold    float64
}

type resourceCloser struct {
	closers []io.Closer
}

func (r resourceCloser) Close() error {
	var firstErr error
	for _, c := range r.closers {
		if c == nil {
			continue
		}
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func NewServer(ctx context.Context, cfg Config, log *zap.Logger) (*http.Server, io.Closer, error) {
	db, err := gormsqlite.Open(cfg.DBPath)
	if err != nil {
		return nil, nil, fmt.Errorf("open sqlite: %w", err)
	}

	writeSQLDB, err := db.WriteSQLDB()
	if err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("resolve writer sql db: %w", err)
	}

	migCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := migrations.Up(migCtx, writeSQLDB); err != nil {
		_ = db.Close()
		return nil, nil, err
	}

	auditStore := sqliteadapter.NewAuditStore(db)
	templateRepo := sqliteadapter.NewTemplateRepository(db)
	companyRepo := sqliteadapter.NewCompanyRepository(db)
	actorRepo := sqliteadapter.NewActorRepository(db)
	apiKeyRepo := sqliteadapter.NewAPIKeyRepository(db)
	recRepo := sqliteadapter.NewRecommendationRepository(db)
	comparisonRepo := sqliteadapter.NewComparisonRepository(db)
	trailRepo := sqliteadapter.NewLifecycleEventRepository(db)
	outboxRepo := sqliteadapter.NewOutboxRepository(db)

	thresholds, err := resolveThresholds(cfg)
	if err != nil {
		_ = db.Close()
		return nil, nil, err
	}

	auditService := usecase.NewAuditService(auditStore, templateRepo, companyRepo)
	templateService, err := usecase.NewTemplateService(templateRepo)
	if err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	recService := usecase.NewRecommendationService(recRepo, auditService, thresholds)
	comparisonService := usecase.NewComparisonService(auditStore, templateRepo, comparisonRepo)
	trailService := usecase.NewTrailService(trailRepo, auditService)
	authService := usecase.NewAuthService(apiKeyRepo)

	var publisher ports.EventPublisher = events.NewLogPublisher(log)
	if cfg.WebhookURL != "" {
		publisher = events.NewWebhookPublisher(cfg.WebhookURL, cfg.WebhookSecret, 0)
	}
	dispatcher := usecase.NewOutboxDispatcher(outboxRepo, publisher, log, 2*time.Second, 100)
	dispatcher.Start(context.Background())

	if cfg.BootstrapAPIKey != "" {
		if err := bootstrap(cfg, actorRepo, companyRepo, apiKeyRepo); err != nil {
			_ = dispatcher.Close()
			_ = db.Close()
			return nil, nil, err
		}
	}

	handler := httpapi.NewHandler(auditService, templateService, recService, comparisonService, trailService, authService, log)

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	return server, resourceCloser{closers: []io.Closer{dispatcher, db}}, nil
}

func resolveThresholds(cfg Config) (usecase.RecommendationThresholds, error) {
	thresholds := usecase.DefaultThresholds()
	if cfg.RecHighThreshold > 0 {
		thresholds.High = decimal.NewFromFloat(cfg.RecHighThreshold)
	}
	if cfg.RecMediumThreshold > 0 {
		thresholds.Medium = decimal.NewFromFloat(cfg.RecMediumThreshold)
	}
	if cfg.RecLowThreshold > 0 {
		thresholds.Low = decimal.NewFromFloat(cfg.RecLowThreshold)
	}
	if err := thresholds.Validate(); err != nil {
		return usecase.RecommendationThresholds{}, fmt.Errorf("recommendation thresholds: %w", err)
	}
	return thresholds, nil
}

func bootstrap(cfg Config, actors ports.ActorRepository, companies ports.CompanyRepository, keys ports.APIKeyRepository) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	actorID := cfg.BootstrapActorID
	if actorID == "" {
		actorID = "bootstrap-owner"
	}
	actorName := cfg.BootstrapActorName
	if actorName == "" {
		actorName = "Bootstrap Owner"
	}

	if err := actors.Upsert(ctx, domain.Actor{ID: actorID, Name: actorName, Role: domain.RoleOwner}); err != nil {
		return fmt.Errorf("bootstrap actor: %w", err)
	}

	if cfg.BootstrapCompanyID != "" {
		companyName := cfg.BootstrapCompanyName
		if companyName == "" {
			companyName = cfg.BootstrapCompanyID
		}
		err := companies.Upsert(ctx, domain.CompanyRef{
			ID:      cfg.BootstrapCompanyID,
			Name:    companyName,
			OwnerID: actorID,
		})
		if err != nil {
			return fmt.Errorf("bootstrap company: %w", err)
		}
	}

	err := keys.Upsert(ctx, domain.APIKey{
		TokenHash: usecase.HashToken(cfg.BootstrapAPIKey),
		ActorID:   actorID,
		Name:      "bootstrap",
		Active:    true,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("bootstrap api key: %w", err)
	}
	return nil
}
