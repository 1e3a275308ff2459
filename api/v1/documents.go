package v1

import (
	"context"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"docseal/signature-backend/internal/attestation"
	"docseal/signature-backend/internal/auth"
	"docseal/signature-backend/internal/cleanup"
	"docseal/signature-backend/internal/config"
	"docseal/signature-backend/internal/crypto"
	"docseal/signature-backend/internal/documents"
	"docseal/signature-backend/internal/fingerprint"
	"docseal/signature-backend/internal/ledger"
	"docseal/signature-backend/pkg/pdf"
	"docseal/signature-backend/pkg/storage"
)

// DownloadPath is where signed documents are served when the object store
// cannot hand out direct URLs.
const DownloadPath = "/api/v1/documents/download/"

// DocumentsAPI holds the signing API dependencies
type DocumentsAPI struct {
	Handler *documents.Handler
	Service documents.Service
	Keys    *crypto.KeyManager
	Store   storage.ObjectStore
	Ledger  ledger.Repository
	Janitor *cleanup.Janitor
}

// SetupDocumentsAPI builds the signing API from configuration. The key pair
// must already exist at the configured paths.
func SetupDocumentsAPI(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*DocumentsAPI, error) {
	keys := crypto.NewKeyManager(cfg.Keys.PrivateKeyPath, cfg.Keys.PublicKeyPath)

	store, err := NewObjectStore(ctx, cfg.Storage)
	if err != nil {
		return nil, err
	}

	repo, err := NewLedger(cfg.Database, logger)
	if err != nil {
		return nil, err
	}

	codec := attestation.NewQRCodec(cfg.Attestation.ModulePixels)
	placement := pdf.DefaultPlacement()
	placement.Width = cfg.Attestation.Width
	placement.Margin = cfg.Attestation.Margin

	service := documents.NewService(documents.Dependencies{
		Extractor:  fingerprint.NewExtractor(fingerprint.PDFSource(), logger.Named("fingerprint")),
		Signatures: documents.NewSignatureService(crypto.NewSigner(keys), crypto.NewVerifier(keys)),
		Keys:       keys,
		Codec:      codec,
		Scanner:    attestation.NewScanner(codec, nil, logger.Named("scanner")),
		PDF:        documents.NewPDFService(pdf.NewGenerator(pdf.DefaultOptions()), nil, placement),
		Storage:    documents.NewStorageProvider(store, cfg.Storage.Prefix, cfg.Storage.PresignExpiry),
		Ledger:     repo,
		Workflow:   documents.NewWorkflowService(),
	}, documents.ServiceConfig{
		MaxUploadBytes:  cfg.Limits.MaxUploadBytes,
		VerificationURL: cfg.Attestation.VerificationURL,
		Caption:         cfg.Attestation.Caption,
		DownloadPath:    DownloadPath,
	}, logger)

	api := &DocumentsAPI{
		Handler: documents.NewHandler(service, logger, cfg.Limits.MaxUploadBytes),
		Service: service,
		Keys:    keys,
		Store:   store,
		Ledger:  repo,
	}
	if cfg.Cleanup.Enabled {
		api.Janitor = cleanup.NewJanitor(store, cfg.Storage.Prefix, cfg.Cleanup.MaxAge, logger.Named("janitor"))
	}
	return api, nil
}

// NewObjectStore opens the configured backend for signed documents.
func NewObjectStore(ctx context.Context, cfg config.StorageConfig) (storage.ObjectStore, error) {
	switch cfg.Backend {
	case "", "local":
		return storage.NewLocalStore(cfg.LocalDir)
	case "s3":
		return storage.NewS3Store(ctx, storage.S3Config{
			Bucket:          cfg.S3.Bucket,
			Region:          cfg.S3.Region,
			Endpoint:        cfg.S3.Endpoint,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
		})
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

// NewLedger connects to Postgres when a DSN is configured and otherwise keeps
// the ledger in memory.
func NewLedger(cfg config.DatabaseConfig, logger *zap.Logger) (ledger.Repository, error) {
	if cfg.DSN == "" {
		logger.Warn("No database configured, signature ledger is in memory only")
		return ledger.NewMemoryRepository(), nil
	}
	db, err := ledger.Open(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger: %w", err)
	}
	return ledger.NewRepository(db), nil
}

// RegisterDocumentsRoutes registers the signing routes on the router group.
// Key generation requires an admin token and is disabled without a JWT secret.
func RegisterDocumentsRoutes(router *gin.RouterGroup, api *DocumentsAPI, authn *auth.Authenticator) {
	var guard gin.HandlerFunc
	if authn != nil && authn.Enabled() {
		guard = authn.RequireRole(auth.RoleAdmin)
		auth.RegisterRoutes(router, auth.NewHandler(authn))
	}
	api.Handler.RegisterRoutes(router, guard)
}

// RequestTimeout bounds each request's context.
func RequestTimeout(d time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if d <= 0 {
			c.Next()
			return
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), d)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
