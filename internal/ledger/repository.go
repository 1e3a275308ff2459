package ledger

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"docseal/signature-backend/internal/domain"
)

type Repository interface {
	Create(ctx context.Context, rec *Record) error
	GetByTransactionID(ctx context.Context, transactionID string) (*Record, error)
	List(ctx context.Context, filter ListFilter) ([]Record, error)
}

// Open connects to PostgreSQL and migrates the ledger table.
func Open(dsn string) (*gorm.DB, error) {
	return OpenDialector(postgres.Open(dsn))
}

// OpenDialector connects through any gorm dialector and migrates the ledger
// table.
func OpenDialector(dialector gorm.Dialector) (*gorm.DB, error) {
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ledger database: %w", err)
	}
	if err := db.AutoMigrate(&Record{}); err != nil {
		return nil, fmt.Errorf("failed to migrate ledger: %w", err)
	}
	return db, nil
}

type gormRepository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) Create(ctx context.Context, rec *Record) error {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	if err := r.db.WithContext(ctx).Create(rec).Error; err != nil {
		return fmt.Errorf("failed to create ledger record: %w", err)
	}
	return nil
}

func (r *gormRepository) GetByTransactionID(ctx context.Context, transactionID string) (*Record, error) {
	var rec Record
	err := r.db.WithContext(ctx).
		Where("transaction_id = ?", transactionID).
		Order("issued_at DESC").
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: transaction %s", domain.ErrNotFound, transactionID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get ledger record: %w", err)
	}
	return &rec, nil
}

func (r *gormRepository) List(ctx context.Context, filter ListFilter) ([]Record, error) {
	var recs []Record
	q := r.db.WithContext(ctx).Model(&Record{})
	if filter.TransactionID != "" {
		q = q.Where("transaction_id = ?", filter.TransactionID)
	}
	if filter.Fingerprint != "" {
		q = q.Where("fingerprint = ?", filter.Fingerprint)
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	if err := q.Order("issued_at DESC").Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("failed to list ledger records: %w", err)
	}
	return recs, nil
}

type memoryRepository struct {
	mu   sync.RWMutex
	recs []Record
}

// NewMemoryRepository keeps records in process memory. It is used when no
// database is configured.
func NewMemoryRepository() Repository {
	return &memoryRepository{}
}

func (r *memoryRepository) Create(ctx context.Context, rec *Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recs = append(r.recs, *rec)
	return nil
}

func (r *memoryRepository) GetByTransactionID(ctx context.Context, transactionID string) (*Record, error) {
	recs, err := r.List(ctx, ListFilter{TransactionID: transactionID, Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, fmt.Errorf("%w: transaction %s", domain.ErrNotFound, transactionID)
	}
	return &recs[0], nil
}

func (r *memoryRepository) List(ctx context.Context, filter ListFilter) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	var out []Record
	for _, rec := range r.recs {
		if filter.TransactionID != "" && rec.TransactionID != filter.TransactionID {
			continue
		}
		if filter.Fingerprint != "" && rec.Fingerprint != filter.Fingerprint {
			continue
		}
		out = append(out, rec)
	}
	r.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool { return out[i].IssuedAt.After(out[j].IssuedAt) })
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}
