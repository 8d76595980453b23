package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"auditor-service/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type DocumentRepository interface {
	// Upsert persists a document and its items idempotently, keyed by access
	// key. An existing header is returned untouched with wasNew=false; its
	// items are only (re)inserted when the header has none, to recover from
	// an earlier partial failure.
	Upsert(ctx context.Context, doc *model.Document, items []model.DocumentItem) (uuid.UUID, bool, error)
	FindByAccessKey(ctx context.Context, accessKey string) (*model.Document, error)
	CountByAccessKey(ctx context.Context, accessKey string) (int64, error)
	ListItems(ctx context.Context, accessKey string) ([]model.DocumentItem, error)
	CountItems(ctx context.Context, accessKey string) (int64, error)
	List(ctx context.Context, page, limit int) ([]model.Document, int64, error)
}

type documentRepository struct {
	db        *gorm.DB
	txManager TransactionManager
	// keyLocks serializes first-time inserts per access key so two concurrent
	// submissions of the same unseen document cannot both create a header.
	keyLocks sync.Map // accessKey -> *sync.Mutex
}

func NewDocumentRepository(db *gorm.DB, txManager TransactionManager) DocumentRepository {
	return &documentRepository{db: db, txManager: txManager}
}

func (r *documentRepository) lockKey(accessKey string) func() {
	v, _ := r.keyLocks.LoadOrStore(accessKey, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

func (r *documentRepository) Upsert(ctx context.Context, doc *model.Document, items []model.DocumentItem) (uuid.UUID, bool, error) {
	unlock := r.lockKey(doc.AccessKey)
	defer unlock()

	existing, err := r.FindByAccessKey(ctx, doc.AccessKey)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return uuid.Nil, false, fmt.Errorf("lookup document %s: %w", doc.AccessKey, err)
	}

	if existing != nil {
		count, err := r.CountItems(ctx, existing.AccessKey)
		if err != nil {
			return uuid.Nil, false, fmt.Errorf("count items for %s: %w", existing.AccessKey, err)
		}
		if count == 0 && len(items) > 0 {
			if err := r.insertItems(ctx, existing.ID, existing.AccessKey, items); err != nil {
				return uuid.Nil, false, err
			}
		}
		return existing.ID, false, nil
	}

	doc.ID = uuid.New()
	err = r.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := GetDB(txCtx, r.db).Create(doc).Error; err != nil {
			return fmt.Errorf("insert document %s: %w", doc.AccessKey, err)
		}
		return r.createItems(txCtx, doc.ID, doc.AccessKey, items)
	})
	if err != nil {
		return uuid.Nil, false, err
	}
	return doc.ID, true, nil
}

func (r *documentRepository) insertItems(ctx context.Context, docID uuid.UUID, accessKey string, items []model.DocumentItem) error {
	return r.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		return r.createItems(txCtx, docID, accessKey, items)
	})
}

func (r *documentRepository) createItems(ctx context.Context, docID uuid.UUID, accessKey string, items []model.DocumentItem) error {
	if len(items) == 0 {
		return nil
	}
	for i := range items {
		items[i].ID = uuid.New()
		items[i].DocumentID = docID
		items[i].AccessKey = accessKey
	}
	if err := GetDB(ctx, r.db).Create(&items).Error; err != nil {
		return fmt.Errorf("insert %d items for %s: %w", len(items), accessKey, err)
	}
	return nil
}

func (r *documentRepository) FindByAccessKey(ctx context.Context, accessKey string) (*model.Document, error) {
	var doc model.Document
	if err := GetDB(ctx, r.db).First(&doc, "access_key = ?", accessKey).Error; err != nil {
		return nil, err
	}
	return &doc, nil
}

func (r *documentRepository) CountByAccessKey(ctx context.Context, accessKey string) (int64, error) {
	var count int64
	err := GetDB(ctx, r.db).Model(&model.Document{}).Where("access_key = ?", accessKey).Count(&count).Error
	return count, err
}

func (r *documentRepository) ListItems(ctx context.Context, accessKey string) ([]model.DocumentItem, error) {
	var items []model.DocumentItem
	err := GetDB(ctx, r.db).Where("access_key = ?", accessKey).Order("item_number asc").Find(&items).Error
	return items, err
}

func (r *documentRepository) CountItems(ctx context.Context, accessKey string) (int64, error) {
	var count int64
	err := GetDB(ctx, r.db).Model(&model.DocumentItem{}).Where("access_key = ?", accessKey).Count(&count).Error
	return count, err
}

func (r *documentRepository) List(ctx context.Context, page, limit int) ([]model.Document, int64, error) {
	var docs []model.Document
	var total int64

	db := GetDB(ctx, r.db)
	if err := db.Model(&model.Document{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	if err := db.Order("created_at desc").Offset(offset).Limit(limit).Find(&docs).Error; err != nil {
		return nil, 0, err
	}
	return docs, total, nil
}
