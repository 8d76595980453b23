package repository

import (
	"context"
	"errors"
	"fmt"

	"auditor-service/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ErrAlreadyAnalyzed means a verdict already exists for the access key.
var ErrAlreadyAnalyzed = errors.New("audit result already exists for access key")

type AuditRepository interface {
	Save(ctx context.Context, result *model.AuditResult) error
	FindByAccessKey(ctx context.Context, accessKey string) (*model.AuditResult, error)
	List(ctx context.Context, page, limit int) ([]model.AuditResult, int64, error)
}

type auditRepository struct {
	db *gorm.DB
}

func NewAuditRepository(db *gorm.DB) AuditRepository {
	return &auditRepository{db: db}
}

func (r *auditRepository) Save(ctx context.Context, result *model.AuditResult) error {
	var count int64
	if err := GetDB(ctx, r.db).Model(&model.AuditResult{}).Where("access_key = ?", result.AccessKey).Count(&count).Error; err != nil {
		return fmt.Errorf("check existing audit result: %w", err)
	}
	if count > 0 {
		return fmt.Errorf("%w: %s", ErrAlreadyAnalyzed, result.AccessKey)
	}

	result.ID = uuid.New()
	if err := GetDB(ctx, r.db).Create(result).Error; err != nil {
		return fmt.Errorf("insert audit result for %s: %w", result.AccessKey, err)
	}
	return nil
}

func (r *auditRepository) FindByAccessKey(ctx context.Context, accessKey string) (*model.AuditResult, error) {
	var result model.AuditResult
	if err := GetDB(ctx, r.db).First(&result, "access_key = ?", accessKey).Error; err != nil {
		return nil, err
	}
	return &result, nil
}

func (r *auditRepository) List(ctx context.Context, page, limit int) ([]model.AuditResult, int64, error) {
	var results []model.AuditResult
	var total int64

	db := GetDB(ctx, r.db)
	if err := db.Model(&model.AuditResult{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	if err := db.Order("created_at desc").Offset(offset).Limit(limit).Find(&results).Error; err != nil {
		return nil, 0, err
	}
	return results, total, nil
}
