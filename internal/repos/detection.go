package repos

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/agrosentry/backend/internal/logger"
	"github.com/agrosentry/backend/internal/types"
)

type DetectionRepo interface {
	Create(ctx context.Context, tx *gorm.DB, detections []*types.Detection) ([]*types.Detection, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Detection, error)
	ListByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID, limit, offset int) ([]*types.Detection, error)
	StatsByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.DiseaseStatRow, error)
}

type detectionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewDetectionRepo(db *gorm.DB, baseLog *logger.Logger) DetectionRepo {
	return &detectionRepo{db: db, log: baseLog.With("repo", "DetectionRepo")}
}

func (dr *detectionRepo) Create(ctx context.Context, tx *gorm.DB, detections []*types.Detection) ([]*types.Detection, error) {
	transaction := tx
	if transaction == nil {
		transaction = dr.db
	}
	if len(detections) == 0 {
		return []*types.Detection{}, nil
	}
	if err := transaction.WithContext(ctx).Create(&detections).Error; err != nil {
		return nil, err
	}
	return detections, nil
}

func (dr *detectionRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Detection, error) {
	transaction := tx
	if transaction == nil {
		transaction = dr.db
	}
	var result types.Detection
	err := transaction.WithContext(ctx).
		Where("id = ?", id).
		First(&result).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (dr *detectionRepo) ListByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID, limit, offset int) ([]*types.Detection, error) {
	transaction := tx
	if transaction == nil {
		transaction = dr.db
	}
	var results []*types.Detection
	if err := transaction.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// StatsByUserID groups a user's detections by predicted disease. Percentages
// and the overall average are computed by the service, not here.
func (dr *detectionRepo) StatsByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.DiseaseStatRow, error) {
	transaction := tx
	if transaction == nil {
		transaction = dr.db
	}
	var rows []*types.DiseaseStatRow
	if err := transaction.WithContext(ctx).
		Model(&types.Detection{}).
		Select("predicted_disease, COUNT(*) AS disease_count, AVG(confidence) AS avg_confidence").
		Where("user_id = ?", userID).
		Group("predicted_disease").
		Order("disease_count DESC").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
