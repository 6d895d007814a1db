package services

import (
	"context"
	"fmt"
	"math"
	"mime/multipart"
	"os"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/agrosentry/backend/internal/knowledge"
	"github.com/agrosentry/backend/internal/logger"
	"github.com/agrosentry/backend/internal/prediction"
	"github.com/agrosentry/backend/internal/repos"
	"github.com/agrosentry/backend/internal/types"
)

const (
	defaultHistoryPage     = 1
	defaultHistoryPageSize = 20
	maxHistoryPageSize     = 100
)

var (
	ErrDetectionNotFound  = fmt.Errorf("Detection not found")
	ErrDetectionForbidden = fmt.Errorf("Access denied")
)

type DetectionService interface {
	Analyze(ctx context.Context, userID uuid.UUID, file *multipart.FileHeader) (*AnalysisResult, error)
	History(ctx context.Context, userID uuid.UUID, page, limit int) (*HistoryResult, error)
	GetByID(ctx context.Context, userID, detectionID uuid.UUID) (*DetectionView, error)
	Stats(ctx context.Context, userID uuid.UUID) (*StatsResult, error)
	MLHealth(ctx context.Context) (*MLHealthStatus, error)
}

// AnalysisResult is the response payload of one completed analysis.
type AnalysisResult struct {
	DetectionID     uuid.UUID                `json:"detection_id"`
	Prediction      AnalysisPrediction       `json:"prediction"`
	DiseaseInfo     knowledge.Info           `json:"disease_info"`
	Recommendations knowledge.Recommendation `json:"recommendations"`
	ImageURL        string                   `json:"image_url"`
	Note            string                   `json:"note,omitempty"`
}

type AnalysisPrediction struct {
	DiseaseName    string                        `json:"disease_name"`
	Confidence     float64                       `json:"confidence"`
	SeverityLevel  string                        `json:"severity_level"`
	AllPredictions []prediction.ScoredPrediction `json:"all_predictions"`
}

// DetectionView is a stored detection plus its serving URL.
type DetectionView struct {
	*types.Detection
	ImageURL string `json:"image_url"`
}

type HistoryResult struct {
	Detections []*DetectionView `json:"detections"`
	Pagination Pagination       `json:"pagination"`
}

type Pagination struct {
	CurrentPage int `json:"current_page"`
	PerPage     int `json:"per_page"`
	TotalItems  int `json:"total_items"`
}

type StatsResult struct {
	TotalDetections   int64              `json:"total_detections"`
	UniqueDiseases    int                `json:"unique_diseases"`
	AverageConfidence float64            `json:"average_confidence"`
	DiseaseBreakdown  []DiseaseBreakdown `json:"disease_breakdown"`
}

type DiseaseBreakdown struct {
	DiseaseName string  `json:"disease_name"`
	Count       int64   `json:"count"`
	Percentage  float64 `json:"percentage"`
}

type detectionService struct {
	db            *gorm.DB
	log           *logger.Logger
	detectionRepo repos.DetectionRepo
	uploads       UploadService
	ml            MLClient
	base          knowledge.Base
}

func NewDetectionService(
	db *gorm.DB,
	baseLog *logger.Logger,
	detectionRepo repos.DetectionRepo,
	uploads UploadService,
	ml MLClient,
	base knowledge.Base,
) DetectionService {
	return &detectionService{
		db:            db,
		log:           baseLog.With("service", "DetectionService"),
		detectionRepo: detectionRepo,
		uploads:       uploads,
		ml:            ml,
		base:          base,
	}
}

// Analyze runs the full pipeline for one uploaded image: store, predict,
// normalize, assemble, persist. A predictor that answers garbage degrades
// into a fallback record with a note; infrastructure failures after the
// file hit disk delete it again before the error propagates.
func (ds *detectionService) Analyze(ctx context.Context, userID uuid.UUID, file *multipart.FileHeader) (*AnalysisResult, error) {
	path, err := ds.uploads.Save(file)
	if err != nil {
		return nil, err
	}

	image, err := os.ReadFile(path)
	if err != nil {
		_ = ds.uploads.Remove(path)
		return nil, fmt.Errorf("Failed to read stored image: %w", err)
	}

	raw, err := ds.ml.Predict(ctx, image, file.Filename)
	if err != nil {
		_ = ds.uploads.Remove(path)
		return nil, fmt.Errorf("Disease detection failed: %w", err)
	}

	pred, note := prediction.Normalize(raw)
	if note != "" {
		ds.log.Warn("Predictor output degraded, storing fallback record", "note", note, "user_id", userID)
	}

	detection, err := prediction.AssembleDetection(userID, path, file.Filename, pred, ds.base)
	if err != nil {
		_ = ds.uploads.Remove(path)
		return nil, err
	}
	detection.ID = uuid.New()

	if err := ds.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		_, cErr := ds.detectionRepo.Create(ctx, tx, []*types.Detection{detection})
		return cErr
	}); err != nil {
		_ = ds.uploads.Remove(path)
		return nil, fmt.Errorf("Failed to save detection: %w", err)
	}

	ds.log.Info("Detection saved",
		"detection_id", detection.ID,
		"predicted_disease", detection.PredictedDisease,
		"confidence", detection.Confidence,
	)

	return &AnalysisResult{
		DetectionID: detection.ID,
		Prediction: AnalysisPrediction{
			DiseaseName:    pred.TopClass,
			Confidence:     pred.TopConfidence,
			SeverityLevel:  detection.SeverityLevel,
			AllPredictions: pred.AllPredictions,
		},
		DiseaseInfo:     ds.base.DiseaseInfo(pred.TopClass),
		Recommendations: ds.base.Recommendations(pred.TopClass),
		ImageURL:        ds.uploads.PublicURL(path),
		Note:            note,
	}, nil
}

func (ds *detectionService) History(ctx context.Context, userID uuid.UUID, page, limit int) (*HistoryResult, error) {
	if page < 1 {
		page = defaultHistoryPage
	}
	if limit < 1 {
		limit = defaultHistoryPageSize
	}
	if limit > maxHistoryPageSize {
		limit = maxHistoryPageSize
	}
	offset := (page - 1) * limit

	detections, err := ds.detectionRepo.ListByUserID(ctx, nil, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("Failed to retrieve detection history: %w", err)
	}

	views := make([]*DetectionView, 0, len(detections))
	for _, d := range detections {
		views = append(views, &DetectionView{Detection: d, ImageURL: ds.uploads.PublicURL(d.ImagePath)})
	}

	return &HistoryResult{
		Detections: views,
		Pagination: Pagination{
			CurrentPage: page,
			PerPage:     limit,
			TotalItems:  len(views),
		},
	}, nil
}

func (ds *detectionService) GetByID(ctx context.Context, userID, detectionID uuid.UUID) (*DetectionView, error) {
	detection, err := ds.detectionRepo.GetByID(ctx, nil, detectionID)
	if err != nil {
		return nil, fmt.Errorf("Failed to retrieve detection: %w", err)
	}
	if detection == nil {
		return nil, ErrDetectionNotFound
	}
	if detection.UserID != userID {
		return nil, ErrDetectionForbidden
	}
	return &DetectionView{Detection: detection, ImageURL: ds.uploads.PublicURL(detection.ImagePath)}, nil
}

// Stats aggregates a user's detections per disease. average_confidence is
// the mean of the per-disease averages, matching the historical behavior
// of this endpoint, not a record-weighted mean.
func (ds *detectionService) Stats(ctx context.Context, userID uuid.UUID) (*StatsResult, error) {
	rows, err := ds.detectionRepo.StatsByUserID(ctx, nil, userID)
	if err != nil {
		return nil, fmt.Errorf("Failed to retrieve detection statistics: %w", err)
	}

	var total int64
	var confidenceSum float64
	for _, row := range rows {
		total += row.DiseaseCount
		confidenceSum += row.AvgConfidence
	}

	avgConfidence := 0.0
	if len(rows) > 0 {
		avgConfidence = round(confidenceSum/float64(len(rows)), 4)
	}

	breakdown := make([]DiseaseBreakdown, 0, len(rows))
	for _, row := range rows {
		pct := 0.0
		if total > 0 {
			pct = round(float64(row.DiseaseCount)/float64(total)*100, 2)
		}
		breakdown = append(breakdown, DiseaseBreakdown{
			DiseaseName: row.PredictedDisease,
			Count:       row.DiseaseCount,
			Percentage:  pct,
		})
	}

	return &StatsResult{
		TotalDetections:   total,
		UniqueDiseases:    len(rows),
		AverageConfidence: avgConfidence,
		DiseaseBreakdown:  breakdown,
	}, nil
}

func (ds *detectionService) MLHealth(ctx context.Context) (*MLHealthStatus, error) {
	return ds.ml.Health(ctx)
}

func round(v float64, places int) float64 {
	factor := math.Pow(10, float64(places))
	return math.Round(v*factor) / factor
}
