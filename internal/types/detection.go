package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Detection is one stored analysis result. Rows are append-only: they are
// created once at the end of an upload request and never updated.
type Detection struct {
	ID               uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	UserID           uuid.UUID      `gorm:"index;not null;column:user_id" json:"user_id"`
	User             *User          `gorm:"constraint:OnDelete:CASCADE;foreignKey:UserID;references:ID" json:"-"`
	ImagePath        string         `gorm:"not null;column:image_path" json:"image_path"`
	OriginalFilename string         `gorm:"column:original_filename" json:"original_filename"`
	PredictedDisease string         `gorm:"not null;column:predicted_disease" json:"predicted_disease"`
	Confidence       float64        `gorm:"not null;column:confidence" json:"confidence"`
	SeverityLevel    string         `gorm:"column:severity_level" json:"severity_level"`
	AllPredictions   datatypes.JSON `gorm:"column:all_predictions" json:"all_predictions"`
	DiseaseInfo      datatypes.JSON `gorm:"column:disease_info" json:"disease_info"`
	Recommendations  datatypes.JSON `gorm:"column:recommendations" json:"recommendations"`
	CreatedAt        time.Time      `gorm:"not null;index" json:"created_at"`
}

func (Detection) TableName() string {
	return "plant_detections"
}

// DiseaseStatRow is one GROUP BY bucket from the stats query.
type DiseaseStatRow struct {
	PredictedDisease string  `json:"predicted_disease"`
	DiseaseCount     int64   `json:"disease_count"`
	AvgConfidence    float64 `json:"avg_confidence"`
}
