package prediction

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/agrosentry/backend/internal/knowledge"
	"github.com/agrosentry/backend/internal/types"
)

// AssembleDetection combines a normalized prediction with knowledge-base
// metadata into an unpersisted detection row. Pure combination: no I/O,
// deterministic given its inputs. ID and CreatedAt are left for the
// caller and the storage layer.
func AssembleDetection(userID uuid.UUID, imagePath, originalFilename string, pred Prediction, base knowledge.Base) (*types.Detection, error) {
	allPredictions, err := json.Marshal(pred.AllPredictions)
	if err != nil {
		return nil, fmt.Errorf("Failed to encode predictions: %w", err)
	}
	diseaseInfo, err := json.Marshal(base.DiseaseInfo(pred.TopClass))
	if err != nil {
		return nil, fmt.Errorf("Failed to encode disease info: %w", err)
	}
	recommendations, err := json.Marshal(base.Recommendations(pred.TopClass))
	if err != nil {
		return nil, fmt.Errorf("Failed to encode recommendations: %w", err)
	}

	return &types.Detection{
		UserID:           userID,
		ImagePath:        imagePath,
		OriginalFilename: originalFilename,
		PredictedDisease: pred.TopClass,
		Confidence:       pred.TopConfidence,
		SeverityLevel:    string(SeverityFor(pred.TopConfidence)),
		AllPredictions:   allPredictions,
		DiseaseInfo:      diseaseInfo,
		Recommendations:  recommendations,
	}, nil
}
