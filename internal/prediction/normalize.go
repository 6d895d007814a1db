// Package prediction turns raw, untrusted ML predictor responses into
// well-formed detection records. Normalization is a total function: every
// input shape, including a missing response, lands on one of three
// branches and none of them errors. The image was already uploaded by the
// time the predictor answers, so a misbehaving predictor degrades the
// result instead of failing the request.
package prediction

import (
	"sort"
)

// UnknownClass is the sentinel label stored when no usable prediction
// was received.
const UnknownClass = "Unknown"

// Warnings surfaced to the client as a `note` on an otherwise successful
// response.
const (
	WarnServiceUnavailable = "ML service unavailable, using fallback data"
	WarnNoValidPredictions = "No valid predictions received"
)

// RawResponse is the predictor's wire shape, taken as-is and untrusted.
type RawResponse struct {
	Success    bool        `json:"success"`
	Prediction *RawPayload `json:"prediction"`
	Error      string      `json:"error,omitempty"`
}

type RawPayload struct {
	AllPredictions []RawPrediction `json:"all_predictions"`
}

// RawPrediction keeps Confidence as a pointer so an absent or null field
// is distinguishable from 0.
type RawPrediction struct {
	ClassName  string   `json:"class_name"`
	Confidence *float64 `json:"confidence"`
}

// ScoredPrediction is one validated (label, confidence) pair.
type ScoredPrediction struct {
	ClassName  string  `json:"class_name"`
	Confidence float64 `json:"confidence"`
}

// Prediction is the normalized outcome of one predictor call.
type Prediction struct {
	TopClass       string
	TopConfidence  float64
	AllPredictions []ScoredPrediction
}

func fallbackPrediction() Prediction {
	return Prediction{
		TopClass:       UnknownClass,
		TopConfidence:  0.0,
		AllPredictions: []ScoredPrediction{},
	}
}

// Normalize validates and sorts a raw predictor response. The returned
// warning is empty on the happy path and holds the degraded-success note
// otherwise. It never returns an error.
func Normalize(resp *RawResponse) (Prediction, string) {
	if resp == nil || !resp.Success {
		return fallbackPrediction(), WarnServiceUnavailable
	}

	var raw []RawPrediction
	if resp.Prediction != nil {
		raw = resp.Prediction.AllPredictions
	}

	valid := make([]ScoredPrediction, 0, len(raw))
	for _, p := range raw {
		if p.ClassName == "" || p.Confidence == nil {
			continue
		}
		c := *p.Confidence
		if c <= 0 || c > 1 {
			continue
		}
		valid = append(valid, ScoredPrediction{ClassName: p.ClassName, Confidence: c})
	}

	if len(valid) == 0 {
		return fallbackPrediction(), WarnNoValidPredictions
	}

	// Stable: equal confidences keep their filtered input order, so the
	// top class of a tie is whichever the predictor listed first.
	sort.SliceStable(valid, func(i, j int) bool {
		return valid[i].Confidence > valid[j].Confidence
	})

	return Prediction{
		TopClass:       valid[0].ClassName,
		TopConfidence:  valid[0].Confidence,
		AllPredictions: valid,
	}, ""
}
