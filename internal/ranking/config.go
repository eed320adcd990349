package ranking

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
)

// Weights holds the multipliers applied to each re-ranking component.
// A multiplier of 1.0 leaves the component's built-in bonus scale
// untouched; calibration files scale components up or down without
// code changes.
type Weights struct {
	ServiceQuality    float64 `json:"service_quality"`    // Access protocol quality bonus
	VariableRelevance float64 `json:"variable_relevance"` // Query-to-variable match bonus
	Recency           float64 `json:"recency"`            // Temporal coverage recency bonus
	PublisherTrust    float64 `json:"publisher_trust"`    // Publisher reputation bonus
	Openness          float64 `json:"openness"`           // DOI and permissive license bonus
	TextMatch         float64 `json:"text_match"`         // Direct title/abstract match bonus
	Completeness      float64 `json:"completeness"`       // Metadata completeness bonus
}

// CalibrationConfig represents the JSON structure of the calibration file.
type CalibrationConfig struct {
	Version string  `json:"version"`
	Weights Weights `json:"weights"`
}

// DefaultWeights returns the neutral calibration: every component at
// its built-in scale.
func DefaultWeights() *Weights {
	return &Weights{
		ServiceQuality:    1.0,
		VariableRelevance: 1.0,
		Recency:           1.0,
		PublisherTrust:    1.0,
		Openness:          1.0,
		TextMatch:         1.0,
		Completeness:      1.0,
	}
}

// LoadCalibration loads ranking weights from a JSON calibration file.
// Missing or unreadable files fall back to defaults with an error so
// callers can log and continue. Partial configurations are merged with
// defaults.
func LoadCalibration(filePath string) (*Weights, error) {
	if filePath == "" {
		return DefaultWeights(), nil
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		slog.Warn("failed to read calibration file, using defaults",
			"path", filePath,
			"error", err)
		return DefaultWeights(), fmt.Errorf("failed to read calibration file: %w", err)
	}

	var config CalibrationConfig
	if err := json.Unmarshal(data, &config); err != nil {
		slog.Warn("failed to parse calibration file, using defaults",
			"path", filePath,
			"error", err)
		return DefaultWeights(), fmt.Errorf("failed to parse calibration file: %w", err)
	}

	defaults := DefaultWeights()
	merged := MergeCalibration(defaults, &config.Weights)
	logCalibrationOverrides(defaults, merged)

	return merged, nil
}

// MergeCalibration merges override weights into the base. Only non-zero
// values from the override are applied, allowing partial calibration
// files.
func MergeCalibration(base *Weights, override *Weights) *Weights {
	if base == nil {
		return DefaultWeights()
	}
	if override == nil {
		result := *base
		return &result
	}

	result := *base

	if override.ServiceQuality != 0 {
		result.ServiceQuality = override.ServiceQuality
	}
	if override.VariableRelevance != 0 {
		result.VariableRelevance = override.VariableRelevance
	}
	if override.Recency != 0 {
		result.Recency = override.Recency
	}
	if override.PublisherTrust != 0 {
		result.PublisherTrust = override.PublisherTrust
	}
	if override.Openness != 0 {
		result.Openness = override.Openness
	}
	if override.TextMatch != 0 {
		result.TextMatch = override.TextMatch
	}
	if override.Completeness != 0 {
		result.Completeness = override.Completeness
	}

	return &result
}

// logCalibrationOverrides logs which weights differ from defaults.
func logCalibrationOverrides(defaults *Weights, loaded *Weights) {
	var overrides []string

	check := func(name string, def, got float64) {
		if got != def {
			overrides = append(overrides, fmt.Sprintf("%s: %.2f -> %.2f", name, def, got))
		}
	}
	check("service_quality", defaults.ServiceQuality, loaded.ServiceQuality)
	check("variable_relevance", defaults.VariableRelevance, loaded.VariableRelevance)
	check("recency", defaults.Recency, loaded.Recency)
	check("publisher_trust", defaults.PublisherTrust, loaded.PublisherTrust)
	check("openness", defaults.Openness, loaded.Openness)
	check("text_match", defaults.TextMatch, loaded.TextMatch)
	check("completeness", defaults.Completeness, loaded.Completeness)

	if len(overrides) > 0 {
		slog.Info("loaded ranking calibration with overrides",
			"overrides", overrides)
	} else {
		slog.Info("loaded ranking calibration (using all defaults)")
	}
}
