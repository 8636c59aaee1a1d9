package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/Brownie44l1/ningapi/internal/i18n"
)

// Confidence bands.
const (
	HighConfidenceThreshold = 0.70
	UnknownThreshold        = 0.45
)

// ClassificationResult is the labeled outcome of one inference.
type ClassificationResult struct {
	Denomination  string             `json:"denomination"`
	Currency      Currency           `json:"currency"`
	Confidence    float64            `json:"confidence"`
	Probabilities map[string]float64 `json:"probabilities,omitempty"`
	Timestamp     time.Time          `json:"timestamp"`
}

// IsHighConfidence reports confidence >= 0.70.
func (r *ClassificationResult) IsHighConfidence() bool {
	return r.Confidence >= HighConfidenceThreshold
}

// IsUnknown reports confidence < 0.45.
func (r *ClassificationResult) IsUnknown() bool {
	return r.Confidence < UnknownThreshold
}

// ConfidencePercentage formats the confidence as "81.0%".
func (r *ClassificationResult) ConfidencePercentage() string {
	return fmt.Sprintf("%.1f%%", r.Confidence*100)
}

// SpeakableResult is the French announcement for the result.
func (r *ClassificationResult) SpeakableResult() string {
	return r.Speakable(i18n.New(string(i18n.FR)))
}

// Speakable builds the announcement in the catalog's language.
func (r *ClassificationResult) Speakable(c *i18n.Catalog) string {
	if r.IsUnknown() {
		return c.T(i18n.UnknownObject)
	}
	spoken := spokenDenomination(r.Denomination, c)
	if r.IsHighConfidence() {
		return c.Tf(i18n.BanknoteDetected, spoken)
	}
	return c.Tf(i18n.BanknoteProbable, spoken)
}

// spokenDenomination turns "1000FC" into "1000 Francs Congolais" and
// "20$" into "20 Dollars".
func spokenDenomination(label string, c *i18n.Catalog) string {
	switch {
	case strings.Contains(label, "FC"):
		return strings.ReplaceAll(label, "FC", "") + " " + c.T(i18n.CurrencyFC)
	case strings.Contains(label, "$") || strings.Contains(label, "USD"):
		amount := strings.ReplaceAll(strings.ReplaceAll(label, "$", ""), "USD", "")
		return amount + " " + c.T(i18n.CurrencyUSD)
	}
	return label
}

// Decide selects the top-1 class from raw model output. Ties keep the
// lowest index.
func Decide(labels LabelTable, output []float32, at time.Time) (*ClassificationResult, error) {
	if len(output) != labels.Len() {
		return nil, fmt.Errorf("model output has %d values, want %d", len(output), labels.Len())
	}

	maxIdx := 0
	maxVal := output[0]
	predictions := make(map[string]float64, labels.Len())

	for i, val := range output {
		predictions[labels.At(i)] = float64(val)
		if val > maxVal {
			maxVal = val
			maxIdx = i
		}
	}

	label := labels.At(maxIdx)
	return &ClassificationResult{
		Denomination:  label,
		Currency:      CurrencyOf(label),
		Confidence:    clamp01(float64(maxVal)),
		Probabilities: predictions,
		Timestamp:     at,
	}, nil
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
