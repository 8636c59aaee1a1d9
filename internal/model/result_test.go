package model

import (
	"math"
	"strings"
	"testing"
	"time"

	"github.com/Brownie44l1/ningapi/internal/i18n"
)

func TestConfidenceBands(t *testing.T) {
	tests := []struct {
		confidence float64
		high       bool
		unknown    bool
	}{
		{0.70, true, false},
		{0.6999, false, false},
		{0.45, false, false},
		{0.4499, false, true},
		{0.0, false, true},
		{1.0, true, false},
	}
	for _, tt := range tests {
		r := &ClassificationResult{Denomination: "1000FC", Confidence: tt.confidence}
		if got := r.IsHighConfidence(); got != tt.high {
			t.Errorf("IsHighConfidence(%v) = %v, want %v", tt.confidence, got, tt.high)
		}
		if got := r.IsUnknown(); got != tt.unknown {
			t.Errorf("IsUnknown(%v) = %v, want %v", tt.confidence, got, tt.unknown)
		}
	}
}

func TestCurrencyOf(t *testing.T) {
	tests := map[string]Currency{
		"20$":     CurrencyUSD,
		"1000FC":  CurrencyFC,
		"usd":     CurrencyUSD,
		"100USD":  CurrencyUSD,
		"20000FC": CurrencyFC,
	}
	for label, want := range tests {
		if got := CurrencyOf(label); got != want {
			t.Errorf("CurrencyOf(%q) = %q, want %q", label, got, want)
		}
	}
}

func TestSpeakableResult(t *testing.T) {
	tests := []struct {
		name       string
		label      string
		confidence float64
		want       string
	}{
		{"high fc", "1000FC", 0.81, "Billet détecté : 1000 Francs Congolais"},
		{"high usd", "20$", 0.95, "Billet détecté : 20 Dollars"},
		{"probable", "50$", 0.5, "Billet probable : 50 Dollars. Confiance faible."},
		{"unknown", "500FC", 0.3, "Je ne reconnais pas cet objet. Veuillez présenter un billet bien éclairé."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &ClassificationResult{Denomination: tt.label, Currency: CurrencyOf(tt.label), Confidence: tt.confidence}
			if got := r.SpeakableResult(); got != tt.want {
				t.Errorf("SpeakableResult() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSpeakableEnglish(t *testing.T) {
	r := &ClassificationResult{Denomination: "200FC", Confidence: 0.9}
	got := r.Speakable(i18n.New("en-US"))
	if got != "Banknote detected: 200 Congolese Francs" {
		t.Errorf("Speakable(en) = %q", got)
	}
}

func TestConfidencePercentage(t *testing.T) {
	r := &ClassificationResult{Confidence: 0.8123}
	if got := r.ConfidencePercentage(); got != "81.2%" {
		t.Errorf("ConfidencePercentage() = %q", got)
	}
}

func TestDecideTiesKeepLowestIndex(t *testing.T) {
	out := make([]float32, 14)
	out[0], out[1] = 0.5, 0.5

	r, err := Decide(DefaultLabels(), out, time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if r.Denomination != "1$" {
		t.Errorf("denomination = %q, want 1$", r.Denomination)
	}
	if r.Confidence != 0.5 {
		t.Errorf("confidence = %v, want 0.5", r.Confidence)
	}
}

func TestDecideHighConfidenceFC(t *testing.T) {
	labels := DefaultLabels()
	out := []float32{0.02, 0.01, 0.01, 0.01, 0.81, 0.01, 0.02, 0.01, 0.02, 0.02, 0.01, 0.02, 0.02, 0.01}
	if labels.At(4) != "1000FC" {
		t.Fatalf("label table order changed: %v", labels.All())
	}

	r, err := Decide(labels, out, time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if r.Denomination != "1000FC" || r.Currency != CurrencyFC {
		t.Errorf("got %s/%s, want 1000FC/FC", r.Denomination, r.Currency)
	}
	if math.Abs(r.Confidence-0.81) > 1e-6 {
		t.Errorf("confidence = %v, want 0.81", r.Confidence)
	}
	if len(r.Probabilities) != labels.Len() {
		t.Errorf("probabilities has %d entries, want %d", len(r.Probabilities), labels.Len())
	}
	var sum, max float64
	for _, p := range r.Probabilities {
		sum += p
		if p > max {
			max = p
		}
	}
	if math.Abs(sum-1) > 1e-3 {
		t.Errorf("probabilities sum to %v", sum)
	}
	if max != r.Confidence {
		t.Errorf("confidence %v is not the max probability %v", r.Confidence, max)
	}
	if !strings.Contains(r.SpeakableResult(), "Billet détecté") {
		t.Errorf("speakable = %q", r.SpeakableResult())
	}
}

func TestDecideRejectsWrongArity(t *testing.T) {
	if _, err := Decide(DefaultLabels(), []float32{1, 0}, time.Now()); err == nil {
		t.Fatal("expected error for short output")
	}
}

func TestLabelTable(t *testing.T) {
	labels := DefaultLabels()
	want := []string{"1$", "10$", "100$", "10000FC", "1000FC", "100FC", "20$", "20000FC", "200FC", "5$", "50$", "5000FC", "500FC", "50FC"}
	got := labels.All()
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("[%d] = %q, want %q", i, got[i], want[i])
		}
	}
	got[0] = "mutated"
	if labels.At(0) != "1$" {
		t.Error("All() exposed internal storage")
	}
	if labels.Index("20$") != 6 || labels.Index("nope") != -1 {
		t.Error("Index lookup mismatch")
	}
}
