package model

import "strings"

// labelTable follows the class index order used at training time.
var labelTable = [...]string{
	"1$", "10$", "100$",
	"10000FC", "1000FC", "100FC",
	"20$", "20000FC", "200FC",
	"5$", "50$",
	"5000FC", "500FC", "50FC",
}

// LabelTable is the immutable, order-significant class vocabulary.
type LabelTable struct {
	labels []string
}

// DefaultLabels returns the 14 banknote labels.
func DefaultLabels() LabelTable {
	return LabelTable{labels: labelTable[:]}
}

// Len returns the number of labels.
func (t LabelTable) Len() int { return len(t.labels) }

// At returns the label at class index i.
func (t LabelTable) At(i int) string { return t.labels[i] }

// All returns a copy of the labels in class order.
func (t LabelTable) All() []string {
	out := make([]string, len(t.labels))
	copy(out, t.labels)
	return out
}

// Index returns the class index of label, or -1.
func (t LabelTable) Index(label string) int {
	for i, l := range t.labels {
		if l == label {
			return i
		}
	}
	return -1
}

// Currency is the currency a denomination belongs to.
type Currency string

const (
	CurrencyFC  Currency = "FC"
	CurrencyUSD Currency = "USD"
)

// CurrencyOf derives the currency from a label: "$" or "USD" in any case
// means USD, anything else is Congolese francs.
func CurrencyOf(label string) Currency {
	if strings.Contains(label, "$") || strings.Contains(strings.ToUpper(label), "USD") {
		return CurrencyUSD
	}
	return CurrencyFC
}
