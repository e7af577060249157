package parse

import (
	"unicode"

	"github.com/scanledger/scanledger/internal/entity"
)

// Confidence weights. The presence weights plus the quality weight sum
// to 1.0 so the clamp only matters for the line-item bonus.
const (
	weightDate          = 0.20
	weightVendor        = 0.20
	weightAmount        = 0.25
	weightReceiptNumber = 0.05
	weightItems         = 0.10
	bonusManyItems      = 0.05 // three or more line items
	weightTextLength    = 0.05
	weightQuality       = 0.15
)

// Score computes the [0,1] confidence for a parsed record given the
// raw text it came from. Weighted sum over field presence plus an
// independent text-quality sub-score.
func Score(rec *entity.ReceiptRecord, text string) float64 {
	var score float64

	if rec.Date != nil {
		score += weightDate
	}
	if rec.VendorName != "" && rec.VendorName != UnknownVendor {
		score += weightVendor
	}
	if rec.Total != nil {
		score += weightAmount
	}
	if rec.ReceiptNumber != "" {
		score += weightReceiptNumber
	}
	if len(rec.Items) > 0 {
		score += weightItems
		if len(rec.Items) >= 3 {
			score += bonusManyItems
		}
	}
	if n := len(text); n >= 40 && n <= 20000 {
		score += weightTextLength
	}
	score += weightQuality * textQuality(text)

	return clamp01(score)
}

// textQuality is the independent sub-score over length, line count,
// digit density, and native-script density. Each component is 0..1;
// the result is their mean.
func textQuality(text string) float64 {
	if text == "" {
		return 0
	}

	runes := []rune(text)
	length := float64(len(runes))

	lengthScore := minf(length/300.0, 1.0)
	lineScore := minf(float64(len(splitLines(text)))/10.0, 1.0)

	var digits, native float64
	for _, r := range runes {
		if unicode.IsDigit(r) {
			digits++
		}
		if unicode.In(r, unicode.Hiragana, unicode.Katakana, unicode.Han) {
			native++
		}
	}
	digitDensity := digits / length
	// receipts sit in a band of digit density; outside it the text is
	// probably noise or prose.
	var digitScore float64
	switch {
	case digitDensity >= 0.05 && digitDensity <= 0.40:
		digitScore = 1.0
	case digitDensity > 0:
		digitScore = 0.5
	}
	nativeScore := minf(native/length/0.10, 1.0)

	return (lengthScore + lineScore + digitScore + nativeScore) / 4.0
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func minf(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
