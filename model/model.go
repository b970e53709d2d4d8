package model

import (
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Frequency classifies the average interval between occurrences of a
// recurring charge.
type Frequency string

const (
	FrequencyWeekly      Frequency = "weekly"
	FrequencyFortnightly Frequency = "fortnightly"
	FrequencyMonthly     Frequency = "monthly"
	FrequencyQuarterly   Frequency = "quarterly"
	FrequencyYearly      Frequency = "yearly"
)

// Frequencies lists every valid frequency classification.
var Frequencies = []Frequency{
	FrequencyWeekly,
	FrequencyFortnightly,
	FrequencyMonthly,
	FrequencyQuarterly,
	FrequencyYearly,
}

// GenerateUUIDWithSuffix generates a UUID with a given module name as a prefix.
// This is useful for creating unique identifiers with context-specific prefixes.
func GenerateUUIDWithSuffix(module string) string {
	id := uuid.New()
	uuidStr := id.String()
	idWithSuffix := fmt.Sprintf("%s_%s", module, uuidStr)
	return idWithSuffix
}

// Round2 rounds a monetary value to 2 decimal places, half away from zero.
// Every arithmetic step in the engine passes through Round2 so that repeated
// floating additions never accumulate drift (0.1 + 0.2 yields exactly 0.30).
func Round2(value float64) float64 {
	result, _ := decimal.NewFromFloat(value).Round(2).Float64()
	return result
}

// Mean returns the arithmetic mean of values, or 0 for an empty slice.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// StdDev returns the population standard deviation of values, or 0 for
// fewer than 2 values.
func StdDev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	mean := Mean(values)
	var sumSquares float64
	for _, v := range values {
		diff := v - mean
		sumSquares += diff * diff
	}
	return math.Sqrt(sumSquares / float64(len(values)))
}

// CoefficientOfVariation returns stddev/|mean| as a percentage. It returns 0
// for fewer than 2 values or a zero mean, which callers treat as perfectly
// consistent.
func CoefficientOfVariation(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	mean := Mean(values)
	if mean == 0 {
		return 0
	}
	return StdDev(values) / math.Abs(mean) * 100
}

// ClassifyFrequency maps an average interval in days to a frequency
// classification. Averages outside every band yield ok=false and the
// pattern is rejected.
func ClassifyFrequency(avgIntervalDays float64) (Frequency, bool) {
	switch {
	case avgIntervalDays >= 4 && avgIntervalDays <= 10:
		return FrequencyWeekly, true
	case avgIntervalDays >= 11 && avgIntervalDays <= 18:
		return FrequencyFortnightly, true
	case avgIntervalDays >= 25 && avgIntervalDays <= 35:
		return FrequencyMonthly, true
	case avgIntervalDays >= 80 && avgIntervalDays <= 100:
		return FrequencyQuarterly, true
	case avgIntervalDays >= 350 && avgIntervalDays <= 380:
		return FrequencyYearly, true
	}
	return "", false
}

// ExpectedIntervalDays returns the nominal number of days between charges
// for a frequency classification.
func ExpectedIntervalDays(frequency Frequency) float64 {
	switch frequency {
	case FrequencyWeekly:
		return 7
	case FrequencyFortnightly:
		return 14
	case FrequencyMonthly:
		return 30
	case FrequencyQuarterly:
		return 91
	case FrequencyYearly:
		return 365
	}
	return 0
}

var (
	dateTokenRegex  = regexp.MustCompile(`\b\d{1,4}[-/.]\d{1,2}(?:[-/.]\d{1,4})?\b`)
	refMarkerRegex  = regexp.MustCompile(`\b(?:REF|REFERENCE|CONF|CONFIRMATION|AUTH|TXN|TRANS)[:#]?\s*\w*\b`)
	numberRegex     = regexp.MustCompile(`\b\d+\b`)
	asteriskRegex   = regexp.MustCompile(`\*+`)
	whitespaceRegex = regexp.MustCompile(`\s+`)

	// Payment-method prefixes banks prepend to merchant descriptions.
	merchantPrefixes = []string{
		"CARD PAYMENT TO",
		"CARD PURCHASE AT",
		"DIRECT DEBIT TO",
		"DIRECT DEBIT",
		"STANDING ORDER TO",
		"RECURRING PAYMENT TO",
		"POS PURCHASE",
		"ACH DEBIT",
		"PAYMENT TO",
		"CHECKCARD",
	}

	domainSuffixRegex = regexp.MustCompile(`\.(?:COM|CO|NET|ORG|IO|TV|APP)\b`)
)

// subscriptionKeywords flag descriptions that are very likely streaming or
// membership subscriptions.
var subscriptionKeywords = []string{
	"NETFLIX", "SPOTIFY", "HULU", "DISNEY", "PRIME VIDEO", "AMAZON PRIME",
	"APPLE", "YOUTUBE", "HBO", "AUDIBLE", "PARAMOUNT", "PEACOCK",
	"CRUNCHYROLL", "PLAYSTATION", "XBOX", "NINTENDO", "TWITCH", "PATREON",
}

// NormalizeDescription reduces a raw bank description to a stable grouping
// key: date-like tokens, freestanding numbers, reference markers and
// asterisk runs are stripped, whitespace collapsed, and the result
// uppercased. Two transactions belong to the same group only when their
// normalized descriptions are exactly equal.
func NormalizeDescription(description string) string {
	normalized := strings.ToUpper(description)
	normalized = refMarkerRegex.ReplaceAllString(normalized, " ")
	normalized = dateTokenRegex.ReplaceAllString(normalized, " ")
	normalized = numberRegex.ReplaceAllString(normalized, " ")
	normalized = asteriskRegex.ReplaceAllString(normalized, " ")
	normalized = whitespaceRegex.ReplaceAllString(normalized, " ")
	return strings.TrimSpace(normalized)
}

// NormalizeMerchant is the subscription-tuned variant of
// NormalizeDescription: it additionally strips payment-method prefixes and
// domain suffixes so "CARD PAYMENT TO NETFLIX.COM" and "NETFLIX" collapse
// to the same merchant key.
func NormalizeMerchant(description string) string {
	normalized := strings.ToUpper(strings.TrimSpace(description))
	for _, prefix := range merchantPrefixes {
		if strings.HasPrefix(normalized, prefix) {
			normalized = strings.TrimSpace(strings.TrimPrefix(normalized, prefix))
			break
		}
	}
	normalized = domainSuffixRegex.ReplaceAllString(normalized, " ")
	return NormalizeDescription(normalized)
}

// HasSubscriptionKeyword reports whether a normalized description contains
// a known subscription merchant keyword.
func HasSubscriptionKeyword(normalizedDescription string) bool {
	for _, keyword := range subscriptionKeywords {
		if strings.Contains(normalizedDescription, keyword) {
			return true
		}
	}
	return false
}
