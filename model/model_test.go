package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRound2(t *testing.T) {
	assert.Equal(t, 0.3, Round2(0.1+0.2))
	assert.Equal(t, 10.12, Round2(10.115))
	assert.Equal(t, -10.12, Round2(-10.115))
	assert.Equal(t, 100.0, Round2(99.999))
	assert.Equal(t, 0.0, Round2(0))
}

func TestMean(t *testing.T) {
	assert.Equal(t, 0.0, Mean(nil))
	assert.Equal(t, 5.0, Mean([]float64{5}))
	assert.Equal(t, 20.0, Mean([]float64{10, 20, 30}))
}

func TestStdDev(t *testing.T) {
	assert.Equal(t, 0.0, StdDev([]float64{42}))
	assert.Equal(t, 0.0, StdDev([]float64{5, 5, 5}))
	assert.InDelta(t, 2.0, StdDev([]float64{2, 4, 4, 4, 5, 5, 7, 9}), 1e-9)
}

func TestCoefficientOfVariation(t *testing.T) {
	assert.Equal(t, 0.0, CoefficientOfVariation([]float64{100}))
	assert.Equal(t, 0.0, CoefficientOfVariation([]float64{-5, 5}))
	assert.Equal(t, 0.0, CoefficientOfVariation([]float64{10, 10, 10}))

	// 9.99 vs 10.49 stays comfortably under a 10% variance gate while
	// 10 vs 50 vs 100 blows past it.
	assert.Less(t, CoefficientOfVariation([]float64{9.99, 9.99, 10.49}), 10.0)
	assert.Greater(t, CoefficientOfVariation([]float64{10, 50, 100}), 10.0)
}

func TestClassifyFrequency(t *testing.T) {
	tests := []struct {
		interval float64
		want     Frequency
		ok       bool
	}{
		{4, FrequencyWeekly, true},
		{7, FrequencyWeekly, true},
		{10, FrequencyWeekly, true},
		{10.5, "", false},
		{11, FrequencyFortnightly, true},
		{14, FrequencyFortnightly, true},
		{18, FrequencyFortnightly, true},
		{21, "", false},
		{25, FrequencyMonthly, true},
		{30.4, FrequencyMonthly, true},
		{35, FrequencyMonthly, true},
		{50, "", false},
		{80, FrequencyQuarterly, true},
		{91, FrequencyQuarterly, true},
		{100, FrequencyQuarterly, true},
		{200, "", false},
		{350, FrequencyYearly, true},
		{365, FrequencyYearly, true},
		{380, FrequencyYearly, true},
		{400, "", false},
		{2, "", false},
	}

	for _, tt := range tests {
		frequency, ok := ClassifyFrequency(tt.interval)
		assert.Equal(t, tt.ok, ok, "interval %v", tt.interval)
		assert.Equal(t, tt.want, frequency, "interval %v", tt.interval)
	}
}

func TestExpectedIntervalDays(t *testing.T) {
	assert.Equal(t, 7.0, ExpectedIntervalDays(FrequencyWeekly))
	assert.Equal(t, 14.0, ExpectedIntervalDays(FrequencyFortnightly))
	assert.Equal(t, 30.0, ExpectedIntervalDays(FrequencyMonthly))
	assert.Equal(t, 91.0, ExpectedIntervalDays(FrequencyQuarterly))
	assert.Equal(t, 365.0, ExpectedIntervalDays(FrequencyYearly))
	assert.Equal(t, 0.0, ExpectedIntervalDays("hourly"))
}

func TestNormalizeDescription(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"NETFLIX.COM 01/15", "NETFLIX.COM"},
		{"netflix.com 02/15", "NETFLIX.COM"},
		{"POS PURCHASE REF#48213 STARBUCKS", "POS PURCHASE STARBUCKS"},
		{"AMAZON*MARKETPLACE 4421", "AMAZON MARKETPLACE"},
		{"PAYMENT   2024-01-03   RENT", "PAYMENT RENT"},
		{"TXN 12345 GYM", "GYM"},
		{"", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeDescription(tt.in), "input %q", tt.in)
	}
}

func TestNormalizeDescriptionGroupsVariants(t *testing.T) {
	a := NormalizeDescription("NETFLIX.COM 01/15")
	b := NormalizeDescription("NETFLIX.COM 02/15")
	c := NormalizeDescription("NETFLIX.COM REF 99812")
	assert.Equal(t, a, b)
	assert.Equal(t, b, c)
}

func TestNormalizeMerchant(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"CARD PAYMENT TO NETFLIX.COM", "NETFLIX"},
		{"NETFLIX", "NETFLIX"},
		{"DIRECT DEBIT TO SPOTIFY.COM 4412", "SPOTIFY"},
		{"card payment to hulu.com", "HULU"},
		{"STANDING ORDER TO LANDLORD PROPERTIES", "LANDLORD PROPERTIES"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeMerchant(tt.in), "input %q", tt.in)
	}
}

func TestHasSubscriptionKeyword(t *testing.T) {
	assert.True(t, HasSubscriptionKeyword("NETFLIX.COM"))
	assert.True(t, HasSubscriptionKeyword("SPOTIFY PREMIUM"))
	assert.False(t, HasSubscriptionKeyword("CITY WATER BILL"))
}

func TestGenerateUUIDWithSuffix(t *testing.T) {
	id := GenerateUUIDWithSuffix("ptrn")
	assert.Contains(t, id, "ptrn_")
	assert.NotEqual(t, id, GenerateUUIDWithSuffix("ptrn"))
}
