package domain_test

import (
	"testing"

	"github.com/ledgerline/budget-engine/internal/domain"
)

func TestClassify_SignThenMagnitude(t *testing.T) {
	cfg := domain.DefaultVarianceConfig()

	tests := []struct {
		percent float64
		want    domain.VarianceStatus
	}{
		{0, domain.VarianceFavorable},
		{5, domain.VarianceFavorable},
		{100, domain.VarianceFavorable},
		{-5, domain.VarianceMinor},
		{-10, domain.VarianceMinor},
		{-10.01, domain.VarianceModerate},
		{-25, domain.VarianceModerate},
		{-30, domain.VarianceSignificant},
		{-50, domain.VarianceSignificant},
		{-50.01, domain.VarianceCritical},
		{-200, domain.VarianceCritical},
	}
	for _, tt := range tests {
		if got := cfg.Classify(tt.percent); got != tt.want {
			t.Errorf("Classify(%v): expected %s, got %s", tt.percent, tt.want, got)
		}
	}
}

func TestClassify_CustomThresholds(t *testing.T) {
	cfg := domain.VarianceConfig{MinorThreshold: 2, ModerateThreshold: 5, SignificantThreshold: 8}

	if got := cfg.Classify(-3); got != domain.VarianceModerate {
		t.Errorf("expected moderate, got %s", got)
	}
	if got := cfg.Classify(-9); got != domain.VarianceCritical {
		t.Errorf("expected critical, got %s", got)
	}
}
