package config

import (
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if cfg.Enrollment.MaxSamples != 15 {
		t.Errorf("expected default max samples 15, got %d", cfg.Enrollment.MaxSamples)
	}
	if cfg.Enrollment.MinConfidence != 0.60 {
		t.Errorf("expected default min confidence 0.60, got %f", cfg.Enrollment.MinConfidence)
	}
	if cfg.Enrollment.MinSampleSimilarity != 0.90 {
		t.Errorf("expected default sample similarity 0.90, got %f", cfg.Enrollment.MinSampleSimilarity)
	}
	if cfg.Enrollment.MaxOutlierDistance != 0.40 {
		t.Errorf("expected default outlier distance 0.40, got %f", cfg.Enrollment.MaxOutlierDistance)
	}
	if cfg.Matching.Threshold != 0.45 {
		t.Errorf("expected default match threshold 0.45, got %f", cfg.Matching.Threshold)
	}
	if cfg.Embedding.Dim != 512 {
		t.Errorf("expected default embedding dim 512, got %d", cfg.Embedding.Dim)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("ENROLL_MAX_SAMPLES", "7")
	t.Setenv("ENROLL_QUALITY_REFERENCE", "0.25")
	t.Setenv("MATCH_THRESHOLD", "0.55")
	t.Setenv("TEMPLATE_STORE_PATH", "/tmp/t.json")

	cfg := Load()

	if cfg.Enrollment.MaxSamples != 7 {
		t.Errorf("expected max samples 7, got %d", cfg.Enrollment.MaxSamples)
	}
	if cfg.Enrollment.QualityReference != 0.25 {
		t.Errorf("expected quality reference 0.25, got %f", cfg.Enrollment.QualityReference)
	}
	if cfg.Matching.Threshold != 0.55 {
		t.Errorf("expected match threshold 0.55, got %f", cfg.Matching.Threshold)
	}
	if cfg.Templates.Path != "/tmp/t.json" {
		t.Errorf("expected template path override, got %q", cfg.Templates.Path)
	}
}

func TestEnvIntInvalid(t *testing.T) {
	tests := []struct {
		value    string
		expected int
	}{
		{"", 15},
		{"abc", 15},
		{"-3", 15},
		{"0", 15},
		{"20", 20},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			t.Setenv("ENROLL_MAX_SAMPLES", tt.value)
			if got := envInt("ENROLL_MAX_SAMPLES", 15); got != tt.expected {
				t.Errorf("envInt(%q) = %d, want %d", tt.value, got, tt.expected)
			}
		})
	}
}
