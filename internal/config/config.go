package config

import (
	_ "embed"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

//go:embed thresholds.yaml
var thresholdsYAML []byte

type Config struct {
	Templates TemplatesConfig
	Ledger    LedgerConfig
	Embedding EmbeddingConfig
	Liveness  LivenessConfig
	Thresholds
}

type TemplatesConfig struct {
	Path        string // path to the JSON template store
	PostgresURL string // optional PostgreSQL DSN; when set, templates live in Postgres instead of the file store
}

type LedgerConfig struct {
	Path string // path to the SQLite attendance database
}

type EmbeddingConfig struct {
	URL string // defaults to http://localhost:8000
	Dim int    // defaults to 512 (buffalo_l)
}

type LivenessConfig struct {
	URL string // anti-spoofing classifier; empty disables the liveness gate
}

// Thresholds holds the numeric knobs of the recognition pipeline.
// Defaults come from the embedded thresholds.yaml; individual values
// can be overridden through environment variables.
type Thresholds struct {
	Enrollment EnrollmentThresholds `yaml:"enrollment"`
	Matching   MatchingThresholds   `yaml:"matching"`
	LiveCheck  LivenessThresholds   `yaml:"liveness"`
	Attendance AttendanceThresholds `yaml:"attendance"`
}

type EnrollmentThresholds struct {
	MaxSamples          int     `yaml:"max_samples"`
	MinConfidence       float64 `yaml:"min_confidence"`
	MinSampleSimilarity float64 `yaml:"min_sample_similarity"`
	MaxOutlierDistance  float64 `yaml:"max_outlier_distance"`
	QualityReference    float64 `yaml:"quality_reference"`
}

type MatchingThresholds struct {
	Threshold float64 `yaml:"threshold"`
}

type LivenessThresholds struct {
	MinConfidence float64 `yaml:"min_confidence"`
}

type AttendanceThresholds struct {
	MarkCooldownSeconds int `yaml:"mark_cooldown_seconds"`
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envFloat reads an environment variable and parses it as a float.
// Returns the default value if the env var is unset, empty, or invalid.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return defaultVal
}

// envString reads an environment variable with a fallback default.
func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func Load() *Config {
	var thresholds Thresholds
	if err := yaml.Unmarshal(thresholdsYAML, &thresholds); err != nil {
		// This is an embedded file so this error should never happen in practice
		panic("failed to unmarshal embedded thresholds.yaml: " + err.Error())
	}

	// Env overrides for the embedded defaults.
	thresholds.Enrollment.MaxSamples = envInt("ENROLL_MAX_SAMPLES", thresholds.Enrollment.MaxSamples)
	thresholds.Enrollment.MinConfidence = envFloat("ENROLL_MIN_CONFIDENCE", thresholds.Enrollment.MinConfidence)
	thresholds.Enrollment.MinSampleSimilarity = envFloat("ENROLL_MIN_SAMPLE_SIMILARITY", thresholds.Enrollment.MinSampleSimilarity)
	thresholds.Enrollment.MaxOutlierDistance = envFloat("ENROLL_MAX_OUTLIER_DISTANCE", thresholds.Enrollment.MaxOutlierDistance)
	thresholds.Enrollment.QualityReference = envFloat("ENROLL_QUALITY_REFERENCE", thresholds.Enrollment.QualityReference)
	thresholds.Matching.Threshold = envFloat("MATCH_THRESHOLD", thresholds.Matching.Threshold)
	thresholds.LiveCheck.MinConfidence = envFloat("LIVENESS_MIN_CONFIDENCE", thresholds.LiveCheck.MinConfidence)
	thresholds.Attendance.MarkCooldownSeconds = envInt("MARK_COOLDOWN_SECONDS", thresholds.Attendance.MarkCooldownSeconds)

	return &Config{
		Templates: TemplatesConfig{
			Path:        envString("TEMPLATE_STORE_PATH", "data/templates.json"),
			PostgresURL: os.Getenv("TEMPLATE_POSTGRES_URL"),
		},
		Ledger: LedgerConfig{
			Path: envString("ATTENDANCE_DB_PATH", "data/attendance.db"),
		},
		Embedding: EmbeddingConfig{
			URL: envString("EMBEDDING_URL", "http://localhost:8000"),
			Dim: envInt("EMBEDDING_DIM", 512),
		},
		Liveness: LivenessConfig{
			URL: os.Getenv("LIVENESS_URL"),
		},
		Thresholds: thresholds,
	}
}
