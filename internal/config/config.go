package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	CORS     CORSConfig
	Pipeline PipelineConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port string
	Env  string
}

// DatabaseConfig holds PostgreSQL connection configuration.
type DatabaseConfig struct {
	Host     string
	Port     string
	Name     string
	User     string
	Password string
	PoolMin  int
	PoolMax  int
}

// CORSConfig holds CORS configuration.
type CORSConfig struct {
	Origins []string
}

// PipelineConfig holds the tunable thresholds of the detection, comparison
// and compliance pipeline. Defaults are the values tuned against real areas;
// override individual knobs via environment variables.
type PipelineConfig struct {
	MinParcelAreaSqm   float64
	SimplifyToleranceM float64

	OverlapMergeThreshold float64
	ContainmentThreshold  float64
	ClusterProximityDeg   float64
	ClusterSizeCutoffSqm  float64

	EnableNoiseFilter   bool
	NoiseMinCompactness float64
	NoiseMinAreaSqm     float64
	NoiseMaxAspectRatio float64

	InjectCoverageThreshold  float64
	PromptCoverageThreshold  float64
	PromptedOverlapThreshold float64
	DropUnmatchedDetected    bool

	GreenExGThreshold         float64
	GreenCoverMinPct          float64
	ConstructionDeadlineYears int
}

// Load reads configuration from environment variables.
// It uses viper to read values and provides sensible defaults for development.
func Load() (*Config, error) {
	v := viper.New()

	v.SetDefault("PORT", "8080")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_NAME", "plotsight")
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_POOL_MIN", 2)
	v.SetDefault("DB_POOL_MAX", 10)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000,http://localhost:3001")

	v.SetDefault("MIN_PARCEL_AREA_SQM", 10.0)
	v.SetDefault("SIMPLIFY_TOLERANCE_M", 3.0)
	v.SetDefault("OVERLAP_MERGE_THRESHOLD", 0.30)
	v.SetDefault("CONTAINMENT_THRESHOLD", 0.35)
	v.SetDefault("CLUSTER_PROXIMITY_DEG", 0.0003)
	v.SetDefault("CLUSTER_SIZE_CUTOFF_SQM", 2000.0)
	v.SetDefault("ENABLE_NOISE_FILTER", true)
	v.SetDefault("NOISE_MIN_COMPACTNESS", 0.08)
	v.SetDefault("NOISE_MIN_AREA_SQM", 80.0)
	v.SetDefault("NOISE_MAX_ASPECT_RATIO", 12.0)
	v.SetDefault("INJECT_COVERAGE_THRESHOLD", 0.25)
	v.SetDefault("PROMPT_COVERAGE_THRESHOLD", 0.30)
	v.SetDefault("PROMPTED_OVERLAP_THRESHOLD", 0.60)
	v.SetDefault("DROP_UNMATCHED_DETECTED", false)
	v.SetDefault("GREEN_EXG_THRESHOLD", 0.08)
	v.SetDefault("GREEN_COVER_MIN_PCT", 20.0)
	v.SetDefault("CONSTRUCTION_DEADLINE_YEARS", 2)

	v.AutomaticEnv()

	cfg := &Config{
		Server: ServerConfig{
			Port: v.GetString("PORT"),
			Env:  v.GetString("ENV"),
		},
		Database: DatabaseConfig{
			Host:     v.GetString("DB_HOST"),
			Port:     v.GetString("DB_PORT"),
			Name:     v.GetString("DB_NAME"),
			User:     v.GetString("DB_USER"),
			Password: v.GetString("DB_PASSWORD"),
			PoolMin:  v.GetInt("DB_POOL_MIN"),
			PoolMax:  v.GetInt("DB_POOL_MAX"),
		},
		CORS: CORSConfig{
			Origins: parseOrigins(v.GetString("CORS_ORIGINS")),
		},
		Pipeline: PipelineConfig{
			MinParcelAreaSqm:         v.GetFloat64("MIN_PARCEL_AREA_SQM"),
			SimplifyToleranceM:       v.GetFloat64("SIMPLIFY_TOLERANCE_M"),
			OverlapMergeThreshold:    v.GetFloat64("OVERLAP_MERGE_THRESHOLD"),
			ContainmentThreshold:     v.GetFloat64("CONTAINMENT_THRESHOLD"),
			ClusterProximityDeg:      v.GetFloat64("CLUSTER_PROXIMITY_DEG"),
			ClusterSizeCutoffSqm:     v.GetFloat64("CLUSTER_SIZE_CUTOFF_SQM"),
			EnableNoiseFilter:        v.GetBool("ENABLE_NOISE_FILTER"),
			NoiseMinCompactness:      v.GetFloat64("NOISE_MIN_COMPACTNESS"),
			NoiseMinAreaSqm:          v.GetFloat64("NOISE_MIN_AREA_SQM"),
			NoiseMaxAspectRatio:      v.GetFloat64("NOISE_MAX_ASPECT_RATIO"),
			InjectCoverageThreshold:  v.GetFloat64("INJECT_COVERAGE_THRESHOLD"),
			PromptCoverageThreshold:  v.GetFloat64("PROMPT_COVERAGE_THRESHOLD"),
			PromptedOverlapThreshold: v.GetFloat64("PROMPTED_OVERLAP_THRESHOLD"),
			DropUnmatchedDetected:    v.GetBool("DROP_UNMATCHED_DETECTED"),

			GreenExGThreshold:         v.GetFloat64("GREEN_EXG_THRESHOLD"),
			GreenCoverMinPct:          v.GetFloat64("GREEN_COVER_MIN_PCT"),
			ConstructionDeadlineYears: v.GetInt("CONSTRUCTION_DEADLINE_YEARS"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that required configuration is present and valid.
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("PORT is required")
	}

	if c.Database.Host == "" {
		return fmt.Errorf("DB_HOST is required")
	}
	if c.Database.Port == "" {
		return fmt.Errorf("DB_PORT is required")
	}
	if c.Database.Name == "" {
		return fmt.Errorf("DB_NAME is required")
	}
	if c.Database.User == "" {
		return fmt.Errorf("DB_USER is required")
	}
	if c.Database.Password == "" {
		return fmt.Errorf("DB_PASSWORD is required")
	}
	if c.Database.PoolMin < 0 {
		return fmt.Errorf("DB_POOL_MIN must be non-negative")
	}
	if c.Database.PoolMax < 1 {
		return fmt.Errorf("DB_POOL_MAX must be at least 1")
	}
	if c.Database.PoolMin > c.Database.PoolMax {
		return fmt.Errorf("DB_POOL_MIN must be less than or equal to DB_POOL_MAX")
	}

	if len(c.CORS.Origins) == 0 {
		return fmt.Errorf("CORS_ORIGINS is required")
	}

	return c.Pipeline.Validate()
}

// Validate checks the pipeline thresholds for sane values.
func (p PipelineConfig) Validate() error {
	if p.MinParcelAreaSqm <= 0 {
		return fmt.Errorf("MIN_PARCEL_AREA_SQM must be positive")
	}
	if p.SimplifyToleranceM <= 0 {
		return fmt.Errorf("SIMPLIFY_TOLERANCE_M must be positive")
	}
	ratios := map[string]float64{
		"OVERLAP_MERGE_THRESHOLD":    p.OverlapMergeThreshold,
		"CONTAINMENT_THRESHOLD":      p.ContainmentThreshold,
		"NOISE_MIN_COMPACTNESS":      p.NoiseMinCompactness,
		"INJECT_COVERAGE_THRESHOLD":  p.InjectCoverageThreshold,
		"PROMPT_COVERAGE_THRESHOLD":  p.PromptCoverageThreshold,
		"PROMPTED_OVERLAP_THRESHOLD": p.PromptedOverlapThreshold,
		"GREEN_EXG_THRESHOLD":        p.GreenExGThreshold,
	}
	for name, value := range ratios {
		if value <= 0 || value >= 1 {
			return fmt.Errorf("%s must be between 0 and 1 exclusive", name)
		}
	}
	if p.ClusterProximityDeg <= 0 {
		return fmt.Errorf("CLUSTER_PROXIMITY_DEG must be positive")
	}
	if p.ClusterSizeCutoffSqm <= 0 {
		return fmt.Errorf("CLUSTER_SIZE_CUTOFF_SQM must be positive")
	}
	if p.NoiseMinAreaSqm <= 0 {
		return fmt.Errorf("NOISE_MIN_AREA_SQM must be positive")
	}
	if p.NoiseMaxAspectRatio <= 1 {
		return fmt.Errorf("NOISE_MAX_ASPECT_RATIO must be greater than 1")
	}
	if p.GreenCoverMinPct <= 0 || p.GreenCoverMinPct > 100 {
		return fmt.Errorf("GREEN_COVER_MIN_PCT must be between 0 and 100")
	}
	if p.ConstructionDeadlineYears < 1 {
		return fmt.Errorf("CONSTRUCTION_DEADLINE_YEARS must be at least 1")
	}
	return nil
}

// parseOrigins splits a comma-separated string of origins into a slice.
func parseOrigins(origins string) []string {
	if origins == "" {
		return []string{}
	}

	parts := strings.Split(origins, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
