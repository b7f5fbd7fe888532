package config

import (
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the overall application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Analysis  AnalysisConfig  `yaml:"analysis"`
	Retention RetentionConfig `yaml:"retention"`
}

// ServerConfig holds the server-related configuration.
type ServerConfig struct {
	Port            int     `yaml:"port"`
	RequestIPHeader string  `yaml:"request_ip_header"`
	RateLimitPerSec float64 `yaml:"rate_limit_per_sec"`
	RateLimitBurst  int     `yaml:"rate_limit_burst"`
	CacheTTLSeconds int     `yaml:"cache_ttl_seconds"`
}

// DatabaseConfig holds the database connection configuration.
type DatabaseConfig struct {
	DSN                    string `yaml:"dsn"`
	MaxOpenConns           int    `yaml:"max_open_conns"`
	MaxIdleConns           int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes"`
	EnableTimescale        bool   `yaml:"enable_timescale"`
}

// AnalysisConfig holds the windowing, feature-extraction and scoring parameters.
type AnalysisConfig struct {
	WindowSeconds      int           `yaml:"window_seconds"`
	Window             time.Duration `yaml:"-"` // Ignored by YAML parser
	GraceSeconds       int           `yaml:"grace_seconds"`
	Grace              time.Duration `yaml:"-"`
	MinSamples         int           `yaml:"min_samples"`
	SamplingRate       float64       `yaml:"sampling_rate"`
	BandLowHz          float64       `yaml:"band_low_hz"`
	BandHighHz         float64       `yaml:"band_high_hz"`
	TremorBandLowHz    float64       `yaml:"tremor_band_low_hz"`
	TremorBandHighHz   float64       `yaml:"tremor_band_high_hz"`
	ClipLimit          float64       `yaml:"clip_limit"`
	MaxAxisValue       float64       `yaml:"max_axis_value"`
	PersistWorkers     int           `yaml:"persist_workers"`
	PersistMaxAttempts int           `yaml:"persist_max_attempts"`
	Scoring            ScoringConfig `yaml:"scoring"`
}

// ScoringConfig is the tremor-index scoring policy. The spectral ratio is
// weighted more heavily than raw amplitude, since amplitude alone conflates
// voluntary motion with pathological tremor.
type ScoringConfig struct {
	SpectralWeight       float64 `yaml:"spectral_weight"`
	AmplitudeWeight      float64 `yaml:"amplitude_weight"`
	RMSScale             float64 `yaml:"rms_scale"`
	ParkinsonianBandLow  float64 `yaml:"parkinsonian_band_low_hz"`
	ParkinsonianBandHigh float64 `yaml:"parkinsonian_band_high_hz"`
	ParkinsonianMinIndex float64 `yaml:"parkinsonian_min_index"`
}

// RetentionConfig controls the TTL purge of analysis records.
type RetentionConfig struct {
	AnalysisTTLDays      int           `yaml:"analysis_ttl_days"`
	AnalysisTTL          time.Duration `yaml:"-"`
	PurgeIntervalMinutes int           `yaml:"purge_interval_minutes"`
	PurgeInterval        time.Duration `yaml:"-"`
}

// Load reads the configuration from the given path.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, err
	}

	cfg.ApplyDefaults()
	return &cfg, nil
}

// ApplyDefaults fills unset fields with working defaults and derives the
// time.Duration fields. Exposed so tests can build configs without a file.
func (cfg *Config) ApplyDefaults() {
	if cfg.Server.RateLimitPerSec <= 0 {
		cfg.Server.RateLimitPerSec = 10
	}
	if cfg.Server.RateLimitBurst <= 0 {
		cfg.Server.RateLimitBurst = 20
	}
	if cfg.Server.CacheTTLSeconds <= 0 {
		cfg.Server.CacheTTLSeconds = 5
	}

	a := &cfg.Analysis
	if a.WindowSeconds <= 0 {
		a.WindowSeconds = 5
	}
	a.Window = time.Duration(a.WindowSeconds) * time.Second
	if a.GraceSeconds <= 0 {
		a.GraceSeconds = 3
	}
	a.Grace = time.Duration(a.GraceSeconds) * time.Second
	if a.MinSamples <= 0 {
		a.MinSamples = 50
	}
	if a.SamplingRate <= 0 {
		a.SamplingRate = 100
	}
	if a.BandLowHz <= 0 {
		a.BandLowHz = 0.5
	}
	if a.BandHighHz <= 0 {
		a.BandHighHz = 20
	}
	if a.TremorBandLowHz <= 0 {
		a.TremorBandLowHz = 3
	}
	if a.TremorBandHighHz <= 0 {
		a.TremorBandHighHz = 8
	}
	if a.ClipLimit <= 0 {
		a.ClipLimit = 16
	}
	if a.MaxAxisValue <= 0 {
		a.MaxAxisValue = 32
	}
	if a.PersistWorkers <= 0 {
		log.Printf("analysis.persist_workers is not set or invalid; defaulting to 2")
		a.PersistWorkers = 2
	}
	if a.PersistMaxAttempts <= 0 {
		a.PersistMaxAttempts = 3
	}

	s := &a.Scoring
	if s.SpectralWeight <= 0 {
		s.SpectralWeight = 0.7
	}
	if s.AmplitudeWeight <= 0 {
		s.AmplitudeWeight = 0.3
	}
	if s.RMSScale <= 0 {
		s.RMSScale = 2.0
	}
	if s.ParkinsonianBandLow <= 0 {
		s.ParkinsonianBandLow = 4
	}
	if s.ParkinsonianBandHigh <= 0 {
		s.ParkinsonianBandHigh = 6
	}
	if s.ParkinsonianMinIndex <= 0 {
		s.ParkinsonianMinIndex = 0.3
	}

	r := &cfg.Retention
	if r.AnalysisTTLDays <= 0 {
		r.AnalysisTTLDays = 90
	}
	r.AnalysisTTL = time.Duration(r.AnalysisTTLDays) * 24 * time.Hour
	if r.PurgeIntervalMinutes <= 0 {
		r.PurgeIntervalMinutes = 60
	}
	r.PurgeInterval = time.Duration(r.PurgeIntervalMinutes) * time.Minute
}
