// Package cfg loads and validates engine configuration from a YAML file
// (selected by CONFIG_FILE) with environment-variable overrides, falling back
// to environment variables alone.
package cfg

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Settings is the resolved configuration surface consumed by the engine.
type Settings struct {
	// Ensemble
	EnsembleSize int
	ClassCount   int
	FeatureCount int
	WorkerPool   int
	WeightedVote bool

	// Member lifecycle
	UseBackground     bool
	UseDriftDetector  bool
	UseRecurring      bool
	DecisionMechanism int
	WarningTimeout    int

	// Dynamic window
	WindowDefaultSize int
	WindowMinSize     int
	WindowIncrement   int
	ResizePolicy      int
	DecisionThreshold float64
	RememberSize      bool

	// Detectors
	WarningLevel float64
	DriftLevel   float64

	// Topology grouping
	UseGrouping bool
	GroupRadius float64

	// Stream source: synthetic, csv, http, or ws
	StreamSource string
	StreamPath   string
	StreamURL    string

	// System
	DataPath    string
	MetricsPort int
}

// ConfigFile mirrors the YAML layout.
type ConfigFile struct {
	Ensemble struct {
		Size         int  `yaml:"size"`
		ClassCount   int  `yaml:"classCount"`
		FeatureCount int  `yaml:"featureCount"`
		WorkerPool   int  `yaml:"workerPool"`
		WeightedVote bool `yaml:"weightedVote"`
	} `yaml:"ensemble"`

	Lifecycle struct {
		UseBackground     bool `yaml:"useBackground"`
		UseDriftDetector  bool `yaml:"useDriftDetector"`
		UseRecurring      bool `yaml:"useRecurring"`
		DecisionMechanism int  `yaml:"decisionMechanism"`
		WarningTimeout    int  `yaml:"warningTimeout"`
	} `yaml:"lifecycle"`

	Window struct {
		DefaultSize       int     `yaml:"defaultSize"`
		MinSize           int     `yaml:"minSize"`
		Increment         int     `yaml:"increment"`
		ResizePolicy      int     `yaml:"resizePolicy"`
		DecisionThreshold float64 `yaml:"decisionThreshold"`
		RememberSize      bool    `yaml:"rememberSize"`
	} `yaml:"window"`

	Detectors struct {
		WarningLevel float64 `yaml:"warningLevel"`
		DriftLevel   float64 `yaml:"driftLevel"`
	} `yaml:"detectors"`

	Topology struct {
		Enabled bool    `yaml:"enabled"`
		Radius  float64 `yaml:"radius"`
	} `yaml:"topology"`

	Stream struct {
		Source string `yaml:"source"`
		Path   string `yaml:"path"`
		URL    string `yaml:"url"`
	} `yaml:"stream"`

	System struct {
		DataPath    string `yaml:"dataPath"`
		MetricsPort int    `yaml:"metricsPort"`
	} `yaml:"system"`
}

// Load resolves settings from CONFIG_FILE or the environment, validating
// them once. Invalid configuration is fatal here and nowhere else.
func Load() (Settings, error) {
	_ = godotenv.Load() // .env is optional

	if configPath := os.Getenv("CONFIG_FILE"); configPath != "" {
		return loadFromYAML(configPath)
	}
	return loadFromEnv()
}

func loadFromYAML(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var config ConfigFile
	if err := yaml.Unmarshal(data, &config); err != nil {
		return Settings{}, fmt.Errorf("failed to parse config file: %w", err)
	}

	settings := Settings{
		EnsembleSize:      getIntFromEnvOrConfig("ENSEMBLE_SIZE", config.Ensemble.Size, 10),
		ClassCount:        getIntFromEnvOrConfig("CLASS_COUNT", config.Ensemble.ClassCount, 2),
		FeatureCount:      getIntFromEnvOrConfig("FEATURE_COUNT", config.Ensemble.FeatureCount, 3),
		WorkerPool:        getIntFromEnvOrConfig("WORKER_POOL", config.Ensemble.WorkerPool, 1),
		WeightedVote:      getBoolFromEnvOrConfig("WEIGHTED_VOTE", config.Ensemble.WeightedVote),
		UseBackground:     getBoolFromEnvOrConfig("USE_BACKGROUND", config.Lifecycle.UseBackground),
		UseDriftDetector:  getBoolFromEnvOrConfig("USE_DRIFT_DETECTOR", config.Lifecycle.UseDriftDetector),
		UseRecurring:      getBoolFromEnvOrConfig("USE_RECURRING", config.Lifecycle.UseRecurring),
		DecisionMechanism: getIntFromEnvOrConfig("DECISION_MECHANISM", config.Lifecycle.DecisionMechanism, 0),
		WarningTimeout:    getIntFromEnvOrConfig("WARNING_TIMEOUT", config.Lifecycle.WarningTimeout, 500),
		WindowDefaultSize: getIntFromEnvOrConfig("WINDOW_DEFAULT_SIZE", config.Window.DefaultSize, 50),
		WindowMinSize:     getIntFromEnvOrConfig("WINDOW_MIN_SIZE", config.Window.MinSize, 10),
		WindowIncrement:   getIntFromEnvOrConfig("WINDOW_INCREMENT", config.Window.Increment, 1),
		ResizePolicy:      getIntFromEnvOrConfig("RESIZE_POLICY", config.Window.ResizePolicy, 1),
		DecisionThreshold: getFloatFromEnvOrConfig("DECISION_THRESHOLD", config.Window.DecisionThreshold, -1),
		RememberSize:      getBoolFromEnvOrConfig("REMEMBER_SIZE", config.Window.RememberSize),
		WarningLevel:      getFloatFromEnvOrConfig("WARNING_LEVEL", config.Detectors.WarningLevel, 2.0),
		DriftLevel:        getFloatFromEnvOrConfig("DRIFT_LEVEL", config.Detectors.DriftLevel, 3.0),
		UseGrouping:       getBoolFromEnvOrConfig("USE_GROUPING", config.Topology.Enabled),
		GroupRadius:       getFloatFromEnvOrConfig("GROUP_RADIUS", config.Topology.Radius, 1.0),
		StreamSource:      getEnvOrDefault("STREAM_SOURCE", defaultString(config.Stream.Source, "synthetic")),
		StreamPath:        getEnvOrDefault("STREAM_PATH", config.Stream.Path),
		StreamURL:         getEnvOrDefault("STREAM_URL", config.Stream.URL),
		DataPath:          getEnvOrDefault("DATA_PATH", config.System.DataPath),
		MetricsPort:       getIntFromEnvOrConfig("METRICS_PORT", config.System.MetricsPort, 8080),
	}

	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}
	return settings, nil
}

func loadFromEnv() (Settings, error) {
	settings := Settings{
		EnsembleSize:      getIntOrDefault("ENSEMBLE_SIZE", 10),
		ClassCount:        getIntOrDefault("CLASS_COUNT", 2),
		FeatureCount:      getIntOrDefault("FEATURE_COUNT", 3),
		WorkerPool:        getIntOrDefault("WORKER_POOL", 1),
		WeightedVote:      getBoolOrDefault("WEIGHTED_VOTE", true),
		UseBackground:     getBoolOrDefault("USE_BACKGROUND", true),
		UseDriftDetector:  getBoolOrDefault("USE_DRIFT_DETECTOR", true),
		UseRecurring:      getBoolOrDefault("USE_RECURRING", true),
		DecisionMechanism: getIntOrDefault("DECISION_MECHANISM", 0),
		WarningTimeout:    getIntOrDefault("WARNING_TIMEOUT", 500),
		WindowDefaultSize: getIntOrDefault("WINDOW_DEFAULT_SIZE", 50),
		WindowMinSize:     getIntOrDefault("WINDOW_MIN_SIZE", 10),
		WindowIncrement:   getIntOrDefault("WINDOW_INCREMENT", 1),
		ResizePolicy:      getIntOrDefault("RESIZE_POLICY", 1),
		DecisionThreshold: getFloatOrDefault("DECISION_THRESHOLD", -1),
		RememberSize:      getBoolOrDefault("REMEMBER_SIZE", true),
		WarningLevel:      getFloatOrDefault("WARNING_LEVEL", 2.0),
		DriftLevel:        getFloatOrDefault("DRIFT_LEVEL", 3.0),
		UseGrouping:       getBoolOrDefault("USE_GROUPING", false),
		GroupRadius:       getFloatOrDefault("GROUP_RADIUS", 1.0),
		StreamSource:      getEnvOrDefault("STREAM_SOURCE", "synthetic"),
		StreamPath:        os.Getenv("STREAM_PATH"),
		StreamURL:         os.Getenv("STREAM_URL"),
		DataPath:          os.Getenv("DATA_PATH"), // optional
		MetricsPort:       getIntOrDefault("METRICS_PORT", 8080),
	}

	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}
	return settings, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func defaultString(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func getIntOrDefault(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultValue
}

func getFloatOrDefault(key string, defaultValue float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getBoolOrDefault(key string, defaultValue bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultValue
}

func getIntFromEnvOrConfig(key string, configValue, defaultValue int) int {
	if env := os.Getenv(key); env != "" {
		if val, err := strconv.Atoi(env); err == nil {
			return val
		}
	}
	if configValue != 0 {
		return configValue
	}
	return defaultValue
}

func getFloatFromEnvOrConfig(key string, configValue, defaultValue float64) float64 {
	if env := os.Getenv(key); env != "" {
		if val, err := strconv.ParseFloat(env, 64); err == nil {
			return val
		}
	}
	if configValue != 0 {
		return configValue
	}
	return defaultValue
}

func getBoolFromEnvOrConfig(key string, configValue bool) bool {
	if env := os.Getenv(key); env != "" {
		if val, err := strconv.ParseBool(env); err == nil {
			return val
		}
	}
	return configValue
}

// validateSettings performs comprehensive validation of configuration values.
func validateSettings(settings *Settings) error {
	if settings.EnsembleSize < 1 || settings.EnsembleSize > 500 {
		return fmt.Errorf("ensemble size must be between 1 and 500, got %d", settings.EnsembleSize)
	}
	if settings.ClassCount < 2 {
		return fmt.Errorf("class count must be at least 2, got %d", settings.ClassCount)
	}
	if settings.FeatureCount < 1 {
		return fmt.Errorf("feature count must be at least 1, got %d", settings.FeatureCount)
	}
	if settings.WorkerPool < 0 {
		return fmt.Errorf("worker pool size must not be negative, got %d", settings.WorkerPool)
	}
	if settings.DecisionMechanism < 0 || settings.DecisionMechanism > 2 {
		return fmt.Errorf("decision mechanism must be 0, 1 or 2, got %d", settings.DecisionMechanism)
	}
	if settings.WarningTimeout < 0 {
		return fmt.Errorf("warning timeout must not be negative, got %d", settings.WarningTimeout)
	}
	if settings.WindowMinSize < 1 {
		return fmt.Errorf("window min size must be at least 1, got %d", settings.WindowMinSize)
	}
	if settings.WindowDefaultSize < settings.WindowMinSize {
		return fmt.Errorf("window default size %d must not be below min size %d", settings.WindowDefaultSize, settings.WindowMinSize)
	}
	if settings.WindowIncrement < 1 {
		return fmt.Errorf("window increment must be at least 1, got %d", settings.WindowIncrement)
	}
	if settings.ResizePolicy < 0 || settings.ResizePolicy > 2 {
		return fmt.Errorf("resize policy must be 0, 1 or 2, got %d", settings.ResizePolicy)
	}
	if settings.WarningLevel <= 0 || settings.DriftLevel <= 0 {
		return fmt.Errorf("detector levels must be positive, got warning=%f drift=%f", settings.WarningLevel, settings.DriftLevel)
	}
	if settings.WarningLevel >= settings.DriftLevel {
		return fmt.Errorf("warning level %f must be below drift level %f", settings.WarningLevel, settings.DriftLevel)
	}
	if settings.UseGrouping && settings.GroupRadius <= 0 {
		return fmt.Errorf("group radius must be positive when grouping is enabled, got %f", settings.GroupRadius)
	}
	switch settings.StreamSource {
	case "synthetic":
	case "csv":
		if settings.StreamPath == "" {
			return fmt.Errorf("stream source csv requires a stream path")
		}
	case "http":
		if settings.StreamURL == "" {
			return fmt.Errorf("stream source http requires a stream URL")
		}
	case "ws":
		if settings.StreamURL == "" {
			return fmt.Errorf("stream source ws requires a stream URL")
		}
	default:
		return fmt.Errorf("unknown stream source %q", settings.StreamSource)
	}
	if settings.MetricsPort < 1024 || settings.MetricsPort > 65535 {
		return fmt.Errorf("metrics port must be between 1024 and 65535, got %d", settings.MetricsPort)
	}
	return nil
}
