package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

var defaults = map[string]any{
	"port":                       4002,
	"log.level":                  "info",
	"log.format":                 "json",
	"postgres.dsn":               "",
	"redis.addr":                 "",
	"redis.password":             "",
	"redis.db":                   0,
	"aws.region":                 "us-east-1",
	"aws.bucket":                 "",
	"aws.endpoint":               "",
	"aws.folder":                 "property-images",
	"attom.api_key":              "",
	"attom.base_url":             "https://api.gateway.attomdata.com",
	"attom.rps":                  2.0,
	"melissa.api_key":            "",
	"melissa.base_url":           "https://address.melissadata.net",
	"llm.url":                    "",
	"llm.key":                    "",
	"vision.mode":                "simulated",
	"vision.simulated_latency":   "0s",
	"property.cache_ttl":         "24h",
	"property.stale_after":       "6h",
	"property.negative_ttl":      "10m",
	"property.refresh_workers":   2,
	"tenant.cache_ttl":           "5m",
	"events.kafka_brokers":       []string{},
	"events.topic":               "estimator.analysis.completed",
	"ratelimit.analyze_requests": 10,
	"ratelimit.analyze_window":   "60s",
	"ratelimit.global_requests":  100,
}

// Load reads configuration from (in increasing priority) defaults, an
// optional config.yaml, a .env file and the process environment.
// Environment keys use underscores: LLM_URL, PROPERTY_CACHE_TTL, ...
func Load() (*Config, error) {
	loadEnvFile()

	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath(".")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	// comma separated lists arrive as a single string from the environment
	if len(cfg.Events.KafkaBrokers) == 1 {
		cfg.Events.KafkaBrokers = splitList(cfg.Events.KafkaBrokers[0])
	}
	applyDefaults(&cfg)
	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func loadEnvFile() {
	paths := []string{".env", "../.env", "../../.env"}
	if root := findProjectRoot(); root != "" {
		paths = append(paths, filepath.Join(root, ".env"))
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			if err := godotenv.Load(p); err == nil {
				return
			}
		}
	}
}

func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Port <= 0 {
		cfg.Port = 4002
	}
	if cfg.RateLimit.AnalyzeRequests <= 0 {
		cfg.RateLimit.AnalyzeRequests = 10
	}
	if cfg.RateLimit.AnalyzeWindow <= 0 {
		cfg.RateLimit.AnalyzeWindow = time.Minute
	}
	if cfg.Property.RefreshWorkers <= 0 {
		cfg.Property.RefreshWorkers = 2
	}
	cfg.Vision.Mode = strings.ToLower(strings.TrimSpace(cfg.Vision.Mode))
	if cfg.Vision.Mode == "" {
		cfg.Vision.Mode = "simulated"
	}
}

func validate(cfg *Config) error {
	switch cfg.Vision.Mode {
	case "simulated", "llm":
	default:
		return fmt.Errorf("vision.mode must be simulated or llm, got %q", cfg.Vision.Mode)
	}
	if cfg.Vision.Mode == "llm" && (cfg.LLM.URL == "" || cfg.LLM.Key == "") {
		return errors.New("vision.mode=llm requires llm.url and llm.key")
	}
	if cfg.AWS.Endpoint != "" && cfg.AWS.Bucket == "" {
		return errors.New("aws.endpoint set without aws.bucket")
	}
	return nil
}

func splitList(v string) []string {
	fields := strings.FieldsFunc(v, func(r rune) bool {
		switch r {
		case ',', ';', ' ', '\n', '\t':
			return true
		}
		return false
	})
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}
