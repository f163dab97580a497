package config

import "time"

type Config struct {
	Port      int             `mapstructure:"port"`
	Log       LogConfig       `mapstructure:"log"`
	Postgres  PostgresConfig  `mapstructure:"postgres"`
	Redis     RedisConfig     `mapstructure:"redis"`
	AWS       AWSConfig       `mapstructure:"aws"`
	ATTOM     ProviderConfig  `mapstructure:"attom"`
	Melissa   ProviderConfig  `mapstructure:"melissa"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Vision    VisionConfig    `mapstructure:"vision"`
	Property  PropertyConfig  `mapstructure:"property"`
	Tenant    TenantConfig    `mapstructure:"tenant"`
	Events    EventsConfig    `mapstructure:"events"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type PostgresConfig struct {
	DSN string `mapstructure:"dsn"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type AWSConfig struct {
	Region   string `mapstructure:"region"`
	Bucket   string `mapstructure:"bucket"`
	Endpoint string `mapstructure:"endpoint"`
	Folder   string `mapstructure:"folder"`
}

type ProviderConfig struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
	// RPS paces outbound calls; zero means unpaced.
	RPS float64 `mapstructure:"rps"`
}

type LLMConfig struct {
	URL string `mapstructure:"url"`
	Key string `mapstructure:"key"`
}

type VisionConfig struct {
	// Mode is "simulated" or "llm".
	Mode             string        `mapstructure:"mode"`
	SimulatedLatency time.Duration `mapstructure:"simulated_latency"`
}

type PropertyConfig struct {
	CacheTTL       time.Duration `mapstructure:"cache_ttl"`
	StaleAfter     time.Duration `mapstructure:"stale_after"`
	NegativeTTL    time.Duration `mapstructure:"negative_ttl"`
	RefreshWorkers int           `mapstructure:"refresh_workers"`
}

type TenantConfig struct {
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

type EventsConfig struct {
	KafkaBrokers []string `mapstructure:"kafka_brokers"`
	Topic        string   `mapstructure:"topic"`
}

type RateLimitConfig struct {
	AnalyzeRequests int           `mapstructure:"analyze_requests"`
	AnalyzeWindow   time.Duration `mapstructure:"analyze_window"`
	GlobalRequests  int           `mapstructure:"global_requests"`
}
