package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server         ServerConfig         `mapstructure:"server"`
	Database       DatabaseConfig       `mapstructure:"database"`
	Redis          RedisConfig          `mapstructure:"redis"`
	Kafka          KafkaConfig          `mapstructure:"kafka"`
	Auth           AuthConfig           `mapstructure:"auth"`
	Logging        LoggingConfig        `mapstructure:"logging"`
	Recommendation RecommendationConfig `mapstructure:"recommendation"`
	Data           DataConfig           `mapstructure:"data"`
	Monitoring     MonitoringConfig     `mapstructure:"monitoring"`
	Security       SecurityConfig       `mapstructure:"security"`
}

type ServerConfig struct {
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

type DatabaseConfig struct {
	URL            string        `mapstructure:"url"`
	MaxConnections int           `mapstructure:"max_connections"`
	MaxIdleTime    time.Duration `mapstructure:"max_idle_time"`
	MaxLifetime    time.Duration `mapstructure:"max_lifetime"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
}

type RedisConfig struct {
	Hot  RedisInstanceConfig `mapstructure:"hot"`
	Warm RedisInstanceConfig `mapstructure:"warm"`
	Cold RedisInstanceConfig `mapstructure:"cold"`
}

type RedisInstanceConfig struct {
	URL        string        `mapstructure:"url"`
	MaxRetries int           `mapstructure:"max_retries"`
	PoolSize   int           `mapstructure:"pool_size"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topics  struct {
		WatchEvents string `mapstructure:"watch_events"`
	} `mapstructure:"topics"`
}

type AuthConfig struct {
	JWTSecret string          `mapstructure:"jwt_secret"`
	TokenTTL  time.Duration   `mapstructure:"token_ttl"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

type RateLimitConfig struct {
	Default int           `mapstructure:"default"`
	Premium int           `mapstructure:"premium"`
	Window  time.Duration `mapstructure:"window"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// RecommendationConfig holds the tunables of the scoring pipeline. The
// similarity threshold and the semantic/fallback weight split are named
// configuration values rather than inline literals, so behavior is
// reproducible across deployments.
type RecommendationConfig struct {
	SimilarityThreshold float64       `mapstructure:"similarity_threshold"`
	SemanticWeight      float64       `mapstructure:"semantic_weight"`
	FallbackWeight      float64       `mapstructure:"fallback_weight"`
	MinSemanticResults  int           `mapstructure:"min_semantic_results"`
	DefaultCount        int           `mapstructure:"default_count"`
	MaxCount            int           `mapstructure:"max_count"`
	Caching             CachingConfig `mapstructure:"caching"`
}

type CachingConfig struct {
	RecommendationsTTL time.Duration `mapstructure:"recommendations_ttl"`
	EmbeddingsTTL      time.Duration `mapstructure:"embeddings_ttl"`
	AffinityTTL        time.Duration `mapstructure:"affinity_ttl"`
}

// DataConfig points at the static rule tables and the embedding snapshot.
type DataConfig struct {
	GenresFile     string `mapstructure:"genres_file"`
	MoodsFile      string `mapstructure:"moods_file"`
	BadgesFile     string `mapstructure:"badges_file"`
	EmbeddingsFile string `mapstructure:"embeddings_file"`
	Dimensions     int    `mapstructure:"dimensions"`
}

type MonitoringConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	MetricsPath string `mapstructure:"metrics_path"`
}

type SecurityConfig struct {
	CORS CORSConfig `mapstructure:"cors"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	AllowedMethods []string `mapstructure:"allowed_methods"`
	AllowedHeaders []string `mapstructure:"allowed_headers"`
}

func Load() (*Config, error) {
	viper.SetConfigName("app")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./config")
	viper.AddConfigPath(".")

	setDefaults()

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		// Config file is optional, continue with env vars and defaults
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

func setDefaults() {
	// Server defaults
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.mode", "development")

	// Database defaults
	viper.SetDefault("database.max_connections", 25)
	viper.SetDefault("database.max_idle_time", "15m")
	viper.SetDefault("database.max_lifetime", "1h")
	viper.SetDefault("database.connect_timeout", "10s")

	// Redis defaults
	viper.SetDefault("redis.hot.max_retries", 3)
	viper.SetDefault("redis.hot.pool_size", 10)
	viper.SetDefault("redis.hot.timeout", "5s")
	viper.SetDefault("redis.warm.max_retries", 3)
	viper.SetDefault("redis.warm.pool_size", 5)
	viper.SetDefault("redis.warm.timeout", "10s")
	viper.SetDefault("redis.cold.max_retries", 3)
	viper.SetDefault("redis.cold.pool_size", 5)
	viper.SetDefault("redis.cold.timeout", "15s")

	// Kafka defaults
	viper.SetDefault("kafka.topics.watch_events", "watch-events")

	// Auth defaults
	viper.SetDefault("auth.token_ttl", "24h")
	viper.SetDefault("auth.rate_limit.default", 1000)
	viper.SetDefault("auth.rate_limit.premium", 10000)
	viper.SetDefault("auth.rate_limit.window", "1h")

	// Logging defaults
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "text")

	// Recommendation defaults
	viper.SetDefault("recommendation.similarity_threshold", 0.30)
	viper.SetDefault("recommendation.semantic_weight", 0.70)
	viper.SetDefault("recommendation.fallback_weight", 0.30)
	viper.SetDefault("recommendation.min_semantic_results", 3)
	viper.SetDefault("recommendation.default_count", 10)
	viper.SetDefault("recommendation.max_count", 100)

	// Caching defaults
	viper.SetDefault("recommendation.caching.recommendations_ttl", "15m")
	viper.SetDefault("recommendation.caching.embeddings_ttl", "24h")
	viper.SetDefault("recommendation.caching.affinity_ttl", "30m")

	// Data defaults
	viper.SetDefault("data.genres_file", "./data/genres.json")
	viper.SetDefault("data.moods_file", "./data/moods.json")
	viper.SetDefault("data.badges_file", "./data/badges.json")
	viper.SetDefault("data.embeddings_file", "./data/embeddings.json")
	viper.SetDefault("data.dimensions", 384)

	// Monitoring defaults
	viper.SetDefault("monitoring.enabled", true)
	viper.SetDefault("monitoring.metrics_path", "/metrics")

	// Security defaults
	viper.SetDefault("security.cors.allowed_origins", []string{"*"})
	viper.SetDefault("security.cors.allowed_methods", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"})
	viper.SetDefault("security.cors.allowed_headers", []string{"*"})
}
