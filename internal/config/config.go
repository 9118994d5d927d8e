package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values for the API service.
type Config struct {
	AppName                  string
	AppEnv                   string
	AppPort                  string
	DatabaseURL              string
	DatabaseMaxOpenConns     int
	DatabaseMaxIdleConns     int
	DatabaseLogSQL           bool
	RedisURL                 string
	NATSURL                  string
	EventsChannel            string
	JWTSecret                string
	JWTRefreshSecret         string
	AccessTokenTTL           time.Duration
	RefreshTokenTTL          time.Duration
	RankingCacheTTL          time.Duration
	DashboardCacheTTL        time.Duration
	AIProvider               string
	OpenAIAPIKey             string
	AIHintModel              string
	SeedEnabled              bool
	SeedToken                string
	CORSAllowedOrigins       string
	AnswerRateLimitPerMinute int
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// IsProduction reports whether the service runs with production settings.
func (c Config) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(c.AppEnv), "production")
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("LEVELUP")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "LevelUp API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.log_sql", false)
	v.SetDefault("events.channel", "levelup")
	v.SetDefault("jwt.access_ttl", "15m")
	v.SetDefault("jwt.refresh_ttl", "168h")
	v.SetDefault("ranking.cache_ttl", "1m")
	v.SetDefault("dashboard.cache_ttl", "5m")
	v.SetDefault("ai.provider", "openai")
	v.SetDefault("ai.hint_model", "gpt-4o-mini")
	v.SetDefault("seed.enabled", false)
	v.SetDefault("cors.allowed_origins", "*")
	v.SetDefault("rate_limit.answers_per_minute", 120)

	durations := map[string]time.Duration{}
	for _, key := range []string{"jwt.access_ttl", "jwt.refresh_ttl", "ranking.cache_ttl", "dashboard.cache_ttl"} {
		value, err := time.ParseDuration(v.GetString(key))
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", key, err)
		}
		durations[key] = value
	}

	cfg := Config{
		AppName:                  v.GetString("app.name"),
		AppEnv:                   v.GetString("app.env"),
		AppPort:                  v.GetString("app.port"),
		DatabaseURL:              v.GetString("database.url"),
		DatabaseMaxOpenConns:     v.GetInt("database.max_open_conns"),
		DatabaseMaxIdleConns:     v.GetInt("database.max_idle_conns"),
		DatabaseLogSQL:           v.GetBool("database.log_sql"),
		RedisURL:                 v.GetString("redis.url"),
		NATSURL:                  v.GetString("nats.url"),
		EventsChannel:            v.GetString("events.channel"),
		JWTSecret:                v.GetString("jwt.secret"),
		JWTRefreshSecret:         v.GetString("jwt.refresh_secret"),
		AccessTokenTTL:           durations["jwt.access_ttl"],
		RefreshTokenTTL:          durations["jwt.refresh_ttl"],
		RankingCacheTTL:          durations["ranking.cache_ttl"],
		DashboardCacheTTL:        durations["dashboard.cache_ttl"],
		AIProvider:               strings.ToLower(v.GetString("ai.provider")),
		OpenAIAPIKey:             v.GetString("openai_api_key"),
		AIHintModel:              v.GetString("ai.hint_model"),
		SeedEnabled:              v.GetBool("seed.enabled"),
		SeedToken:                v.GetString("seed.token"),
		CORSAllowedOrigins:       v.GetString("cors.allowed_origins"),
		AnswerRateLimitPerMinute: v.GetInt("rate_limit.answers_per_minute"),
	}

	if cfg.JWTSecret == "" || cfg.JWTRefreshSecret == "" {
		return Config{}, fmt.Errorf("jwt secrets must be provided")
	}

	if cfg.AnswerRateLimitPerMinute <= 0 {
		cfg.AnswerRateLimitPerMinute = 120
	}

	return cfg, nil
}
