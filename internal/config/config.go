package config

import (
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// readSecret reads a Docker secret from a file path specified by an env var
// with _FILE suffix. If FOO is already set directly, the file is skipped.
func readSecret(envKey string) {
	if os.Getenv(envKey) != "" {
		return
	}
	filePath := os.Getenv(envKey + "_FILE")
	if filePath == "" {
		return
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		return
	}
	os.Setenv(envKey, strings.TrimSpace(string(data)))
}

type Config struct {
	Server     ServerConfig
	Redis      RedisConfig
	RateLimit  RateLimitConfig
	AssemblyAI AssemblyAIConfig
	OpenAI     OpenAIConfig
	YouTube    YouTubeConfig
	Media      MediaConfig
	Poll       PollConfig
}

type ServerConfig struct {
	Port     string
	Env      string
	LogLevel string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// RateLimitConfig bounds language-model calls. Backend is "memory" or "redis".
type RateLimitConfig struct {
	Backend        string
	LLMPerWindow   int
	WindowDuration time.Duration
}

type AssemblyAIConfig struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

type YouTubeConfig struct {
	APIKey  string
	BaseURL string
}

type MediaConfig struct {
	TempDir        string
	DownloaderPath string
}

type PollConfig struct {
	Interval time.Duration
}

// IsDevelopment reports whether human-readable logs should be used.
func (c ServerConfig) IsDevelopment() bool {
	return c.Env == "" || strings.EqualFold(c.Env, "development") || strings.EqualFold(c.Env, "local")
}

func Load() (*Config, error) {
	readSecret("REDIS_PASSWORD")
	readSecret("ASSEMBLY_AI_API_KEY")
	readSecret("OPENAI_API_KEY")
	readSecret("YOUTUBE_API_KEY")

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.AutomaticEnv()

	_ = v.BindEnv("server.port", "PORT")
	_ = v.BindEnv("server.env", "SERVER_ENV")
	_ = v.BindEnv("server.log_level", "LOG_LEVEL")
	_ = v.BindEnv("redis.addr", "REDIS_ADDR")
	_ = v.BindEnv("redis.password", "REDIS_PASSWORD")
	_ = v.BindEnv("redis.db", "REDIS_DB")
	_ = v.BindEnv("ratelimit.backend", "RATELIMIT_BACKEND")
	_ = v.BindEnv("ratelimit.llm_per_window", "RATELIMIT_LLM_PER_WINDOW")
	_ = v.BindEnv("ratelimit.window_ms", "RATELIMIT_WINDOW_MS")
	_ = v.BindEnv("assemblyai.api_key", "ASSEMBLY_AI_API_KEY")
	_ = v.BindEnv("assemblyai.base_url", "ASSEMBLY_AI_BASE_URL")
	_ = v.BindEnv("assemblyai.timeout", "ASSEMBLY_AI_TIMEOUT")
	_ = v.BindEnv("openai.api_key", "OPENAI_API_KEY")
	_ = v.BindEnv("openai.base_url", "OPENAI_BASE_URL")
	_ = v.BindEnv("openai.model", "OPENAI_MODEL")
	_ = v.BindEnv("openai.timeout", "OPENAI_TIMEOUT")
	_ = v.BindEnv("youtube.api_key", "YOUTUBE_API_KEY")
	_ = v.BindEnv("youtube.base_url", "YOUTUBE_BASE_URL")
	_ = v.BindEnv("media.temp_dir", "TEMP_DIR")
	_ = v.BindEnv("media.downloader_path", "YTDLP_PATH")
	_ = v.BindEnv("poll.interval", "POLL_INTERVAL")

	v.SetDefault("server.port", "5000")
	v.SetDefault("server.env", "development")
	v.SetDefault("server.log_level", "info")
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("ratelimit.backend", "memory")
	v.SetDefault("ratelimit.llm_per_window", 20)
	v.SetDefault("ratelimit.window_ms", 60000)

	v.SetDefault("assemblyai.base_url", "https://api.assemblyai.com/v2")
	v.SetDefault("assemblyai.timeout", "120s")

	v.SetDefault("openai.base_url", "https://api.openai.com/v1")
	v.SetDefault("openai.model", "gpt-3.5-turbo")
	v.SetDefault("openai.timeout", "60s")

	v.SetDefault("youtube.base_url", "https://www.googleapis.com/youtube/v3")

	v.SetDefault("media.temp_dir", "./temp")
	v.SetDefault("media.downloader_path", "yt-dlp")

	v.SetDefault("poll.interval", "5s")

	// Config file is optional
	_ = v.ReadInConfig()

	cfg := &Config{
		Server: ServerConfig{
			Port:     v.GetString("server.port"),
			Env:      v.GetString("server.env"),
			LogLevel: v.GetString("server.log_level"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("redis.addr"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		RateLimit: RateLimitConfig{
			Backend:        strings.ToLower(v.GetString("ratelimit.backend")),
			LLMPerWindow:   v.GetInt("ratelimit.llm_per_window"),
			WindowDuration: time.Duration(v.GetInt64("ratelimit.window_ms")) * time.Millisecond,
		},
		AssemblyAI: AssemblyAIConfig{
			APIKey:  v.GetString("assemblyai.api_key"),
			BaseURL: strings.TrimRight(v.GetString("assemblyai.base_url"), "/"),
			Timeout: v.GetDuration("assemblyai.timeout"),
		},
		OpenAI: OpenAIConfig{
			APIKey:  v.GetString("openai.api_key"),
			BaseURL: strings.TrimRight(v.GetString("openai.base_url"), "/"),
			Model:   v.GetString("openai.model"),
			Timeout: v.GetDuration("openai.timeout"),
		},
		YouTube: YouTubeConfig{
			APIKey:  v.GetString("youtube.api_key"),
			BaseURL: strings.TrimRight(v.GetString("youtube.base_url"), "/"),
		},
		Media: MediaConfig{
			TempDir:        v.GetString("media.temp_dir"),
			DownloaderPath: v.GetString("media.downloader_path"),
		},
		Poll: PollConfig{
			Interval: v.GetDuration("poll.interval"),
		},
	}

	return cfg, nil
}
