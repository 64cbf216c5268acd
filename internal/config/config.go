package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Config 聚合客户端的全部配置项。
type Config struct {
	Server    ServerConfig
	Responder ResponderConfig
	Assets    AssetConfig
	LogLevel  zerolog.Level
}

// Load 从环境变量加载配置。
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	responder, err := loadResponderConfig()
	if err != nil {
		return nil, err
	}

	assets, err := loadAssetConfig()
	if err != nil {
		return nil, err
	}

	level, err := parseLogLevel("LOG_LEVEL", zerolog.InfoLevel)
	if err != nil {
		return nil, err
	}

	return &Config{Server: server, Responder: responder, Assets: assets, LogLevel: level}, nil
}

// ServerConfig 描述本地桥接 HTTP 服务配置。
type ServerConfig struct {
	Addr           string
	AllowedOrigins []string
}

// loadServerConfig 解析服务器监听地址与 CORS 来源。
func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	addr := port
	if !strings.Contains(port, ":") {
		addr = ":" + port
	}

	return ServerConfig{
		Addr:           addr,
		AllowedOrigins: parseListEnv("TWIN_ALLOWED_ORIGINS", []string{"*"}),
	}, nil
}

// ResponderConfig 描述远端回复服务的地址与超时。
type ResponderConfig struct {
	BaseURL string
	Timeout time.Duration
}

const defaultRequestTimeout = 60 * time.Second

func loadResponderConfig() (ResponderConfig, error) {
	base := getEnvOrDefault("TWIN_API_URL", getEnvOrDefault("NEXT_PUBLIC_API_URL", "http://localhost:8000"))
	if err := validateURL("TWIN_API_URL", base); err != nil {
		return ResponderConfig{}, err
	}

	timeout := defaultRequestTimeout
	seconds, err := parseOptionalIntEnv("TWIN_REQUEST_TIMEOUT")
	if err != nil {
		return ResponderConfig{}, err
	}
	if seconds != nil {
		if *seconds < 1 {
			return ResponderConfig{}, fmt.Errorf("invalid TWIN_REQUEST_TIMEOUT value %d: must be at least 1 second", *seconds)
		}
		timeout = time.Duration(*seconds) * time.Second
	}

	return ResponderConfig{BaseURL: strings.TrimRight(base, "/"), Timeout: timeout}, nil
}

// AssetConfig 描述可选的头像资源。
type AssetConfig struct {
	AvatarURL string
}

func loadAssetConfig() (AssetConfig, error) {
	avatar := strings.TrimSpace(os.Getenv("TWIN_AVATAR_URL"))
	if avatar == "" {
		return AssetConfig{}, nil
	}
	if err := validateURL("TWIN_AVATAR_URL", avatar); err != nil {
		return AssetConfig{}, err
	}
	return AssetConfig{AvatarURL: avatar}, nil
}

func validateURL(key, raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid %s value %q: scheme must be http or https", key, raw)
	}
	if u.Host == "" {
		return fmt.Errorf("invalid %s value %q: missing host", key, raw)
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseListEnv(key string, defaultValue []string) []string {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue
	}

	var items []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			items = append(items, part)
		}
	}
	if len(items) == 0 {
		return defaultValue
	}
	return items
}

func parseLogLevel(key string, defaultValue zerolog.Level) (zerolog.Level, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	level, err := zerolog.ParseLevel(strings.ToLower(raw))
	if err != nil {
		return defaultValue, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return level, nil
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}
