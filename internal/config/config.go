package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server  ServerConfig
	Weather WeatherConfig
	S3      S3Config
	MQTT    MQTTConfig
	App     AppConfig
	Session SessionConfig
	Log     LogConfig
}

type ServerConfig struct {
	Host string
	Port string
}

type WeatherConfig struct {
	APIKey          string
	Location        string
	BaseURL         string
	Units           string
	Timeout         time.Duration
	BreakerFailures int
	BreakerOpenFor  time.Duration
}

type S3Config struct {
	Enabled         bool
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
	Region          string
}

type MQTTConfig struct {
	Enabled  bool
	Host     string
	Port     int
	User     string
	Password string
	ClientID string
	Topic    string
}

type AppConfig struct {
	MaxUploadSize  int64
	MaxPixels      int64
	AllowedFormats []string
	PreviewWidth   uint
	SprayTick      time.Duration
}

type SessionConfig struct {
	MaxSessions int
	IdleTimeout time.Duration
}

type LogConfig struct {
	Level string
}

func Load() (*Config, error) {
	// .env is optional; real environment variables win over it.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	viper.SetDefault("SERVER_HOST", "localhost")
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("WEATHER_API_KEY", "")
	viper.SetDefault("WEATHER_LOCATION", "Kochi")
	viper.SetDefault("WEATHER_BASE_URL", "http://api.openweathermap.org/data/2.5/weather")
	viper.SetDefault("WEATHER_UNITS", "metric")
	viper.SetDefault("WEATHER_TIMEOUT", 5*time.Second)
	viper.SetDefault("WEATHER_BREAKER_FAILURES", 3)
	viper.SetDefault("WEATHER_BREAKER_OPEN_FOR", 30*time.Second)
	viper.SetDefault("S3_ENABLED", false)
	viper.SetDefault("S3_ENDPOINT", "http://localhost:9000")
	viper.SetDefault("S3_ACCESS_KEY_ID", "minioadmin")
	viper.SetDefault("S3_SECRET_ACCESS_KEY", "minioadmin")
	viper.SetDefault("S3_BUCKET_NAME", "leaf-overlays")
	viper.SetDefault("S3_REGION", "us-east-1")
	viper.SetDefault("MQTT_ENABLED", false)
	viper.SetDefault("MQTT_HOST", "localhost")
	viper.SetDefault("MQTT_PORT", 1883)
	viper.SetDefault("MQTT_USER", "guest")
	viper.SetDefault("MQTT_PASSWORD", "guest")
	viper.SetDefault("MQTT_CLIENT_ID", "agroaid")
	viper.SetDefault("MQTT_TOPIC", "event/sprayer")
	viper.SetDefault("APP_MAX_UPLOAD_SIZE", 10*1024*1024) // 10MB
	viper.SetDefault("APP_MAX_PIXELS", 20_000_000)
	viper.SetDefault("APP_ALLOWED_FORMATS", []string{".jpg", ".jpeg", ".png"})
	viper.SetDefault("APP_PREVIEW_WIDTH", 640)
	viper.SetDefault("APP_SPRAY_TICK", time.Second)
	viper.SetDefault("SESSION_MAX", 1024)
	viper.SetDefault("SESSION_IDLE_TIMEOUT", 24*time.Hour)
	viper.SetDefault("LOG_LEVEL", "info")

	viper.AutomaticEnv()

	cfg := &Config{
		Server: ServerConfig{
			Host: viper.GetString("SERVER_HOST"),
			Port: viper.GetString("SERVER_PORT"),
		},
		Weather: WeatherConfig{
			APIKey:          viper.GetString("WEATHER_API_KEY"),
			Location:        viper.GetString("WEATHER_LOCATION"),
			BaseURL:         viper.GetString("WEATHER_BASE_URL"),
			Units:           viper.GetString("WEATHER_UNITS"),
			Timeout:         viper.GetDuration("WEATHER_TIMEOUT"),
			BreakerFailures: viper.GetInt("WEATHER_BREAKER_FAILURES"),
			BreakerOpenFor:  viper.GetDuration("WEATHER_BREAKER_OPEN_FOR"),
		},
		S3: S3Config{
			Enabled:         viper.GetBool("S3_ENABLED"),
			Endpoint:        viper.GetString("S3_ENDPOINT"),
			AccessKeyID:     viper.GetString("S3_ACCESS_KEY_ID"),
			SecretAccessKey: viper.GetString("S3_SECRET_ACCESS_KEY"),
			BucketName:      viper.GetString("S3_BUCKET_NAME"),
			Region:          viper.GetString("S3_REGION"),
		},
		MQTT: MQTTConfig{
			Enabled:  viper.GetBool("MQTT_ENABLED"),
			Host:     viper.GetString("MQTT_HOST"),
			Port:     viper.GetInt("MQTT_PORT"),
			User:     viper.GetString("MQTT_USER"),
			Password: viper.GetString("MQTT_PASSWORD"),
			ClientID: viper.GetString("MQTT_CLIENT_ID"),
			Topic:    viper.GetString("MQTT_TOPIC"),
		},
		App: AppConfig{
			MaxUploadSize:  viper.GetInt64("APP_MAX_UPLOAD_SIZE"),
			MaxPixels:      viper.GetInt64("APP_MAX_PIXELS"),
			AllowedFormats: viper.GetStringSlice("APP_ALLOWED_FORMATS"),
			PreviewWidth:   viper.GetUint("APP_PREVIEW_WIDTH"),
			SprayTick:      viper.GetDuration("APP_SPRAY_TICK"),
		},
		Session: SessionConfig{
			MaxSessions: viper.GetInt("SESSION_MAX"),
			IdleTimeout: viper.GetDuration("SESSION_IDLE_TIMEOUT"),
		},
		Log: LogConfig{
			Level: viper.GetString("LOG_LEVEL"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Weather.Location == "" {
		return errors.New("WEATHER_LOCATION must not be empty")
	}
	if c.App.MaxUploadSize <= 0 {
		return errors.New("APP_MAX_UPLOAD_SIZE must be positive")
	}
	if c.App.MaxPixels <= 0 {
		return errors.New("APP_MAX_PIXELS must be positive")
	}
	if c.Session.MaxSessions <= 0 {
		return errors.New("SESSION_MAX must be positive")
	}
	if c.App.SprayTick <= 0 {
		return errors.New("APP_SPRAY_TICK must be positive")
	}
	if c.MQTT.Enabled && c.MQTT.Topic == "" {
		return errors.New("MQTT_TOPIC is required when MQTT is enabled")
	}
	return nil
}
