package config

import (
	"log"
	"strings"

	"github.com/spf13/viper"

	"github.com/VoiceForge-io/voiceforge/internal/quota"
)

type Config struct {
	APIPort  int `yaml:"apiPort"`
	Database struct {
		Type            string `yaml:"type"`
		Path            string `yaml:"path"`
		Host            string `yaml:"host"`
		Port            string `yaml:"port"`
		Name            string `yaml:"name"`
		User            string `yaml:"user"`
		Password        string `yaml:"password"`
		SSLMode         string `yaml:"sslMode"`
		MaxConns        int    `yaml:"maxConns"`
		MaxIdle         int    `yaml:"maxIdle"`
		ConnMaxLifetime string `yaml:"connMaxLifetime"`
	} `yaml:"database"`
	Quota struct {
		FreeCap int `yaml:"freeCap"`
	} `yaml:"quota"`
	ElevenLabs struct {
		APIKey         string `yaml:"apiKey"`
		BaseURL        string `yaml:"baseUrl"`
		TimeoutSeconds int    `yaml:"timeoutSeconds"`
	} `yaml:"elevenlabs"`
	PayPal struct {
		ClientID     string  `yaml:"clientId"`
		ClientSecret string  `yaml:"clientSecret"`
		BaseURL      string  `yaml:"baseUrl"`
		ProAmount    float64 `yaml:"proAmount"`
		Currency     string  `yaml:"currency"`
	} `yaml:"paypal"`
	Storage struct {
		Enabled         bool   `yaml:"enabled"`
		Endpoint        string `yaml:"endpoint"`
		Region          string `yaml:"region"`
		Bucket          string `yaml:"bucket"`
		AccessKeyID     string `yaml:"accessKeyId"`
		SecretAccessKey string `yaml:"secretAccessKey"`
	} `yaml:"storage"`
	Auth struct {
		JWTSecret    string `yaml:"jwtSecret"`
		TokenHours   int    `yaml:"tokenHours"`
		AllowOrigins string `yaml:"allowOrigins"`
	} `yaml:"auth"`
}

// LoadConfig loads the configuration from file and environment variables.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()

	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.AutomaticEnv() // Read in environment variables that match
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		// If the file doesn't exist or is invalid, return an error
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		log.Printf("Warning: Could not read config file: %s. Using defaults or environment variables.", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.APIPort == 0 {
		cfg.APIPort = 8081
		log.Println("APIPort not specified, using default 8081")
	}

	if cfg.Database.Type == "" {
		cfg.Database.Type = "sqlite"
		log.Println("Database type not specified, using sqlite")
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = "/data/voiceforge.db"
		log.Println("Database path not specified, using default /data/voiceforge.db")
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}

	if cfg.Quota.FreeCap == 0 {
		cfg.Quota.FreeCap = quota.DefaultFreeCap
		log.Printf("Free quota cap not specified, using default %d", quota.DefaultFreeCap)
	}

	if cfg.ElevenLabs.BaseURL == "" {
		cfg.ElevenLabs.BaseURL = "https://api.elevenlabs.io"
	}
	if cfg.ElevenLabs.TimeoutSeconds == 0 {
		cfg.ElevenLabs.TimeoutSeconds = 30
		log.Println("ElevenLabs timeout not specified, using default 30s")
	}

	if cfg.PayPal.BaseURL == "" {
		cfg.PayPal.BaseURL = "https://api-m.paypal.com"
	}
	if cfg.PayPal.ProAmount == 0 {
		cfg.PayPal.ProAmount = 120.00
	}
	if cfg.PayPal.Currency == "" {
		cfg.PayPal.Currency = "USD"
	}

	if cfg.Auth.TokenHours == 0 {
		cfg.Auth.TokenHours = 24
	}

	return &cfg, nil
}
