package main

import (
	"flag"
	"log"
	"time"

	"github.com/VoiceForge-io/voiceforge/internal/api"
	"github.com/VoiceForge-io/voiceforge/internal/config"
	"github.com/VoiceForge-io/voiceforge/internal/database"
	"github.com/VoiceForge-io/voiceforge/internal/payments"
	"github.com/VoiceForge-io/voiceforge/internal/storage"
	"github.com/VoiceForge-io/voiceforge/internal/tts/elevenlabs"
)

const version = "0.0.1"

func initializeAPI(configPath string) (*api.Api, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}

	if err := database.Init(cfg); err != nil {
		return nil, err
	}

	synth := elevenlabs.NewSynthesizer(
		cfg.ElevenLabs.APIKey,
		cfg.ElevenLabs.BaseURL,
		time.Duration(cfg.ElevenLabs.TimeoutSeconds)*time.Second,
	)

	provider := payments.NewClient(cfg.PayPal.BaseURL, cfg.PayPal.ClientID, cfg.PayPal.ClientSecret)

	var store *storage.S3Client
	if cfg.Storage.Enabled {
		store, err = storage.NewS3Client(
			cfg.Storage.Endpoint,
			cfg.Storage.Region,
			cfg.Storage.Bucket,
			cfg.Storage.AccessKeyID,
			cfg.Storage.SecretAccessKey,
		)
		if err != nil {
			return nil, err
		}
	} else {
		log.Println("Object storage disabled, audio will be inlined as data URIs")
	}

	return api.NewApi(*cfg, synth, provider, store)
}

func main() {
	configPath := flag.String("config", "app.yml", "Path to configuration file")
	flag.Parse()

	log.Printf("Starting VoiceForge API v%s with config: %s", version, *configPath)

	api, err := initializeAPI(*configPath)
	if err != nil {
		log.Fatal(err)
	}

	defer database.Close()

	if err := api.Serve(); err != nil {
		log.Fatal(err)
	}
}
