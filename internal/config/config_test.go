package config

import (
	"testing"
	"time"
)

func TestLoadAppliesDefaults(t *testing.T) {
	configViper := NewViper()
	configViper.Set("auth.signing_secret", "test-secret")

	cfg, err := Load(configViper)
	if err != nil {
		t.Fatalf("unexpected load error: %v", err)
	}

	if cfg.HTTPAddress != "0.0.0.0:8080" {
		t.Fatalf("unexpected http address %s", cfg.HTTPAddress)
	}
	if cfg.DatabasePath != "brandbond.db" {
		t.Fatalf("unexpected database path %s", cfg.DatabasePath)
	}
	if cfg.TokenTTL != 60*time.Minute {
		t.Fatalf("unexpected token ttl %s", cfg.TokenTTL)
	}
	if cfg.LogLevel != "info" {
		t.Fatalf("unexpected log level %s", cfg.LogLevel)
	}
}

func TestLoadRequiresSigningSecret(t *testing.T) {
	configViper := NewViper()
	if _, err := Load(configViper); err == nil {
		t.Fatalf("expected error when signing secret is absent")
	}
}

func TestLoadRejectsNonPositiveTokenTTL(t *testing.T) {
	configViper := NewViper()
	configViper.Set("auth.signing_secret", "test-secret")
	configViper.Set("token.ttl_minutes", 0)
	if _, err := Load(configViper); err == nil {
		t.Fatalf("expected error for zero token ttl")
	}
}

func TestLoadHonorsOverrides(t *testing.T) {
	configViper := NewViper()
	configViper.Set("auth.signing_secret", "test-secret")
	configViper.Set("http.address", "127.0.0.1:9000")
	configViper.Set("database.path", "/tmp/brandbond-test.db")
	configViper.Set("token.ttl_minutes", 15)

	cfg, err := Load(configViper)
	if err != nil {
		t.Fatalf("unexpected load error: %v", err)
	}
	if cfg.HTTPAddress != "127.0.0.1:9000" {
		t.Fatalf("unexpected http address %s", cfg.HTTPAddress)
	}
	if cfg.DatabasePath != "/tmp/brandbond-test.db" {
		t.Fatalf("unexpected database path %s", cfg.DatabasePath)
	}
	if cfg.TokenTTL != 15*time.Minute {
		t.Fatalf("unexpected token ttl %s", cfg.TokenTTL)
	}
}
