package config

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(context.Background(),
		WithoutSystemEnv(),
		WithEnvFile(""),
		WithEnvMap(map[string]string{
			"GIFTWRAP_FIRESTORE_PROJECT_ID": "demo-project",
		}),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != "8080" {
		t.Fatalf("expected default port 8080, got %q", cfg.Server.Port)
	}
	if cfg.GiftWrap.Currency != "EUR" {
		t.Fatalf("expected default currency EUR, got %q", cfg.GiftWrap.Currency)
	}
	if cfg.GiftWrap.Locale != "it" {
		t.Fatalf("expected default locale it, got %q", cfg.GiftWrap.Locale)
	}
	if cfg.Hooks.SignatureHeader != "X-Eva-Signature" {
		t.Fatalf("unexpected signature header %q", cfg.Hooks.SignatureHeader)
	}
	if cfg.Hooks.ClockSkew != 5*time.Minute {
		t.Fatalf("unexpected clock skew %v", cfg.Hooks.ClockSkew)
	}
	if cfg.PubSub.ProjectID != "demo-project" {
		t.Fatalf("expected pubsub project inherited from firestore, got %q", cfg.PubSub.ProjectID)
	}
	if !cfg.PubSub.Enabled() {
		t.Fatalf("expected pubsub enabled with default topic")
	}
}

func TestLoadMissingProjectFails(t *testing.T) {
	_, err := Load(context.Background(), WithoutSystemEnv(), WithEnvFile(""))
	var validation *ValidationError
	if !errors.As(err, &validation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	fields := validation.Fields()
	if len(fields) == 0 || fields[0] != "Firestore.ProjectID" {
		t.Fatalf("expected Firestore.ProjectID to be reported, got %v", fields)
	}
}

func TestLoadResolvesSecretReference(t *testing.T) {
	resolver := SecretResolverFunc(func(_ context.Context, ref string) (string, error) {
		if ref != "secret://hooks/signing" {
			t.Fatalf("unexpected ref %q", ref)
		}
		return "shh", nil
	})

	cfg, err := Load(context.Background(),
		WithoutSystemEnv(),
		WithEnvFile(""),
		WithSecretResolver(resolver),
		WithEnvMap(map[string]string{
			"GIFTWRAP_FIRESTORE_PROJECT_ID": "demo-project",
			"GIFTWRAP_HOOK_SIGNING_SECRET":  "secret://hooks/signing",
		}),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Hooks.SigningSecret != "shh" {
		t.Fatalf("expected resolved secret, got %q", cfg.Hooks.SigningSecret)
	}
}

func TestLoadSecretReferenceWithoutResolverFails(t *testing.T) {
	_, err := Load(context.Background(),
		WithoutSystemEnv(),
		WithEnvFile(""),
		WithEnvMap(map[string]string{
			"GIFTWRAP_FIRESTORE_PROJECT_ID": "demo-project",
			"GIFTWRAP_HOOK_SIGNING_SECRET":  "secret://hooks/signing",
		}),
	)
	var secretErr *SecretError
	if !errors.As(err, &secretErr) {
		t.Fatalf("expected secret error, got %v", err)
	}
	if secretErr.Ref != "secret://hooks/signing" {
		t.Fatalf("unexpected ref %q", secretErr.Ref)
	}
}
