package provider

import (
	"errors"
	"testing"

	"github.com/kursd/kursd/internal/domain"
)

func validProvider() *Provider {
	return &Provider{
		Code:              "exchangerate_host",
		Name:              "ExchangeRate Host",
		APIURL:            "https://api.exchangerate.host",
		MonthlyQuota:      100,
		Priority:          1,
		IsEnabled:         true,
		WarningThreshold:  20,
		CriticalThreshold: 5,
	}
}

func TestValidateAcceptsCompleteConfig(t *testing.T) {
	if err := validProvider().Validate(); err != nil {
		t.Fatalf("expected valid provider, got %v", err)
	}
}

func TestValidateRequiresCodeNameURL(t *testing.T) {
	for _, mutate := range []func(*Provider){
		func(p *Provider) { p.Code = "" },
		func(p *Provider) { p.Name = "" },
		func(p *Provider) { p.APIURL = "" },
	} {
		p := validProvider()
		mutate(p)
		if err := p.Validate(); !errors.Is(err, domain.ErrValidation) {
			t.Fatalf("expected validation error, got %v", err)
		}
	}
}

func TestValidateRequiresKeyWhenDeclared(t *testing.T) {
	p := validProvider()
	p.RequiresAPIKey = true
	if err := p.Validate(); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error for missing key, got %v", err)
	}

	p.APIKey = "secret"
	if err := p.Validate(); err != nil {
		t.Fatalf("expected valid provider with key, got %v", err)
	}
}

func TestValidateQuotaPolicy(t *testing.T) {
	p := validProvider()
	p.MonthlyQuota = 0
	if err := p.Validate(); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error for zero quota, got %v", err)
	}

	// Unlimited providers do not need a quota.
	p.IsUnlimited = true
	if err := p.Validate(); err != nil {
		t.Fatalf("expected unlimited provider to validate, got %v", err)
	}
}

func TestValidateThresholdOrdering(t *testing.T) {
	p := validProvider()
	p.WarningThreshold = 5
	p.CriticalThreshold = 20
	if err := p.Validate(); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error for inverted thresholds, got %v", err)
	}

	// Equal thresholds are allowed.
	p.WarningThreshold = 10
	p.CriticalThreshold = 10
	if err := p.Validate(); err != nil {
		t.Fatalf("expected equal thresholds to validate, got %v", err)
	}
}

func TestAPIKeyRoundTrip(t *testing.T) {
	key := DeriveKey("test-secret")

	encrypted, err := EncryptAPIKey("sk-live-abc123", key)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if encrypted == "sk-live-abc123" {
		t.Fatal("expected ciphertext to differ from plaintext")
	}

	decrypted, err := DecryptAPIKey(encrypted, key)
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if decrypted != "sk-live-abc123" {
		t.Fatalf("expected round trip to preserve key, got %q", decrypted)
	}
}

func TestDecryptRejectsWrongKey(t *testing.T) {
	encrypted, err := EncryptAPIKey("sk-live-abc123", DeriveKey("secret-a"))
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if _, err := DecryptAPIKey(encrypted, DeriveKey("secret-b")); err == nil {
		t.Fatal("expected decryption with the wrong key to fail")
	}
}

func TestDecryptRejectsGarbage(t *testing.T) {
	key := DeriveKey("secret")
	if _, err := DecryptAPIKey("not base64!!", key); err == nil {
		t.Fatal("expected invalid base64 to fail")
	}
	if _, err := DecryptAPIKey("c2hvcnQ=", key); err == nil {
		t.Fatal("expected short ciphertext to fail")
	}
}
