package main

import (
	"testing"

	"github.com/wabisabiit/Wabi-Sabi-ERP-Project-sub000/internal/config"
	"github.com/wabisabiit/Wabi-Sabi-ERP-Project-sub000/internal/reconcile"
)

func TestValidateSecurityConfigRejectsWeakValues(t *testing.T) {
	err := validateSecurityConfig(config.Config{AuthSecret: "short", SalesAPIURL: "http://sales.local"})
	if err == nil {
		t.Fatalf("expected short auth secret to be rejected")
	}
}

func TestValidateSecurityConfigRequiresSalesAPI(t *testing.T) {
	err := validateSecurityConfig(config.Config{AuthSecret: "0123456789abcdef0123456789abcdef"})
	if err == nil {
		t.Fatalf("expected missing SALES_API_URL to be rejected")
	}
}

func TestValidateSecurityConfigAcceptsStrongValues(t *testing.T) {
	err := validateSecurityConfig(config.Config{AuthSecret: "0123456789abcdef0123456789abcdef", SalesAPIURL: "http://sales.local"})
	if err != nil {
		t.Fatalf("expected strong config to pass, got %v", err)
	}
}

func TestRoundingPolicies(t *testing.T) {
	quick, multi, err := roundingPolicies(config.Config{QuickPayRounding: "Whole", MultiPayRounding: "cents"})
	if err != nil {
		t.Fatalf("expected valid policies, got %v", err)
	}
	if quick != reconcile.RoundWhole || multi != reconcile.RoundCents {
		t.Fatalf("unexpected policies %s/%s", quick, multi)
	}
	if _, _, err := roundingPolicies(config.Config{QuickPayRounding: "bankers", MultiPayRounding: "cents"}); err == nil {
		t.Fatalf("expected unknown rounding policy to be rejected")
	}
}
