package config

import (
	"testing"
	"time"
)

func TestLoadDoesNotInjectWeakAuthDefaults(t *testing.T) {
	t.Setenv("AUTH_SECRET", "")
	t.Setenv("SALES_API_URL", "")

	cfg := Load()
	if cfg.AuthSecret != "" {
		t.Fatalf("expected empty AUTH_SECRET when unset, got %q", cfg.AuthSecret)
	}
	if cfg.SalesAPIURL != "" {
		t.Fatalf("expected empty SALES_API_URL when unset, got %q", cfg.SalesAPIURL)
	}
}

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"QUICK_PAY_ROUNDING", "MULTI_PAY_ROUNDING", "REDIRECT_PATH", "TOAST_DISMISS_MS", "MULTI_PAY_REDIRECT_DELAY_MS", "SALES_API_TIMEOUT_SECONDS", "PRINTER_WIDTH"} {
		t.Setenv(key, "")
	}

	cfg := Load()
	if cfg.QuickPayRounding != "whole" || cfg.MultiPayRounding != "cents" {
		t.Fatalf("unexpected rounding defaults %q %q", cfg.QuickPayRounding, cfg.MultiPayRounding)
	}
	if cfg.RedirectPath != "/pos" || cfg.ToastDismiss != 2*time.Second || cfg.MultiRedirectDelay != 2500*time.Millisecond {
		t.Fatalf("unexpected presenter defaults %+v", cfg)
	}
	if cfg.SalesAPITimeout != 30*time.Second || cfg.PrinterWidth != 48 {
		t.Fatalf("unexpected defaults timeout=%v width=%d", cfg.SalesAPITimeout, cfg.PrinterWidth)
	}
}

func TestLoadReadsOverrides(t *testing.T) {
	t.Setenv("PAYMENT_BANKS", " HDFC , ,SBI")
	t.Setenv("SALES_API_TIMEOUT_SECONDS", "5")
	t.Setenv("PRINTER_WIDTH", "3")
	t.Setenv("MULTI_PAY_ROUNDING", "whole")

	cfg := Load()
	if len(cfg.PaymentBanks) != 2 || cfg.PaymentBanks[0] != "HDFC" || cfg.PaymentBanks[1] != "SBI" {
		t.Fatalf("unexpected banks %v", cfg.PaymentBanks)
	}
	if cfg.SalesAPITimeout != 5*time.Second {
		t.Fatalf("expected 5s timeout, got %v", cfg.SalesAPITimeout)
	}
	if cfg.PrinterWidth != 48 {
		t.Fatalf("expected narrow width to fall back to 48, got %d", cfg.PrinterWidth)
	}
	if cfg.MultiPayRounding != "whole" {
		t.Fatalf("expected rounding override, got %q", cfg.MultiPayRounding)
	}
}
