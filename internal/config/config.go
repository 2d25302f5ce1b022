package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Port                  string
	AllowedOrigin         string
	DatabaseURL           string
	RunMigrations         bool
	RedisAddr             string
	RedisPassword         string
	RedisDB               int
	StoreID               string
	AuthSecret            string
	AccessTokenTTLMinutes int

	SalesAPIURL     string
	SalesAPIToken   string
	SalesAPITimeout time.Duration

	QuickPayRounding   string
	MultiPayRounding   string
	RedirectPath       string
	FlashTTL           time.Duration
	CustomerTTL        time.Duration
	SessionTTL         time.Duration
	ToastDismiss       time.Duration
	MultiRedirectDelay time.Duration
	PaymentBanks       []string
	UPIApps            []string

	PrinterType    string
	PrinterAddress string
	PrinterUSBPath string
	PrinterWidth   int

	ReceiptBucket          string
	ReceiptBucketRegion    string
	ReceiptBucketEndpoint  string
	ReceiptBucketAccessKey string
	ReceiptBucketSecretKey string
}

func Load() Config {
	// .env is optional; real environment variables win.
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("PORT", "8080")
	v.SetDefault("ALLOWED_ORIGIN", "http://127.0.0.1:3000")
	v.SetDefault("RUN_MIGRATIONS", true)
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("STORE_LABEL", "main-store")
	v.SetDefault("ACCESS_TOKEN_TTL_MINUTES", 480)
	v.SetDefault("SALES_API_TIMEOUT_SECONDS", 30)
	v.SetDefault("QUICK_PAY_ROUNDING", "whole")
	v.SetDefault("MULTI_PAY_ROUNDING", "cents")
	v.SetDefault("REDIRECT_PATH", "/pos")
	v.SetDefault("FLASH_TTL_SECONDS", 60)
	v.SetDefault("CUSTOMER_TTL_MINUTES", 240)
	v.SetDefault("SESSION_TTL_MINUTES", 30)
	v.SetDefault("TOAST_DISMISS_MS", 2000)
	v.SetDefault("MULTI_PAY_REDIRECT_DELAY_MS", 2500)
	v.SetDefault("PAYMENT_BANKS", "AXIS,HDFC,ICICI,SBI,KOTAK")
	v.SetDefault("UPI_APPS", "GPay,PhonePe,Paytm,BHIM")
	v.SetDefault("PRINTER_TYPE", "none")
	v.SetDefault("PRINTER_WIDTH", 48)
	v.SetDefault("RECEIPT_BUCKET_REGION", "auto")

	return Config{
		Port:                  v.GetString("PORT"),
		AllowedOrigin:         v.GetString("ALLOWED_ORIGIN"),
		DatabaseURL:           strings.TrimSpace(v.GetString("DATABASE_URL")),
		RunMigrations:         v.GetBool("RUN_MIGRATIONS"),
		RedisAddr:             strings.TrimSpace(v.GetString("REDIS_ADDR")),
		RedisPassword:         v.GetString("REDIS_PASSWORD"),
		RedisDB:               atLeast(v.GetInt("REDIS_DB"), 0, 0),
		StoreID:               v.GetString("STORE_LABEL"),
		AuthSecret:            strings.TrimSpace(v.GetString("AUTH_SECRET")),
		AccessTokenTTLMinutes: atLeast(v.GetInt("ACCESS_TOKEN_TTL_MINUTES"), 1, 480),

		SalesAPIURL:     strings.TrimSpace(v.GetString("SALES_API_URL")),
		SalesAPIToken:   strings.TrimSpace(v.GetString("SALES_API_TOKEN")),
		SalesAPITimeout: time.Duration(atLeast(v.GetInt("SALES_API_TIMEOUT_SECONDS"), 1, 30)) * time.Second,

		QuickPayRounding:   v.GetString("QUICK_PAY_ROUNDING"),
		MultiPayRounding:   v.GetString("MULTI_PAY_ROUNDING"),
		RedirectPath:       v.GetString("REDIRECT_PATH"),
		FlashTTL:           time.Duration(atLeast(v.GetInt("FLASH_TTL_SECONDS"), 1, 60)) * time.Second,
		CustomerTTL:        time.Duration(atLeast(v.GetInt("CUSTOMER_TTL_MINUTES"), 1, 240)) * time.Minute,
		SessionTTL:         time.Duration(atLeast(v.GetInt("SESSION_TTL_MINUTES"), 1, 30)) * time.Minute,
		ToastDismiss:       time.Duration(atLeast(v.GetInt("TOAST_DISMISS_MS"), 0, 2000)) * time.Millisecond,
		MultiRedirectDelay: time.Duration(atLeast(v.GetInt("MULTI_PAY_REDIRECT_DELAY_MS"), 0, 2500)) * time.Millisecond,
		PaymentBanks:       splitList(v.GetString("PAYMENT_BANKS")),
		UPIApps:            splitList(v.GetString("UPI_APPS")),

		PrinterType:    strings.ToLower(strings.TrimSpace(v.GetString("PRINTER_TYPE"))),
		PrinterAddress: strings.TrimSpace(v.GetString("PRINTER_ADDRESS")),
		PrinterUSBPath: strings.TrimSpace(v.GetString("PRINTER_USB_PATH")),
		PrinterWidth:   atLeast(v.GetInt("PRINTER_WIDTH"), 24, 48),

		ReceiptBucket:          strings.TrimSpace(v.GetString("RECEIPT_BUCKET")),
		ReceiptBucketRegion:    strings.TrimSpace(v.GetString("RECEIPT_BUCKET_REGION")),
		ReceiptBucketEndpoint:  strings.TrimSpace(v.GetString("RECEIPT_BUCKET_ENDPOINT")),
		ReceiptBucketAccessKey: strings.TrimSpace(v.GetString("RECEIPT_BUCKET_ACCESS_KEY")),
		ReceiptBucketSecretKey: strings.TrimSpace(v.GetString("RECEIPT_BUCKET_SECRET_KEY")),
	}
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.Port)
}

// atLeast falls back when val is below floor.
func atLeast(val int, floor int, fallback int) int {
	if val < floor {
		return fallback
	}
	return val
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
