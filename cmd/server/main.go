package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/wabisabiit/Wabi-Sabi-ERP-Project-sub000/internal/archive"
	"github.com/wabisabiit/Wabi-Sabi-ERP-Project-sub000/internal/cache"
	"github.com/wabisabiit/Wabi-Sabi-ERP-Project-sub000/internal/checkout"
	"github.com/wabisabiit/Wabi-Sabi-ERP-Project-sub000/internal/config"
	"github.com/wabisabiit/Wabi-Sabi-ERP-Project-sub000/internal/events"
	"github.com/wabisabiit/Wabi-Sabi-ERP-Project-sub000/internal/httpapi"
	"github.com/wabisabiit/Wabi-Sabi-ERP-Project-sub000/internal/metrics"
	"github.com/wabisabiit/Wabi-Sabi-ERP-Project-sub000/internal/outcome"
	"github.com/wabisabiit/Wabi-Sabi-ERP-Project-sub000/internal/payment"
	"github.com/wabisabiit/Wabi-Sabi-ERP-Project-sub000/internal/receipt"
	"github.com/wabisabiit/Wabi-Sabi-ERP-Project-sub000/internal/reconcile"
	"github.com/wabisabiit/Wabi-Sabi-ERP-Project-sub000/internal/saleapi"
	"github.com/wabisabiit/Wabi-Sabi-ERP-Project-sub000/internal/service"
	"github.com/wabisabiit/Wabi-Sabi-ERP-Project-sub000/internal/store"
	"github.com/wabisabiit/Wabi-Sabi-ERP-Project-sub000/internal/store/memory"
	pgstore "github.com/wabisabiit/Wabi-Sabi-ERP-Project-sub000/internal/store/postgres"
)

func main() {
	cfg := config.Load()
	if err := validateSecurityConfig(cfg); err != nil {
		log.Fatalf("invalid security configuration: %v", err)
	}
	quickRounding, multiRounding, err := roundingPolicies(cfg)
	if err != nil {
		log.Fatalf("invalid payment configuration: %v", err)
	}
	printer, err := receipt.NewPrinter(cfg.PrinterType, cfg.PrinterAddress, cfg.PrinterUSBPath)
	if err != nil {
		log.Fatalf("invalid printer configuration: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var repo store.Repository
	closers := make([]func() error, 0, 2)

	if cfg.DatabaseURL != "" {
		pg, err := pgstore.New(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("postgres unavailable (%v) and DATABASE_URL is set; refusing to start with in-memory fallback", err)
		}
		if cfg.RunMigrations {
			if err := pg.Migrate(); err != nil {
				log.Fatalf("migrations failed: %v", err)
			}
			log.Println("migrations: up to date")
		}
		repo = pg
		closers = append(closers, pg.Close)
		log.Println("repository: postgres")
	} else {
		repo = memory.NewSeeded()
		log.Println("repository: in-memory")
	}

	terminals := cache.TerminalCache(cache.NewMemoryTerminalCache())
	if cfg.RedisAddr != "" {
		redisCache := cache.NewRedisTerminalCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := redisCache.Ping(ctx); err != nil {
			log.Printf("redis unavailable (%v), keeping terminal state in memory", err)
		} else {
			terminals = redisCache
			closers = append(closers, redisCache.Close)
			log.Println("terminal cache: redis")
		}
	} else {
		log.Println("terminal cache: in-memory")
	}

	receiptArchive := archive.Archive(archive.Noop{})
	if cfg.ReceiptBucket != "" {
		s3Archive, err := archive.NewS3Archive(ctx, archive.Options{
			Bucket:    cfg.ReceiptBucket,
			Region:    cfg.ReceiptBucketRegion,
			Endpoint:  cfg.ReceiptBucketEndpoint,
			AccessKey: cfg.ReceiptBucketAccessKey,
			SecretKey: cfg.ReceiptBucketSecretKey,
		})
		if err != nil {
			log.Printf("receipt archive unavailable (%v), receipts will not be archived", err)
		} else {
			receiptArchive = s3Archive
			log.Printf("receipt archive: s3://%s", cfg.ReceiptBucket)
		}
	}

	runCtx, stopRun := context.WithCancel(context.Background())
	defer stopRun()

	hub := events.NewHub(cfg.AllowedOrigin)
	go hub.Run(runCtx)

	m := metrics.New()
	renderer := receipt.NewRenderer(cfg.StoreID, cfg.PrinterWidth)
	presenter := outcome.NewPresenter(terminals, printer, renderer, hub, outcome.Config{
		RedirectPath:       cfg.RedirectPath,
		DismissAfter:       cfg.ToastDismiss,
		MultiRedirectDelay: cfg.MultiRedirectDelay,
		FlashTTL:           cfg.FlashTTL,
	})
	backend := saleapi.New(cfg.SalesAPIURL, cfg.SalesAPIToken, cfg.SalesAPITimeout)

	svc := service.New(repo, backend, terminals, presenter, renderer, receiptArchive, m, service.Options{
		StoreID: cfg.StoreID,
		Checkout: checkout.Config{
			StoreLabel:    cfg.StoreID,
			Defaults:      payment.Defaults{Banks: cfg.PaymentBanks, UPIApps: cfg.UPIApps},
			QuickRounding: quickRounding,
			MultiRounding: multiRounding,
		},
		SessionTTL:  cfg.SessionTTL,
		CustomerTTL: cfg.CustomerTTL,
	})
	go svc.RunJanitor(runCtx, time.Minute)

	auth := httpapi.NewAuthManager(ctx, cfg.AuthSecret, time.Duration(cfg.AccessTokenTTLMinutes)*time.Minute, repo)
	api := httpapi.New(svc, auth, hub, m, cfg.AllowedOrigin)

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      cfg.SalesAPITimeout + 10*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("POS payment service listening on %s", cfg.Address())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
	stopRun()

	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			log.Printf("close error: %v", err)
		}
	}

	log.Println("server stopped")
}

func validateSecurityConfig(cfg config.Config) error {
	if len(cfg.AuthSecret) < 32 {
		return fmt.Errorf("AUTH_SECRET must be set and at least 32 characters")
	}
	if cfg.SalesAPIURL == "" {
		return fmt.Errorf("SALES_API_URL must be set")
	}
	return nil
}

func roundingPolicies(cfg config.Config) (reconcile.RoundingPolicy, reconcile.RoundingPolicy, error) {
	quick, err := reconcile.ParseRoundingPolicy(cfg.QuickPayRounding)
	if err != nil {
		return "", "", fmt.Errorf("QUICK_PAY_ROUNDING: %w", err)
	}
	multi, err := reconcile.ParseRoundingPolicy(cfg.MultiPayRounding)
	if err != nil {
		return "", "", fmt.Errorf("MULTI_PAY_ROUNDING: %w", err)
	}
	return quick, multi, nil
}
