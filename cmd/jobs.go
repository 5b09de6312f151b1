package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/vibast-solutions/ms-go-billing/app/service"
	"github.com/vibast-solutions/ms-go-billing/config"
)

var (
	workerMode bool

	swapOldPriceID uint64
	swapNewPriceID uint64
	swapProration  string
	swapChargeNow  bool
)

var swapPriceCmd = &cobra.Command{
	Use:   "swap-price",
	Short: "Move active subscriptions from one price to another",
	Run: func(_ *cobra.Command, _ []string) {
		runCommand(
			"swap_price",
			func(cfg *config.Config) time.Duration { return cfg.Jobs.SwapInterval },
			func(s *service.BillingService, ctx context.Context) error {
				_, err := s.RunSwapPriceBatch(ctx, service.SwapPriceBatchInput{
					OldPriceID:        swapOldPriceID,
					NewPriceID:        swapNewPriceID,
					ProrationBehavior: swapProration,
					ChargeNow:         swapChargeNow,
				})
				return err
			},
		)
	},
}

func init() {
	rootCmd.AddCommand(swapPriceCmd)

	swapPriceCmd.Flags().Uint64Var(&swapOldPriceID, "old-price", 0, "Price id subscriptions are billed on")
	swapPriceCmd.Flags().Uint64Var(&swapNewPriceID, "new-price", 0, "Price id to move subscriptions onto")
	swapPriceCmd.Flags().StringVar(&swapProration, "proration", "", "Proration behavior passed to the gateway")
	swapPriceCmd.Flags().BoolVar(&swapChargeNow, "charge-now", false, "Invoice the difference immediately")

	rootCmd.PersistentFlags().BoolVar(&workerMode, "worker", false, "Run continuously using configured interval")
}

func runCommand(
	name string,
	intervalResolver func(cfg *config.Config) time.Duration,
	fn func(s *service.BillingService, ctx context.Context) error,
) {
	cfg, billingService, cleanup := mustCreateBillingService()
	defer cleanup()

	if workerMode {
		runWorker(name, intervalResolver(cfg), billingService, fn)
		return
	}

	ctx := context.Background()
	runJob(name, func() error { return fn(billingService, ctx) })
}

func runWorker(
	name string,
	interval time.Duration,
	billingService *service.BillingService,
	fn func(s *service.BillingService, ctx context.Context) error,
) {
	if interval <= 0 {
		logrus.WithField("job", name).Fatal("invalid worker interval")
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runJob(name, func() error { return fn(billingService, ctx) })

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	for {
		select {
		case <-quit:
			logrus.WithField("job", name).Info("Worker shutdown requested")
			return
		case <-ticker.C:
			runJob(name, func() error { return fn(billingService, ctx) })
		}
	}
}

func runJob(name string, fn func() error) {
	start := time.Now()
	err := fn()
	latency := time.Since(start)
	if err != nil {
		logrus.WithError(err).WithField("job", name).WithField("latency", latency.String()).Error("job_failed")
		return
	}
	logrus.WithField("job", name).WithField("latency", latency.String()).Info("job_completed")
}
