// Command ledgerctl queries and edits the remote ledger from a terminal,
// using the same caching core as the BFA server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/boddenberg/finance-tracker-bfa/internal/domain"
	"github.com/boddenberg/finance-tracker-bfa/internal/infra/client"
	"github.com/boddenberg/finance-tracker-bfa/internal/infra/observability"
	"github.com/boddenberg/finance-tracker-bfa/internal/infra/resilience"
	"github.com/boddenberg/finance-tracker-bfa/internal/service"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// app is built once per invocation from flags and environment.
type app struct {
	ledger   *service.Ledger
	currency domain.Currency
	logger   *zap.Logger
}

func newRootCmd() *cobra.Command {
	v := viper.New()
	var a *app

	root := &cobra.Command{
		Use:           "ledgerctl",
		Short:         "Query and edit the personal ledger",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			built, err := newApp(v)
			if err != nil {
				return err
			}
			a = built
			return nil
		},
		PersistentPostRun: func(_ *cobra.Command, _ []string) {
			if a != nil {
				a.ledger.Close()
				_ = a.logger.Sync()
			}
		},
	}

	flags := root.PersistentFlags()
	flags.String("api-url", "http://localhost:8081", "ledger API base URL")
	flags.String("token", "", "ledger API bearer token")
	flags.String("currency", "IDR", "ISO 4217 currency code")
	flags.Duration("timeout", 10*time.Second, "HTTP timeout")
	flags.String("log-level", "warn", "log level (debug, info, warn, error)")

	_ = v.BindPFlag("api_url", flags.Lookup("api-url"))
	_ = v.BindPFlag("token", flags.Lookup("token"))
	_ = v.BindPFlag("currency", flags.Lookup("currency"))
	_ = v.BindPFlag("timeout", flags.Lookup("timeout"))
	_ = v.BindPFlag("log_level", flags.Lookup("log-level"))

	// Same variables as the server.
	_ = v.BindEnv("api_url", "LEDGER_API_URL")
	_ = v.BindEnv("token", "LEDGER_API_TOKEN")
	_ = v.BindEnv("currency", "LEDGER_CURRENCY")
	_ = v.BindEnv("timeout", "HTTP_TIMEOUT")
	_ = v.BindEnv("log_level", "LOG_LEVEL")

	get := func() *app { return a }
	root.AddCommand(categoriesCmd(get))
	root.AddCommand(transactionsCmd(get))
	root.AddCommand(summaryCmd(get))
	root.AddCommand(addCmd(get))
	root.AddCommand(removeCmd(get))
	return root
}

func newApp(v *viper.Viper) (*app, error) {
	currency, err := domain.NewCurrency(v.GetString("currency"))
	if err != nil {
		return nil, err
	}
	logger := observability.NewLogger(v.GetString("log_level"))

	cfg := resilience.Config{MaxRetries: 2, InitialBackoff: 200 * time.Millisecond, MaxConcurrency: 4}
	api := client.NewLedgerClient(
		&http.Client{Timeout: v.GetDuration("timeout")},
		v.GetString("api_url"),
		v.GetString("token"),
		currency,
		resilience.NewCircuitBreaker("ledger-api", domain.IsDomain),
		cfg,
	)

	// One-shot process: short TTLs are enough to share work within a command.
	ledger := service.NewLedger(api, service.LedgerConfig{
		ResolveTTL:  time.Minute,
		CategoryTTL: time.Minute,
		SettledTTL:  time.Minute,
	}, observability.NewMetrics(), logger)

	return &app{ledger: ledger, currency: currency, logger: logger}, nil
}
