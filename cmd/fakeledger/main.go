// Command fakeledger serves an in-memory ledger API for local development.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/boddenberg/finance-tracker-bfa/internal/domain"
	"github.com/boddenberg/finance-tracker-bfa/internal/infra/fakeledger"
	"github.com/boddenberg/finance-tracker-bfa/internal/infra/observability"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	v := viper.New()
	cmd := &cobra.Command{
		Use:   "fakeledger",
		Short: "In-memory ledger API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), v)
		},
	}
	cmd.Flags().Int("port", 8081, "listen port")
	cmd.Flags().String("token", "", "bearer token required on every request")
	cmd.Flags().String("currency", "IDR", "ISO 4217 currency code")
	cmd.Flags().Bool("seed", false, "start with demo categories and transactions")
	cmd.Flags().String("log-level", "info", "log level")

	// FAKE_LEDGER_PORT, FAKE_LEDGER_TOKEN, ...
	v.SetEnvPrefix("FAKE_LEDGER")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	_ = v.BindPFlags(cmd.Flags())
	return cmd
}

func run(ctx context.Context, v *viper.Viper) error {
	logger := observability.NewLogger(v.GetString("log-level"))
	defer logger.Sync()

	currency, err := domain.NewCurrency(v.GetString("currency"))
	if err != nil {
		return err
	}

	ledger := fakeledger.New(currency, v.GetString("token"))
	if v.GetBool("seed") {
		seed(ledger)
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", v.GetInt("port")),
		Handler:           observability.ZapLoggerMiddleware(logger)(ledger.Handler()),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("fake ledger listening", zap.String("addr", srv.Addr), zap.Bool("seeded", v.GetBool("seed")))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func seed(s *fakeledger.Server) {
	s.SeedCategory(domain.Category{ID: "cat-salary", Name: "Salary", Type: domain.Income})
	s.SeedCategory(domain.Category{ID: "cat-food", Name: "Food", Type: domain.Expense})
	s.SeedCategory(domain.Category{ID: "cat-rent", Name: "Rent", Type: domain.Expense})

	s.SeedTransaction(domain.Transaction{ID: "tx-1", Type: domain.Income, Amount: 1500000000, CategoryID: "cat-salary", Date: domain.NewDate(2024, 1, 1), Description: "January salary"})
	s.SeedTransaction(domain.Transaction{ID: "tx-2", Type: domain.Expense, Amount: 450000000, CategoryID: "cat-rent", Date: domain.NewDate(2024, 1, 3), Description: "Rent"})
	s.SeedTransaction(domain.Transaction{ID: "tx-3", Type: domain.Expense, Amount: 7500000, CategoryID: "cat-food", Date: domain.NewDate(2024, 1, 12), Description: "Groceries"})
	s.SeedTransaction(domain.Transaction{ID: "tx-4", Type: domain.Income, Amount: 1500000000, CategoryID: "cat-salary", Date: domain.NewDate(2024, 2, 1), Description: "February salary"})
	s.SeedTransaction(domain.Transaction{ID: "tx-5", Type: domain.Expense, Amount: 12000000, CategoryID: "cat-food", Date: domain.NewDate(2024, 2, 9), Description: "Dinner"})
}
