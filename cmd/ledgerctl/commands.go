package main

import (
	"fmt"
	"io"
	"net/url"
	"text/tabwriter"

	"github.com/boddenberg/finance-tracker-bfa/internal/domain"
	"github.com/boddenberg/finance-tracker-bfa/internal/service"

	"github.com/spf13/cobra"
)

type filterFlags struct {
	start, end, typ, category string
}

func (f *filterFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.start, "start", "", "first day, YYYY-MM-DD")
	cmd.Flags().StringVar(&f.end, "end", "", "last day, YYYY-MM-DD")
	cmd.Flags().StringVar(&f.typ, "type", "", "income or expense")
	cmd.Flags().StringVar(&f.category, "category", "", "category ID or name")
}

func (f *filterFlags) filter() (domain.Filter, error) {
	return domain.ParseFilter(url.Values{
		domain.ParamStartDate: {f.start},
		domain.ParamEndDate:   {f.end},
		domain.ParamType:      {f.typ},
		domain.ParamCategory:  {f.category},
	})
}

func table(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

func categoriesCmd(get func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "categories",
		Short: "List categories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cats, err := get().ledger.Categories.List(cmd.Context())
			if err != nil {
				return err
			}
			w := table(cmd.OutOrStdout())
			fmt.Fprintln(w, "ID\tNAME\tTYPE")
			for _, c := range cats {
				fmt.Fprintf(w, "%s\t%s\t%s\n", c.ID, c.Name, c.Type)
			}
			return w.Flush()
		},
	}
}

func transactionsCmd(get func() *app) *cobra.Command {
	var ff filterFlags
	cmd := &cobra.Command{
		Use:     "transactions",
		Aliases: []string{"tx"},
		Short:   "List transactions matching a filter",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := ff.filter()
			if err != nil {
				return err
			}
			a := get()
			snap, err := a.ledger.Transactions.Resolve(cmd.Context(), f)
			if err != nil {
				return err
			}
			w := table(cmd.OutOrStdout())
			fmt.Fprintln(w, "DATE\tID\tTYPE\tAMOUNT\tCATEGORY\tDESCRIPTION")
			for _, lt := range snap.Listing() {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
					lt.Date, lt.ID, lt.Type, lt.Amount.Format(a.currency), lt.CategoryName, lt.Description)
			}
			return w.Flush()
		},
	}
	ff.register(cmd)
	return cmd
}

func summaryCmd(get func() *app) *cobra.Command {
	var ff filterFlags
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Show totals by category and month",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := ff.filter()
			if err != nil {
				return err
			}
			a := get()
			snap, err := a.ledger.Transactions.Resolve(cmd.Context(), f)
			if err != nil {
				return err
			}
			agg := snap.Aggregate()
			money := func(v domain.Amount) string { return v.Format(a.currency) }

			w := table(cmd.OutOrStdout())
			fmt.Fprintf(w, "Income\t%s\n", money(agg.TotalIncome))
			fmt.Fprintf(w, "Expense\t%s\n", money(agg.TotalExpense))
			fmt.Fprintf(w, "Net\t%s\n", money(agg.Net))
			fmt.Fprintf(w, "Transactions\t%d\n\n", agg.Count)

			fmt.Fprintln(w, "CATEGORY\tINCOME\tEXPENSE\tCOUNT")
			for _, c := range agg.ByCategory {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\n", c.Name, money(c.Income), money(c.Expense), c.Count)
			}
			fmt.Fprintln(w)

			fmt.Fprintln(w, "MONTH\tINCOME\tEXPENSE\tNET")
			for _, m := range agg.ByMonth {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", m.Month, money(m.Income), money(m.Expense), money(m.Net))
			}
			return w.Flush()
		},
	}
	ff.register(cmd)
	return cmd
}

func addCmd(get func() *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create a category or transaction",
	}

	var name, catType string
	category := &cobra.Command{
		Use:   "category",
		Short: "Create a category",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			res, err := get().ledger.Coordinator.Submit(cmd.Context(), service.Mutation{
				Kind:     service.KindCategory,
				Op:       service.OpCreate,
				Category: &domain.CategoryDraft{Name: name, Type: domain.EntryType(catType)},
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created category %s (%s)\n", res.Category.ID, res.Category.Name)
			return nil
		},
	}
	category.Flags().StringVar(&name, "name", "", "category name")
	category.Flags().StringVar(&catType, "type", "", "income or expense")
	_ = category.MarkFlagRequired("name")
	_ = category.MarkFlagRequired("type")

	var txType, amount, categoryID, date, description string
	transaction := &cobra.Command{
		Use:   "transaction",
		Short: "Create a transaction; amount is in major units, e.g. 12.50",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := get()
			minor, err := domain.ParseAmount(amount, a.currency.Scale)
			if err != nil {
				return err
			}
			d, err := domain.ParseDate(date)
			if err != nil {
				return &domain.ErrValidation{Field: "date", Message: "expected YYYY-MM-DD"}
			}
			res, err := a.ledger.Coordinator.Submit(cmd.Context(), service.Mutation{
				Kind: service.KindTransaction,
				Op:   service.OpCreate,
				Transaction: &domain.TransactionDraft{
					Type:        domain.EntryType(txType),
					Amount:      minor,
					CategoryID:  categoryID,
					Date:        d,
					Description: description,
				},
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created transaction %s (%s)\n",
				res.Transaction.ID, res.Transaction.Amount.Format(a.currency))
			return nil
		},
	}
	transaction.Flags().StringVar(&txType, "type", "", "income or expense")
	transaction.Flags().StringVar(&amount, "amount", "", "amount in major units")
	transaction.Flags().StringVar(&categoryID, "category", "", "category ID")
	transaction.Flags().StringVar(&date, "date", "", "YYYY-MM-DD")
	transaction.Flags().StringVar(&description, "description", "", "free text")
	for _, f := range []string{"type", "amount", "category", "date"} {
		_ = transaction.MarkFlagRequired(f)
	}

	cmd.AddCommand(category, transaction)
	return cmd
}

func removeCmd(get func() *app) *cobra.Command {
	return &cobra.Command{
		Use:       "rm (category|transaction) ID",
		Short:     "Delete a category or transaction",
		Args:      cobra.ExactArgs(2),
		ValidArgs: []string{string(service.KindCategory), string(service.KindTransaction)},
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := service.ParseEntityKind(args[0])
			if err != nil {
				return err
			}
			if _, err := get().ledger.Coordinator.Submit(cmd.Context(), service.Mutation{
				Kind: kind, Op: service.OpDelete, ID: args[1],
			}); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s %s\n", kind, args[1])
			return nil
		},
	}
}
