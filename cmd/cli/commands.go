package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/dvloznov/moliya/internal/app"
	"github.com/dvloznov/moliya/internal/config"
	"github.com/dvloznov/moliya/internal/domain"
	"github.com/dvloznov/moliya/internal/ledger"
)

func runList(_ context.Context, e *env, args []string) error {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	limit := fs.Int("n", 0, "Show only the n most recent transactions (0 = all)")
	asJSON := fs.Bool("json", false, "Print JSON instead of a table")
	fs.Parse(args)

	txs := e.app.Store.Transactions()
	if *limit > 0 && *limit < len(txs) {
		txs = txs[:*limit]
	}
	if *asJSON {
		if txs == nil {
			txs = []domain.Transaction{}
		}
		return writeJSON(e.out, txs)
	}
	if len(txs) == 0 {
		fmt.Fprintln(e.out, "Hozircha tranzaksiyalar yo'q.")
		return nil
	}

	tw := tabwriter.NewWriter(e.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSANA\tTUR\tKATEGORIYA\tSUMMA\tTO'LOV\tSHAXS")
	for _, tx := range txs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			tx.ID, tx.Date, tx.Kind, tx.Category, formatAmount(tx.Amount), tx.PaymentMethod, tx.PersonName)
	}
	return tw.Flush()
}

func runSummary(_ context.Context, e *env, args []string) error {
	fs := flag.NewFlagSet("summary", flag.ExitOnError)
	asJSON := fs.Bool("json", false, "Print JSON")
	fs.Parse(args)

	s := e.app.Summary()
	if *asJSON {
		return writeJSON(e.out, s)
	}

	fmt.Fprintf(e.out, "Karta:  %s\n", formatAmount(s.Balances.Card))
	fmt.Fprintf(e.out, "Naqd:   %s\n", formatAmount(s.Balances.Cash))
	fmt.Fprintf(e.out, "Jami:   %s\n", formatAmount(s.Total))

	fmt.Fprintln(e.out, "\nXarajatlar:")
	for _, c := range s.Categories {
		fmt.Fprintf(e.out, "  %-20s %s\n", c.Category, formatAmount(c.Amount))
	}

	if len(s.People) > 0 {
		fmt.Fprintln(e.out, "\nQarzlar:")
		for _, p := range s.People {
			fmt.Fprintf(e.out, "  %-20s %s\n", p.Name, formatAmount(p.Balance))
		}
	}
	return nil
}

func runPeople(_ context.Context, e *env, args []string) error {
	fs := flag.NewFlagSet("people", flag.ExitOnError)
	asJSON := fs.Bool("json", false, "Print JSON")
	fs.Parse(args)

	people := e.app.Summary().People
	if *asJSON {
		return writeJSON(e.out, people)
	}
	if len(people) == 0 {
		fmt.Fprintln(e.out, "Ro'yxat bo'sh.")
		return nil
	}
	for _, p := range people {
		// Positive balances are owed to the user.
		fmt.Fprintf(e.out, "%-20s %s\n", p.Name, formatAmount(p.Balance))
	}
	return nil
}

func runAddPerson(ctx context.Context, e *env, args []string) error {
	fs := flag.NewFlagSet("add-person", flag.ExitOnError)
	name := fs.String("name", "", "Person's name (required)")
	fs.Parse(args)

	person, err := e.app.Store.AddPerson(ctx, *name)
	if err != nil {
		return err
	}
	fmt.Fprintf(e.out, "Qo'shildi: %s (%s)\n", person.Name, person.ID)
	return nil
}

func runEdit(ctx context.Context, e *env, args []string) error {
	fs := flag.NewFlagSet("edit", flag.ExitOnError)
	id := fs.String("id", "", "Transaction ID (required)")
	amount := fs.String("amount", "", "New amount")
	kind := fs.String("type", "", "New type: Xarajat, Daromad, 'Qarz Berdim', 'Qarz Oldim'")
	category := fs.String("category", "", "New category")
	payment := fs.String("payment", "", "New payment method: Karta or Naqd")
	person := fs.String("person", "", "New person (debts only)")
	note := fs.String("note", "", "New note")
	fs.Parse(args)

	if *id == "" {
		return errors.New("-id is required")
	}
	orig, ok := e.app.Store.Get(*id)
	if !ok {
		return domain.ErrTransactionNotFound
	}

	// Unset flags keep the current value.
	in := domain.EditInput{
		Amount:        domain.LenientAmount(orig.Amount),
		Kind:          string(orig.Kind),
		Category:      orig.Category,
		PaymentMethod: string(orig.PaymentMethod),
		PersonName:    orig.PersonName,
		Note:          orig.Note,
	}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "amount":
			in.Amount = domain.LenientAmount(domain.ParseAmountLenient(*amount))
		case "type":
			in.Kind = *kind
		case "category":
			in.Category = *category
		case "payment":
			in.PaymentMethod = *payment
		case "person":
			in.PersonName = *person
		case "note":
			in.Note = *note
		}
	})

	tx, err := e.app.EditTransaction(ctx, *id, in)
	if err != nil {
		return err
	}
	fmt.Fprintf(e.out, "Yangilandi: %s %s %s\n", tx.Kind, tx.Category, formatAmount(tx.Amount))
	return nil
}

func runDelete(ctx context.Context, e *env, args []string) error {
	fs := flag.NewFlagSet("delete", flag.ExitOnError)
	id := fs.String("id", "", "Transaction ID (required)")
	yes := fs.Bool("yes", false, "Skip the confirmation prompt")
	fs.Parse(args)

	if *id == "" {
		return errors.New("-id is required")
	}
	tx, ok := e.app.Store.Get(*id)
	if !ok {
		return domain.ErrTransactionNotFound
	}

	if !*yes {
		fmt.Fprintf(e.out, "%s | %s | %s\nO'chirilsinmi? [ha/yo'q]: ", tx.Date, tx.Kind, formatAmount(tx.Amount))
		in := bufio.NewScanner(e.in)
		if !in.Scan() || !isYes(in.Text()) {
			fmt.Fprintln(e.out, "Bekor qilindi.")
			return nil
		}
	}

	if err := e.app.DeleteTransaction(ctx, *id); err != nil {
		return err
	}
	fmt.Fprintln(e.out, "O'chirildi.")
	return nil
}

func runAdvice(ctx context.Context, e *env, args []string) error {
	fs := flag.NewFlagSet("advice", flag.ExitOnError)
	fs.Parse(args)

	fmt.Fprintln(e.out, e.app.AdviseNow(ctx))
	return nil
}

func runExportBQ(ctx context.Context, e *env, args []string) error {
	fs := flag.NewFlagSet("export-bq", flag.ExitOnError)
	timeout := fs.Duration("timeout", 5*time.Minute, "Abort the export after this long")
	asJSON := fs.Bool("json", false, "Print JSON")
	fs.Parse(args)

	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	res, err := e.app.ExportBigQuery(ctx)
	if err != nil {
		return err
	}
	if *asJSON {
		return writeJSON(e.out, res)
	}

	fmt.Fprintf(e.out, "Export %s: %d rows\n", res.ExportID, res.Rows)
	for _, t := range res.CategoryTotals {
		fmt.Fprintf(e.out, "  %-20s %s\n", t.Category, formatAmount(t.Total))
	}
	return nil
}

func runSyncNotion(ctx context.Context, e *env, args []string) error {
	fs := flag.NewFlagSet("sync-notion", flag.ExitOnError)
	dryRun := fs.Bool("dry-run", false, "Dry run mode - preview changes without syncing")
	timeout := fs.Duration("timeout", 10*time.Minute, "Abort the sync after this long")
	fs.Parse(args)

	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	res, err := e.app.SyncNotion(ctx, *dryRun)
	if err != nil {
		return err
	}

	prefix := ""
	if *dryRun {
		prefix = "[DRY RUN] "
	}
	fmt.Fprintf(e.out, "%screated=%d updated=%d skipped=%d archived=%d failed=%d\n",
		prefix, res.Created, res.Updated, res.Skipped, res.Archived, res.Failed)
	return nil
}

func runMigrateStore(ctx context.Context, e *env, args []string) error {
	fs := flag.NewFlagSet("migrate-store", flag.ExitOnError)
	to := fs.String("to", "", "Target backend: file, redis, gcs or memory")
	dir := fs.String("dir", "", "Target directory for the file backend")
	bucket := fs.String("bucket", "", "Target bucket or gs:// URI for the gcs backend")
	fs.Parse(args)

	if *to == "" {
		return errors.New("-to is required")
	}

	target := *e.app.Config
	if *dir != "" {
		target.Store.Dir = *dir
	}
	if *bucket != "" {
		target.GCS.Bucket = *bucket
	}
	if sameStore(e.app.Config, &target, *to) {
		return fmt.Errorf("target %s is the configured store", *to)
	}

	dst, closeDst, err := app.OpenPersister(ctx, &target, *to)
	if err != nil {
		return err
	}
	defer closeDst()

	report, err := ledger.Migrate(ctx, e.app.Persister, dst)
	if err != nil {
		return err
	}
	e.log.Info().Str("from", e.app.Config.Store.Backend).Str("to", *to).
		Strs("copied", report.Copied).Strs("missing", report.Missing).
		Msg("ledger migrated")
	fmt.Fprintf(e.out, "Copied %d documents to %s\n", len(report.Copied), *to)
	return nil
}

func sameStore(src, dst *config.Config, backend string) bool {
	if src.Store.Backend != backend {
		return false
	}
	switch backend {
	case config.BackendFile:
		return src.Store.Dir == dst.Store.Dir
	case config.BackendGCS:
		return src.GCS.Bucket == dst.GCS.Bucket
	default:
		return true
	}
}
