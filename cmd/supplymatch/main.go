package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"supplymatch/internal"
	"supplymatch/internal/catalog"
	"supplymatch/internal/compare"
	"supplymatch/internal/config"
	"supplymatch/internal/connectors"
	"supplymatch/internal/ingest"
	"supplymatch/internal/listener"
	"supplymatch/internal/pipeline"
	serverhttp "supplymatch/internal/server/http"
	"supplymatch/internal/storage"
)

func main() {
	cfg, err := config.Load()
	must(err)

	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	logger := config.SetupLogger(cfg)

	db, err := storage.Open(cfg.DBPath)
	must(err)
	defer db.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	processor := pipeline.NewProcessingService(db, cfg, logger)

	cmd := os.Args[1]
	args := os.Args[2:]
	switch cmd {
	case "catalog:initial-sync":
		svc := catalog.NewSyncService(db, cfg, logger)
		count, err := svc.InitialSync(ctx)
		must(err)
		fmt.Printf("initial sync complete: %d catalog entries\n", count)
	case "catalog:incremental-sync":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		mode := fs.String("mode", "", "day|hour")
		_ = fs.Parse(args)
		if strings.TrimSpace(*mode) == "" {
			must(fmt.Errorf("--mode is required"))
		}
		svc := catalog.NewSyncService(db, cfg, logger)
		count, err := svc.IncrementalSync(ctx, *mode)
		must(err)
		fmt.Printf("incremental sync complete mode=%s entries=%d\n", *mode, count)
	case "catalog:status":
		svc := catalog.NewSyncService(db, cfg, logger)
		st, err := svc.Status(ctx)
		must(err)
		fmt.Printf("catalog entries=%d\n", st.Entries)
		if st.LastInitial != nil {
			fmt.Printf("  initial sync      %s\n", st.LastInitial.Format(time.RFC3339))
		}
		for _, mode := range []string{"day", "hour"} {
			if t, ok := st.LastIncremental[mode]; ok {
				fmt.Printf("  incremental %-5s %s\n", mode, t.Format(time.RFC3339))
			}
		}
	case "catalog:search":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		q := fs.String("q", "", "name, sku or brand")
		category := fs.String("category", "", "category contains")
		manufacturer := fs.String("manufacturer", "", "manufacturer contains")
		unmatched := fs.Bool("unmatched", false, "skip skus that already have an approved match")
		_ = fs.Parse(args)
		entries, err := db.SearchCatalog(ctx, storage.CatalogQuery{Q: *q, Category: *category, Manufacturer: *manufacturer, Unmatched: *unmatched, Limit: 50})
		must(err)
		for _, e := range entries {
			fmt.Printf("%d\t%s\t%s\t%s\t%s\n", e.ItemID, e.ManufacturerSKU, e.Manufacturer, e.Category, e.Name)
		}
	case "products:import":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		file := fs.String("file", "", "product master spreadsheet (xlsx|xls|csv|html)")
		_ = fs.Parse(args)
		if strings.TrimSpace(*file) == "" {
			must(fmt.Errorf("--file is required"))
		}
		content, err := os.ReadFile(*file)
		must(err)
		rows, err := ingest.Decode(*file, content)
		must(err)
		imp := ingest.InferProducts(rows)
		must(db.UpsertProducts(ctx, imp.Products))
		fmt.Printf("imported products=%d skipped=%d header_row=%d\n", len(imp.Products), imp.Skipped, imp.HeaderRow)
	case "upload:ingest":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		file := fs.String("file", "", "usage report (xlsx|xls|csv|html|pdf)")
		_ = fs.Parse(args)
		if strings.TrimSpace(*file) == "" {
			must(fmt.Errorf("--file is required"))
		}
		content, err := os.ReadFile(*file)
		must(err)
		res, err := processor.ProcessUpload(ctx, *file, content)
		must(err)
		printRun(res.Upload.ID, res.Stats)
	case "upload:match":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		uploadID := fs.String("upload", "", "upload id")
		_ = fs.Parse(args)
		if strings.TrimSpace(*uploadID) == "" {
			must(fmt.Errorf("--upload is required"))
		}
		stats, err := processor.Rematch(ctx, *uploadID)
		must(err)
		printRun(*uploadID, stats)
	case "export:xlsx":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		uploadID := fs.String("upload", "", "upload id")
		kind := fs.String("kind", "results", "results|comparison|proposal")
		out := fs.String("out", "", "output xlsx path (default OUTPUT_DIR/<upload>-<kind>.xlsx)")
		markup := fs.Float64("markup", -1, "markup percent (default DEFAULT_MARKUP_PCT)")
		markups := fs.String("markups", "", "per-item markup overrides, e.g. 17=35,18=20")
		_ = fs.Parse(args)
		if strings.TrimSpace(*uploadID) == "" {
			must(fmt.Errorf("--upload is required"))
		}
		var pricing pipeline.Pricing
		if *markup >= 0 {
			pricing.Markup = markup
		}
		pricing.Markups, err = compare.ParseMarkups(*markups)
		must(err)
		path := *out
		if strings.TrimSpace(path) == "" {
			path = filepath.Join(cfg.OutputDir, fmt.Sprintf("%s-%s.xlsx", *uploadID, *kind))
		}
		must(export(ctx, db, processor, *uploadID, *kind, path, pricing))
		fmt.Printf("exported %s to %s\n", *kind, path)
	case "approved:set":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		sku := fs.String("sku", "", "external manufacturer sku")
		productID := fs.Int64("product", 0, "internal product id")
		description := fs.String("description", "", "external description")
		by := fs.String("by", "admin", "approver")
		notes := fs.String("notes", "", "notes")
		_ = fs.Parse(args)
		if strings.TrimSpace(*sku) == "" || *productID <= 0 {
			must(fmt.Errorf("--sku and --product are required"))
		}
		_, err := db.GetProduct(ctx, *productID)
		must(err)
		m, err := db.UpsertApprovedMatch(ctx, internal.ApprovedMatch{
			ExternalSKU:         *sku,
			ExternalDescription: *description,
			ProductID:           *productID,
			ApprovedBy:          *by,
			Notes:               *notes,
		})
		must(err)
		fmt.Printf("approved match sku=%s product=%d (%s)\n", m.ExternalSKU, m.ProductID, m.ProductCode)
	case "approved:list":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		q := fs.String("q", "", "search sku, description or product code")
		limit := fs.Int("limit", 50, "page size")
		page := fs.Int("page", 1, "page")
		_ = fs.Parse(args)
		if *page < 1 {
			*page = 1
		}
		offset := (*page - 1) * *limit
		items, total, err := db.ListApprovedMatches(ctx, *q, *limit, offset)
		must(err)
		for _, m := range items {
			fmt.Printf("%s\t%d\t%s\t%s\t%s\n", m.ExternalSKU, m.ProductID, m.ProductCode, m.ApprovedBy, m.Notes)
		}
		fmt.Printf("%d of %d\n", len(items), total)
	case "approved:delete":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		sku := fs.String("sku", "", "external manufacturer sku")
		_ = fs.Parse(args)
		if strings.TrimSpace(*sku) == "" {
			must(fmt.Errorf("--sku is required"))
		}
		must(db.DeleteApprovedMatch(ctx, *sku))
		fmt.Printf("deleted approved match sku=%s\n", *sku)
	case "match:suggest":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		sku := fs.String("sku", "", "master catalog manufacturer sku")
		_ = fs.Parse(args)
		if strings.TrimSpace(*sku) == "" {
			must(fmt.Errorf("--sku is required"))
		}
		entry, list, err := processor.Suggestions(ctx, *sku)
		must(err)
		fmt.Printf("%s %s\n", entry.ManufacturerSKU, entry.Name)
		for _, s := range list {
			fmt.Printf("%3d  %d\t%s\t%s\n", s.Score, s.Product.ID, s.Product.ManufacturerItemCode, s.Product.ProductName)
		}
	case "mail:fetch":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		provider := fs.String("provider", cfg.MailListenerProvider, "gmail|imap")
		label := fs.String("label", cfg.MailListenerLabel, "mailbox/label")
		max := fs.Int("max", 50, "max messages")
		_ = fs.Parse(args)
		conn, err := listener.MakeConnector(ctx, cfg, *provider)
		must(err)
		fetch := connectors.NewFetchService(db, cfg.RawMailDir, conn, logger)
		result, err := fetch.FetchAndStore(ctx, *label, *max)
		must(err)
		fmt.Printf("mail fetch done provider=%s fetched=%d stored=%d\n", *provider, result.Fetched, result.Stored)
	case "mail:process":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		provider := fs.String("provider", "", "gmail|imap (empty = any)")
		messageID := fs.String("messageId", "", "specific message-id")
		batch := fs.Int("batch", cfg.MailListenerProcessBatch, "batch size")
		_ = fs.Parse(args)
		if strings.TrimSpace(*messageID) != "" {
			if *provider == "" {
				must(fmt.Errorf("--provider is required with --messageId"))
			}
			res, err := processor.ProcessByProviderMessageID(ctx, *provider, *messageID)
			must(err)
			fmt.Printf("processed mail id=%d report=%t uploads=%d\n", res.InboxID, res.Report, len(res.Uploads))
			return
		}
		mails, uploads, err := processor.ProcessPending(ctx, *batch, *provider)
		must(err)
		fmt.Printf("processed pending mails=%d uploads=%d\n", mails, uploads)
	case "mail:listen":
		s := listener.NewService(db, cfg, logger)
		must(s.Run(ctx))
	case "serve":
		must(serve(ctx, cfg, db, processor, logger))
	default:
		usage()
		os.Exit(1)
	}
}

func printRun(uploadID string, s pipeline.RunStats) {
	fmt.Printf("upload=%s items=%d enriched=%d matched=%d review=%d\n", uploadID, s.Items, s.Enriched, s.Counters.Matched, s.Counters.Review)
	for _, st := range internal.AllStatuses {
		if n := s.Counts[st]; n > 0 {
			fmt.Printf("  %-12s %d\n", st, n)
		}
	}
}

func export(ctx context.Context, db *storage.DB, p *pipeline.ProcessingService, uploadID, kind, path string, pricing pipeline.Pricing) error {
	switch kind {
	case "results":
		items, err := db.ItemsWithProducts(ctx, uploadID)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			return fmt.Errorf("no items for upload=%s", uploadID)
		}
		return pipeline.ExportResults(items, path)
	case "comparison":
		_, c, err := p.Comparison(ctx, uploadID, pricing)
		if err != nil {
			return err
		}
		return pipeline.ExportComparison(c, path)
	case "proposal":
		prop, err := p.Proposal(ctx, uploadID, pricing)
		if err != nil {
			return err
		}
		return pipeline.ExportProposal(prop, path)
	default:
		return fmt.Errorf("unsupported export kind: %s", kind)
	}
}

func serve(ctx context.Context, cfg config.Config, db *storage.DB, p *pipeline.ProcessingService, logger zerolog.Logger) error {
	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           serverhttp.NewRouter(cfg, db, p, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("http server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	logger.Info().Msg("http server shutting down")
	return srv.Shutdown(shutdownCtx)
}

func usage() {
	fmt.Println("usage: supplymatch <command> [flags]")
	fmt.Println("commands:")
	fmt.Println("  catalog:initial-sync")
	fmt.Println("  catalog:incremental-sync --mode day|hour")
	fmt.Println("  catalog:status")
	fmt.Println("  catalog:search [--q text] [--category c] [--manufacturer m] [--unmatched]")
	fmt.Println("  products:import --file products.xlsx")
	fmt.Println("  upload:ingest --file report.xlsx")
	fmt.Println("  upload:match --upload <id>")
	fmt.Println("  export:xlsx --upload <id> [--kind results|comparison|proposal] [--out file.xlsx] [--markup 50] [--markups 17=35]")
	fmt.Println("  approved:set --sku <sku> --product <id> [--by name] [--notes text]")
	fmt.Println("  approved:list [--q text] [--page n]")
	fmt.Println("  approved:delete --sku <sku>")
	fmt.Println("  match:suggest --sku <sku>")
	fmt.Println("  mail:fetch [--provider gmail|imap] [--label INBOX] [--max 50]")
	fmt.Println("  mail:process [--provider gmail|imap] [--messageId <id>] [--batch 20]")
	fmt.Println("  mail:listen")
	fmt.Println("  serve")
}

func must(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
