package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"text/tabwriter"
	"time"

	"github.com/wadjakorntonsri/go-link-analytics/pkg/adapters/repository"
	"github.com/wadjakorntonsri/go-link-analytics/pkg/config"
	"github.com/wadjakorntonsri/go-link-analytics/pkg/core/domain"
	"github.com/wadjakorntonsri/go-link-analytics/pkg/core/services"
)

const usage = "expected 'export', 'import' or 'stats' subcommands"

func main() {
	exportCmd := flag.NewFlagSet("export", flag.ExitOnError)
	exportFile := exportCmd.String("file", "", "write the archive here instead of stdout")
	importCmd := flag.NewFlagSet("import", flag.ExitOnError)
	importFile := importCmd.String("file", "", "JSON archive to import")
	statsCmd := flag.NewFlagSet("stats", flag.ExitOnError)
	statsBucket := statsCmd.Duration("bucket", 24*time.Hour, "time series bucket width")

	if len(os.Args) < 2 {
		fmt.Println(usage)
		os.Exit(1)
	}

	cfg := config.Load()
	repo, err := repository.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to db: %v", err)
	}
	if repo == nil {
		log.Fatal("DATABASE_URL=memory has nothing to export or import")
	}
	defer repo.Close()

	ctx := context.Background()
	service := services.NewLinkService(repo, services.Options{CodeLength: cfg.CodeLength, BucketWidth: cfg.BucketWidth})
	if err := service.Recover(ctx); err != nil {
		log.Fatalf("Failed to load links: %v", err)
	}

	switch os.Args[1] {
	case "export":
		exportCmd.Parse(os.Args[2:])
		out := io.Writer(os.Stdout)
		if *exportFile != "" {
			f, err := os.Create(*exportFile)
			if err != nil {
				log.Fatalf("Failed to create file: %v", err)
			}
			defer f.Close()
			out = f
		}
		if err := doExport(ctx, service, out); err != nil {
			log.Fatalf("Export failed: %v", err)
		}
	case "import":
		importCmd.Parse(os.Args[2:])
		if *importFile == "" {
			importCmd.PrintDefaults()
			os.Exit(1)
		}
		f, err := os.Open(*importFile)
		if err != nil {
			log.Fatalf("Failed to open file: %v", err)
		}
		defer f.Close()
		if err := doImport(ctx, service, f); err != nil {
			log.Fatalf("Import failed: %v", err)
		}
	case "stats":
		statsCmd.Parse(os.Args[2:])
		if statsCmd.NArg() != 1 {
			fmt.Println("usage: stats [-bucket 1h] <short_code>")
			os.Exit(1)
		}
		if err := doStats(ctx, service, statsCmd.Arg(0), *statsBucket, os.Stdout); err != nil {
			log.Fatalf("Stats failed: %v", err)
		}
	default:
		fmt.Println(usage)
		os.Exit(1)
	}
}

func doExport(ctx context.Context, service *services.LinkService, w io.Writer) error {
	archive, err := service.Export(ctx)
	if err != nil {
		return err
	}
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(archive)
}

func doImport(ctx context.Context, service *services.LinkService, r io.Reader) error {
	var archive domain.Archive
	if err := json.NewDecoder(r).Decode(&archive); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	result, err := service.Import(ctx, archive)
	for _, code := range result.Skipped {
		log.Printf("Skipping existing code: %s", code)
	}
	if err != nil {
		return err
	}
	log.Printf("Imported %d links and %d visits; restart the server to serve them", result.Links, result.Visits)
	return nil
}

func doStats(ctx context.Context, service *services.LinkService, code string, bucket time.Duration, w io.Writer) error {
	link, err := service.GetLink(ctx, code)
	if err != nil {
		return err
	}
	snap, err := service.GetAnalytics(ctx, code, bucket)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "code\t%s\n", link.ShortCode)
	fmt.Fprintf(tw, "url\t%s\n", link.OriginalURL)
	if link.ExpiresAt != nil {
		fmt.Fprintf(tw, "expires\t%s (expired: %v)\n", link.ExpiresAt.Format(time.RFC3339), service.Expired(link))
	}
	fmt.Fprintf(tw, "visits\t%d\n", snap.TotalVisits)
	fmt.Fprintf(tw, "unique\t%d\n", snap.UniqueVisitors)
	for _, d := range []domain.DeviceType{domain.DeviceDesktop, domain.DeviceMobile, domain.DeviceTablet, domain.DeviceUnknown} {
		if n := snap.DeviceType[d]; n > 0 {
			fmt.Fprintf(tw, "device %s\t%d\t%.1f%%\n", d, n, services.Percentage(n, snap.TotalVisits))
		}
	}
	for _, r := range snap.TopReferrers {
		source := r.Source
		if source == "" {
			source = "(direct)"
		}
		fmt.Fprintf(tw, "referrer %s\t%d\t%.1f%%\n", source, r.Count, r.Percentage)
	}
	for _, b := range snap.TimeSeries {
		fmt.Fprintf(tw, "%s\t%d\n", b.Time.Format(time.RFC3339), b.Count)
	}
	return tw.Flush()
}
