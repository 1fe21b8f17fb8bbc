package main

import (
	"context"
	"flag"
	"log"
	"os"

	"github.com/derek/church-finder/internal/config"
	"github.com/derek/church-finder/internal/db"
	"github.com/derek/church-finder/internal/ingest"
	"github.com/derek/church-finder/internal/providers"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/joho/godotenv"
)

func main() {
	city := flag.String("city", "", "City to search")
	state := flag.String("state", "", "State (name or abbreviation)")
	provider := flag.String("provider", "", "Provider name (default from config)")
	seeds := flag.Bool("seeds", false, "Import all embedded seed locations instead of one city")
	dryRun := flag.Bool("dry-run", false, "Report what would be imported without writing")
	update := flag.Bool("update", false, "Merge fresh data into existing records")
	skipEnqueue := flag.Bool("skip-enqueue", false, "Do not queue imported churches for enrichment")
	skipDuplicates := flag.Bool("skip-duplicates", true, "Skip records already stored for the same source")
	flag.Parse()

	_ = godotenv.Load()
	cfg := config.FromEnv()

	ctx := context.Background()
	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()

	if err := db.ApplyMigrations(ctx, pool); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}

	svc := ingest.NewService(db.NewStore(pool), db.NewQueueStore(pool), providers.FromConfig(cfg))
	opts := ingest.ImportOptions{
		Provider:       *provider,
		DryRun:         *dryRun,
		UpdateExisting: *update,
		SkipEnqueue:    *skipEnqueue,
		SkipDuplicates: skipDuplicates,
	}

	var result *ingest.ImportResult
	if *seeds {
		result, err = svc.ImportSeeds(ctx, opts)
	} else {
		if *city == "" || *state == "" {
			log.Fatal("Use -city and -state, or -seeds")
		}
		result, err = svc.ImportFromProvider(ctx, providers.SearchParams{City: *city, State: *state}, opts)
	}
	if err != nil {
		log.Fatalf("Import failed: %v", err)
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Fetched", "Imported", "Updated", "Skipped", "Duplicates", "Enqueued", "Errors"})
	t.AppendRow(table.Row{result.Fetched, result.Imported, result.Updated, result.Skipped, result.Duplicates, result.Enqueued, len(result.Errors)})
	t.Render()

	for _, e := range result.Errors {
		log.Printf("Error: %s: %s", e.Name, e.Error)
	}
}
