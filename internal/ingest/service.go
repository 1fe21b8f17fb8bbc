package ingest

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/derek/church-finder/internal/models"
	"github.com/derek/church-finder/internal/providers"
	"github.com/google/uuid"
)

// maxImportRecords caps how many records one import call drains from a
// provider, regardless of how many pages it offers.
const maxImportRecords = 500

// pageDelay spaces out paginated provider requests. Google's next-page
// tokens are not valid immediately after issue.
const pageDelay = 2 * time.Second

// ChurchStore is the persistence surface the ingest service needs.
type ChurchStore interface {
	ExistingSourceIDs(ctx context.Context, source string, sourceIDs []string) (map[string]bool, error)
	SlugExists(ctx context.Context, slug string) (bool, error)
	InsertChurch(ctx context.Context, c *models.Church) error
	UpdateChurchBySourceID(ctx context.Context, c *models.Church) error
}

// EnrichmentQueue receives newly imported churches for later enrichment.
type EnrichmentQueue interface {
	Enqueue(ctx context.Context, churchID uuid.UUID) error
}

// SearchClient is the provider surface the ingest service needs, satisfied
// by providers.Manager.
type SearchClient interface {
	Search(ctx context.Context, name string, params providers.SearchParams, cursor string) (*providers.SearchResult, error)
	GetByID(ctx context.Context, name, externalID string) (*providers.RawChurch, error)
}

// ImportOptions tune a single import run. SkipDuplicates defaults to true;
// a pointer distinguishes "unset" from an explicit false.
type ImportOptions struct {
	Provider       string `json:"provider,omitempty"`
	DryRun         bool   `json:"dry_run,omitempty"`
	SkipEnqueue    bool   `json:"skip_enqueue,omitempty"`
	SkipDuplicates *bool  `json:"skip_duplicates,omitempty"`
	UpdateExisting bool   `json:"update_existing,omitempty"`
}

func (o ImportOptions) skipDuplicates() bool {
	return o.SkipDuplicates == nil || *o.SkipDuplicates
}

// ImportedChurch identifies one listing an import run wrote.
type ImportedChurch struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
	Slug string    `json:"slug"`
}

// ImportError records one record that could not be written.
type ImportError struct {
	Name  string `json:"name"`
	Error string `json:"error"`
}

// ImportResult summarizes what an import run did.
type ImportResult struct {
	Fetched    int              `json:"fetched"`
	Imported   int              `json:"imported"`
	Updated    int              `json:"updated"`
	Skipped    int              `json:"skipped"`
	Duplicates int              `json:"duplicates"`
	Enqueued   int              `json:"enqueued"`
	Churches   []ImportedChurch `json:"churches,omitempty"`
	Errors     []ImportError    `json:"errors,omitempty"`
}

// Service imports church records from search providers into the store and
// feeds the enrichment queue.
type Service struct {
	store     ChurchStore
	queue     EnrichmentQueue
	search    SearchClient
	pageDelay time.Duration
}

func NewService(store ChurchStore, queue EnrichmentQueue, search SearchClient) *Service {
	return &Service{store: store, queue: queue, search: search, pageDelay: pageDelay}
}

// ImportFromProvider drains a provider search and imports the results.
// Existing records (matched on source+source_id) are skipped, or merged
// when opts.UpdateExisting is set. Re-running the same import is a no-op
// apart from those merges.
func (s *Service) ImportFromProvider(ctx context.Context, params providers.SearchParams, opts ImportOptions) (*ImportResult, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	var raws []providers.RawChurch
	cursor := ""
	for len(raws) < maxImportRecords {
		page, err := s.search.Search(ctx, opts.Provider, params, cursor)
		if err != nil {
			if len(raws) == 0 {
				return nil, err
			}
			log.Printf("[Ingest] Page fetch failed after %d records, importing what we have: %v", len(raws), err)
			break
		}
		raws = append(raws, page.Churches...)
		if page.NextCursor == "" {
			break
		}
		cursor = page.NextCursor

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(s.pageDelay):
		}
	}
	if len(raws) > maxImportRecords {
		raws = raws[:maxImportRecords]
	}

	return s.ImportRawData(ctx, raws, opts)
}

// ImportSingleChurch fetches one record by external ID and imports it.
func (s *Service) ImportSingleChurch(ctx context.Context, providerName, externalID string, opts ImportOptions) (*ImportResult, error) {
	raw, err := s.search.GetByID(ctx, providerName, externalID)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, fmt.Errorf("no record found for id %q", externalID)
	}
	return s.ImportRawData(ctx, []providers.RawChurch{*raw}, opts)
}

// ImportRawData imports pre-fetched records. This is the single write path
// every import entry point funnels through.
func (s *Service) ImportRawData(ctx context.Context, raws []providers.RawChurch, opts ImportOptions) (*ImportResult, error) {
	result := &ImportResult{Fetched: len(raws)}
	if len(raws) == 0 {
		return result, nil
	}

	// In-batch dedupe, first occurrence wins.
	seen := make(map[string]bool, len(raws))
	var batch []providers.RawChurch
	for _, raw := range raws {
		key := DedupeKey(raw.Name, raw.Latitude, raw.Longitude)
		if seen[key] {
			result.Duplicates++
			continue
		}
		seen[key] = true
		batch = append(batch, raw)
	}

	// With duplicate skipping disabled every record is treated as new and
	// the store's uniqueness constraint has the final say. UpdateExisting
	// still needs the existing set to know which records to merge.
	existing := map[string]bool{}
	if opts.skipDuplicates() || opts.UpdateExisting {
		var err error
		existing, err = s.existingFor(ctx, batch)
		if err != nil {
			return nil, err
		}
	}

	for _, raw := range batch {
		if err := s.importOne(ctx, raw, existing, opts, result); err != nil {
			result.Errors = append(result.Errors, ImportError{Name: raw.Name, Error: err.Error()})
			log.Printf("[Ingest] Failed to import %s (%s): %v", raw.Name, raw.SourceID, err)
		}
	}

	log.Printf("[Ingest] Done: %d fetched, %d imported, %d updated, %d skipped, %d duplicates, %d errors",
		result.Fetched, result.Imported, result.Updated, result.Skipped, result.Duplicates, len(result.Errors))
	return result, nil
}

// existingFor batch-checks which records are already stored, grouped by
// source since IDs are only unique within one.
func (s *Service) existingFor(ctx context.Context, batch []providers.RawChurch) (map[string]bool, error) {
	bySource := make(map[string][]string)
	for _, raw := range batch {
		bySource[raw.Source] = append(bySource[raw.Source], raw.SourceID)
	}

	existing := make(map[string]bool)
	for source, ids := range bySource {
		found, err := s.store.ExistingSourceIDs(ctx, source, ids)
		if err != nil {
			return nil, fmt.Errorf("checking existing records for %s: %w", source, err)
		}
		for id := range found {
			existing[source+"|"+id] = true
		}
	}
	return existing, nil
}

func (s *Service) importOne(ctx context.Context, raw providers.RawChurch, existing map[string]bool, opts ImportOptions, result *ImportResult) error {
	exists := existing[raw.Source+"|"+raw.SourceID]

	if exists && !opts.UpdateExisting {
		result.Skipped++
		return nil
	}
	if opts.DryRun {
		if exists {
			result.Updated++
		} else {
			result.Imported++
		}
		return nil
	}

	church := toChurch(raw)

	if exists {
		if err := s.store.UpdateChurchBySourceID(ctx, church); err != nil {
			return err
		}
		result.Updated++
		return nil
	}

	slug, err := s.uniqueSlug(ctx, raw)
	if err != nil {
		return err
	}
	church.Slug = slug

	if err := s.store.InsertChurch(ctx, church); err != nil {
		return err
	}
	result.Imported++
	result.Churches = append(result.Churches, ImportedChurch{ID: church.ID, Name: church.Name, Slug: church.Slug})

	if !opts.SkipEnqueue {
		if err := s.queue.Enqueue(ctx, church.ID); err != nil {
			log.Printf("[Ingest] Enqueue failed for %s: %v", church.Slug, err)
		} else {
			result.Enqueued++
		}
	}
	return nil
}

// uniqueSlug builds name-city slug, appending a suffix derived from the
// source ID when the natural slug is taken.
func (s *Service) uniqueSlug(ctx context.Context, raw providers.RawChurch) (string, error) {
	slug := Slugify(raw.Name, raw.City)
	if slug == "" {
		slug = Slugify(raw.SourceID)
	}

	taken, err := s.store.SlugExists(ctx, slug)
	if err != nil {
		return "", fmt.Errorf("slug check failed: %w", err)
	}
	if !taken {
		return slug, nil
	}
	return slug + "-" + slugSuffix(raw.SourceID), nil
}

func toChurch(raw providers.RawChurch) *models.Church {
	return &models.Church{
		Name:         raw.Name,
		Address:      raw.Address,
		City:         raw.City,
		State:        raw.State,
		StateAbbr:    raw.StateAbbr,
		Zip:          raw.Zip,
		Latitude:     raw.Latitude,
		Longitude:    raw.Longitude,
		Phone:        raw.Phone,
		Email:        raw.Email,
		Website:      raw.Website,
		Denomination: raw.Denomination,
		Source:       raw.Source,
		SourceID:     raw.SourceID,
	}
}
