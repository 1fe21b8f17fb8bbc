package enrich

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/derek/church-finder/internal/ai"
	"github.com/derek/church-finder/internal/models"
	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
)

// churchDelay spaces out sequential enrichments within a batch, keeping
// request rates to the model and to church websites polite.
const churchDelay = 1 * time.Second

// ChurchStore is the persistence surface the enrichment service needs.
type ChurchStore interface {
	GetChurch(ctx context.Context, id uuid.UUID) (*models.Church, error)
	UpdateEnrichment(ctx context.Context, c *models.Church) error
}

// Queue is the work queue surface, satisfied by db.QueueStore.
type Queue interface {
	ClaimPending(ctx context.Context, limit int) ([]uuid.UUID, error)
	MarkCompleted(ctx context.Context, churchID uuid.UUID) error
	MarkFailed(ctx context.Context, churchID uuid.UUID, message string) error
	RetryFailed(ctx context.Context, limit int) (int, error)
	Stats(ctx context.Context) (*models.QueueStats, error)
}

// WebsiteFetcher turns a church website URL into plain text.
type WebsiteFetcher interface {
	FetchText(ctx context.Context, url string) (string, error)
}

// ContentEnricher runs the AI prompts, satisfied by ai.Enricher.
type ContentEnricher interface {
	ExtractDetails(ctx context.Context, cc ai.ChurchContext) (*ai.Extraction, error)
	GenerateContent(ctx context.Context, cc ai.ChurchContext, ext *ai.Extraction) (*ai.Generated, error)
}

// BatchResult summarizes one queue-processing run.
type BatchResult struct {
	Claimed   int      `json:"claimed"`
	Completed int      `json:"completed"`
	Failed    int      `json:"failed"`
	Errors    []string `json:"errors,omitempty"`
}

// Service drains the enrichment queue: fetches each church's website, runs
// the AI prompts, and merges the results without clobbering existing data.
type Service struct {
	store    ChurchStore
	queue    Queue
	fetcher  WebsiteFetcher
	enricher ContentEnricher
	embedder ai.Embedder
	policy   *bluemonday.Policy
	delay    time.Duration
}

// NewService wires an enrichment service. embedder may be nil; churches
// then go unembedded and listings lose semantic ordering.
func NewService(store ChurchStore, queue Queue, fetcher WebsiteFetcher, enricher ContentEnricher, embedder ai.Embedder) *Service {
	return &Service{
		store:    store,
		queue:    queue,
		fetcher:  fetcher,
		enricher: enricher,
		embedder: embedder,
		policy:   bluemonday.StrictPolicy(),
		delay:    churchDelay,
	}
}

// ProcessQueue claims up to batchSize pending churches and enriches them
// sequentially. Each church lands in completed or failed; a failure never
// stops the batch.
func (s *Service) ProcessQueue(ctx context.Context, batchSize int) (*BatchResult, error) {
	if batchSize <= 0 {
		batchSize = 10
	}

	ids, err := s.queue.ClaimPending(ctx, batchSize)
	if err != nil {
		return nil, err
	}

	result := &BatchResult{Claimed: len(ids)}
	for i, id := range ids {
		if i > 0 {
			select {
			case <-ctx.Done():
				return result, ctx.Err()
			case <-time.After(s.delay):
			}
		}

		if err := s.EnrichChurch(ctx, id); err != nil {
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", id, err))
			continue
		}
		result.Completed++
	}

	log.Printf("[Enrich] Batch done: %d claimed, %d completed, %d failed",
		result.Claimed, result.Completed, result.Failed)
	return result, nil
}

// EnrichChurch runs the full enrichment pipeline for one church and lands
// its queue row in completed or failed, whether the call came from a batch
// or from a direct admin request.
func (s *Service) EnrichChurch(ctx context.Context, id uuid.UUID) error {
	if err := s.enrich(ctx, id); err != nil {
		if markErr := s.queue.MarkFailed(ctx, id, err.Error()); markErr != nil {
			log.Printf("[Enrich] Mark failed errored for %s: %v", id, markErr)
		}
		return err
	}
	if err := s.queue.MarkCompleted(ctx, id); err != nil {
		log.Printf("[Enrich] Mark completed errored for %s: %v", id, err)
	}
	return nil
}

// enrich does the actual work. Website and embedding failures degrade;
// only store failures and a full model outage are fatal.
func (s *Service) enrich(ctx context.Context, id uuid.UUID) error {
	church, err := s.store.GetChurch(ctx, id)
	if err != nil {
		return fmt.Errorf("loading church: %w", err)
	}
	if church == nil {
		return fmt.Errorf("church %s not found", id)
	}

	cc := ai.ChurchContext{
		Name:         church.Name,
		City:         church.City,
		State:        church.State,
		Denomination: church.Denomination,
		Website:      church.Website,
	}

	if church.Website != "" {
		text, err := s.fetcher.FetchText(ctx, church.Website)
		if err != nil {
			log.Printf("[Enrich] Website fetch failed for %s, continuing without it: %v", church.Slug, err)
		} else {
			cc.WebsiteText = text
		}
	}

	ext, err := s.enricher.ExtractDetails(ctx, cc)
	if err != nil {
		return err
	}

	gen, err := s.enricher.GenerateContent(ctx, cc, ext)
	if err != nil {
		return err
	}

	s.merge(church, ext, gen)

	if s.embedder != nil {
		vec, err := s.embedder.Embed(ctx, embeddingText(church))
		if err != nil {
			log.Printf("[Enrich] Embedding failed for %s, continuing without it: %v", church.Slug, err)
		} else {
			church.Embedding = vec
		}
	}

	now := time.Now()
	church.AIGeneratedAt = &now

	if err := s.store.UpdateEnrichment(ctx, church); err != nil {
		return fmt.Errorf("saving enrichment: %w", err)
	}

	log.Printf("[Enrich] Enriched %s", church.Slug)
	return nil
}

// merge applies extraction and generation onto the church, filling gaps
// only. Provider-sourced fields always win over model output.
func (s *Service) merge(church *models.Church, ext *ai.Extraction, gen *ai.Generated) {
	// A section the model failed to produce comes back empty; keep
	// whatever text an earlier run stored rather than blanking it.
	if d := s.sanitize(gen.Description); d != "" {
		church.Description = d
	}
	if w := s.sanitize(gen.WhatToExpect); w != "" {
		church.WhatToExpect = w
	}

	if church.Denomination == "" {
		church.Denomination = ext.Denomination
	}
	if church.Email == "" {
		church.Email = ext.Email
	}
	if church.Phone == "" {
		church.Phone = ext.Phone
	}
	if church.PastorName == "" {
		church.PastorName = ext.PastorName
	}
	if church.FoundedYear == 0 {
		church.FoundedYear = ext.FoundedYear
	}
	if len(church.WorshipStyles) == 0 {
		church.WorshipStyles = ext.WorshipStyles
	}
	if len(church.ServiceTimes) == 0 {
		church.ServiceTimes = ext.ServiceTimes
	}
	if ext.HasYouthMinistry != nil {
		church.HasYouthMinistry = *ext.HasYouthMinistry
	}
	if ext.HasChildrensMinistry != nil {
		church.HasChildrensMinistry = *ext.HasChildrensMinistry
	}
	if ext.HasSmallGroups != nil {
		church.HasSmallGroups = *ext.HasSmallGroups
	}
}

// sanitize strips any markup the model slipped into free text.
func (s *Service) sanitize(text string) string {
	return strings.TrimSpace(s.policy.Sanitize(text))
}

// embeddingText is the canonical text a church is embedded under.
func embeddingText(c *models.Church) string {
	parts := []string{c.Name, c.City, c.State, c.Denomination, c.Description, c.WhatToExpect}
	parts = append(parts, c.WorshipStyles...)
	var kept []string
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, ". ")
}

// RetryFailed moves up to limit failed queue rows back to pending.
func (s *Service) RetryFailed(ctx context.Context, limit int) (int, error) {
	if limit <= 0 {
		limit = 100
	}
	return s.queue.RetryFailed(ctx, limit)
}

// QueueStats reports queue depth by status.
func (s *Service) QueueStats(ctx context.Context) (*models.QueueStats, error) {
	return s.queue.Stats(ctx)
}
