package enrich

import (
	"context"
	"errors"
	"testing"

	"github.com/derek/church-finder/internal/ai"
	"github.com/derek/church-finder/internal/models"
	"github.com/google/uuid"
)

type fakeStore struct {
	churches map[uuid.UUID]*models.Church
	saved    []*models.Church
	saveErr  error
}

func newFakeStore(churches ...*models.Church) *fakeStore {
	f := &fakeStore{churches: make(map[uuid.UUID]*models.Church)}
	for _, c := range churches {
		f.churches[c.ID] = c
	}
	return f
}

func (f *fakeStore) GetChurch(ctx context.Context, id uuid.UUID) (*models.Church, error) {
	return f.churches[id], nil
}

func (f *fakeStore) UpdateEnrichment(ctx context.Context, c *models.Church) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saved = append(f.saved, c)
	return nil
}

type fakeQueue struct {
	pending   []uuid.UUID
	completed []uuid.UUID
	failed    map[uuid.UUID]string
	retried   int
}

func newFakeQueue(pending ...uuid.UUID) *fakeQueue {
	return &fakeQueue{pending: pending, failed: make(map[uuid.UUID]string)}
}

func (f *fakeQueue) ClaimPending(ctx context.Context, limit int) ([]uuid.UUID, error) {
	if limit > len(f.pending) {
		limit = len(f.pending)
	}
	claimed := f.pending[:limit]
	f.pending = f.pending[limit:]
	return claimed, nil
}

func (f *fakeQueue) MarkCompleted(ctx context.Context, id uuid.UUID) error {
	f.completed = append(f.completed, id)
	return nil
}

func (f *fakeQueue) MarkFailed(ctx context.Context, id uuid.UUID, msg string) error {
	f.failed[id] = msg
	return nil
}

func (f *fakeQueue) RetryFailed(ctx context.Context, limit int) (int, error) {
	f.retried = limit
	return len(f.failed), nil
}

func (f *fakeQueue) Stats(ctx context.Context) (*models.QueueStats, error) {
	return &models.QueueStats{Pending: len(f.pending), Completed: len(f.completed), Failed: len(f.failed)}, nil
}

type fakeFetcher struct {
	text string
	err  error
}

func (f *fakeFetcher) FetchText(ctx context.Context, url string) (string, error) {
	return f.text, f.err
}

type fakeEnricher struct {
	ext        *ai.Extraction
	gen        *ai.Generated
	extractErr error
	genErr     error
	failFor    map[string]error // keyed by church name
	sawText    string
}

func (f *fakeEnricher) ExtractDetails(ctx context.Context, cc ai.ChurchContext) (*ai.Extraction, error) {
	f.sawText = cc.WebsiteText
	if err := f.failFor[cc.Name]; err != nil {
		return nil, err
	}
	if f.extractErr != nil {
		return nil, f.extractErr
	}
	if f.ext == nil {
		return &ai.Extraction{}, nil
	}
	return f.ext, nil
}

func (f *fakeEnricher) GenerateContent(ctx context.Context, cc ai.ChurchContext, ext *ai.Extraction) (*ai.Generated, error) {
	if f.genErr != nil {
		return nil, f.genErr
	}
	if f.gen == nil {
		return &ai.Generated{Description: "A church.", WhatToExpect: "A service."}, nil
	}
	return f.gen, nil
}

type fakeEmbedder struct {
	vec []float32
	err error
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return f.vec, f.err
}

func church(name string) *models.Church {
	return &models.Church{
		ID:    uuid.New(),
		Name:  name,
		Slug:  "test-church",
		City:  "Nashville",
		State: "Tennessee",
	}
}

func boolPtr(b bool) *bool { return &b }

func TestProcessQueue_CompletesClaimed(t *testing.T) {
	a, b := church("Grace Chapel"), church("Hope Fellowship")
	queue := newFakeQueue(a.ID, b.ID)
	store := newFakeStore(a, b)
	svc := NewService(store, queue, &fakeFetcher{}, &fakeEnricher{}, nil)
	svc.delay = 0

	result, err := svc.ProcessQueue(context.Background(), 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Claimed != 2 || result.Completed != 2 || result.Failed != 0 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if len(queue.completed) != 2 || len(queue.failed) != 0 {
		t.Fatalf("queue state: completed=%d failed=%d", len(queue.completed), len(queue.failed))
	}
}

func TestProcessQueue_FailureIsolatedAndRecorded(t *testing.T) {
	a, b := church("Grace Chapel"), church("Hope Fellowship")
	queue := newFakeQueue(a.ID, b.ID)
	store := newFakeStore(a, b)
	enricher := &fakeEnricher{failFor: map[string]error{"Grace Chapel": errors.New("model unavailable")}}
	svc := NewService(store, queue, &fakeFetcher{}, enricher, nil)
	svc.delay = 0

	result, err := svc.ProcessQueue(context.Background(), 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Completed != 1 || result.Failed != 1 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if msg, ok := queue.failed[a.ID]; !ok || msg == "" {
		t.Fatal("expected failure message recorded for failed church")
	}
	if len(queue.completed) != 1 || queue.completed[0] != b.ID {
		t.Fatal("expected second church to still complete")
	}
}

func TestEnrichChurch_TransitionsQueueRow(t *testing.T) {
	c := church("Grace Chapel")
	queue := newFakeQueue(c.ID)
	store := newFakeStore(c)
	svc := NewService(store, queue, &fakeFetcher{}, &fakeEnricher{}, nil)

	if err := svc.EnrichChurch(context.Background(), c.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(queue.completed) != 1 || queue.completed[0] != c.ID {
		t.Fatal("expected direct enrichment to mark the queue row completed")
	}
}

func TestEnrichChurch_FailureMarksQueueRow(t *testing.T) {
	c := church("Grace Chapel")
	queue := newFakeQueue(c.ID)
	store := newFakeStore(c)
	enricher := &fakeEnricher{genErr: errors.New("model unavailable")}
	svc := NewService(store, queue, &fakeFetcher{}, enricher, nil)

	if err := svc.EnrichChurch(context.Background(), c.ID); err == nil {
		t.Fatal("expected error")
	}
	if msg, ok := queue.failed[c.ID]; !ok || msg == "" {
		t.Fatal("expected queue row marked failed with a message")
	}
	if len(queue.completed) != 0 {
		t.Fatal("failed enrichment must not mark completed")
	}
}

func TestEnrichChurch_WebsiteFailureDegrades(t *testing.T) {
	c := church("Grace Chapel")
	c.Website = "https://gracechapel.example.org"
	store := newFakeStore(c)
	enricher := &fakeEnricher{}
	svc := NewService(store, newFakeQueue(), &fakeFetcher{err: errors.New("timeout")}, enricher, nil)

	if err := svc.EnrichChurch(context.Background(), c.ID); err != nil {
		t.Fatalf("expected website failure to degrade, got %v", err)
	}
	if enricher.sawText != "" {
		t.Fatal("expected empty website text after fetch failure")
	}
	if len(store.saved) != 1 {
		t.Fatal("expected enrichment saved")
	}
}

func TestEnrichChurch_MergeFillsGapsOnly(t *testing.T) {
	c := church("Grace Chapel")
	c.Denomination = "Baptist"
	c.Phone = "615-555-0100"
	store := newFakeStore(c)
	enricher := &fakeEnricher{
		ext: &ai.Extraction{
			Denomination:     "Methodist",
			Phone:            "615-555-9999",
			Email:            "hello@example.org",
			PastorName:       "Jordan Lee",
			FoundedYear:      1952,
			WorshipStyles:    []string{"contemporary"},
			ServiceTimes:     []models.ServiceTime{{Day: "Sunday", Time: "10:00 AM"}},
			HasYouthMinistry: boolPtr(true),
			HasSmallGroups:   boolPtr(false),
		},
		gen: &ai.Generated{Description: "desc", WhatToExpect: "expect"},
	}
	svc := NewService(store, newFakeQueue(), &fakeFetcher{}, enricher, nil)

	if err := svc.EnrichChurch(context.Background(), c.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	saved := store.saved[0]
	if saved.Denomination != "Baptist" {
		t.Fatalf("existing denomination clobbered: %q", saved.Denomination)
	}
	if saved.Phone != "615-555-0100" {
		t.Fatalf("existing phone clobbered: %q", saved.Phone)
	}
	if saved.Email != "hello@example.org" || saved.PastorName != "Jordan Lee" || saved.FoundedYear != 1952 {
		t.Fatalf("gaps not filled: %+v", saved)
	}
	if !saved.HasYouthMinistry || saved.HasSmallGroups {
		t.Fatal("boolean flags not applied from extraction")
	}
	if saved.AIGeneratedAt == nil {
		t.Fatal("expected ai_generated_at set")
	}
}

func TestEnrichChurch_SanitizesGeneratedText(t *testing.T) {
	c := church("Grace Chapel")
	store := newFakeStore(c)
	enricher := &fakeEnricher{
		gen: &ai.Generated{
			Description:  `A <script>alert("x")</script>welcoming church.`,
			WhatToExpect: "<b>Casual</b> dress and coffee.",
		},
	}
	svc := NewService(store, newFakeQueue(), &fakeFetcher{}, enricher, nil)

	if err := svc.EnrichChurch(context.Background(), c.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	saved := store.saved[0]
	if saved.Description != "A welcoming church." {
		t.Fatalf("description not sanitized: %q", saved.Description)
	}
	if saved.WhatToExpect != "Casual dress and coffee." {
		t.Fatalf("what_to_expect not sanitized: %q", saved.WhatToExpect)
	}
}

func TestEnrichChurch_EmptyGenerationKeepsExistingText(t *testing.T) {
	c := church("Grace Chapel")
	c.Description = "An established description."
	store := newFakeStore(c)
	enricher := &fakeEnricher{gen: &ai.Generated{WhatToExpect: "A typical service."}}
	svc := NewService(store, newFakeQueue(), &fakeFetcher{}, enricher, nil)

	if err := svc.EnrichChurch(context.Background(), c.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if store.saved[0].Description != "An established description." {
		t.Fatalf("existing description clobbered: %q", store.saved[0].Description)
	}
	if store.saved[0].WhatToExpect != "A typical service." {
		t.Fatalf("what_to_expect = %q", store.saved[0].WhatToExpect)
	}
}

func TestEnrichChurch_EmbeddingFailureNonFatal(t *testing.T) {
	c := church("Grace Chapel")
	store := newFakeStore(c)
	svc := NewService(store, newFakeQueue(), &fakeFetcher{}, &fakeEnricher{}, &fakeEmbedder{err: errors.New("quota")})

	if err := svc.EnrichChurch(context.Background(), c.ID); err != nil {
		t.Fatalf("expected embedding failure to degrade, got %v", err)
	}
	if store.saved[0].Embedding != nil {
		t.Fatal("expected no embedding after failure")
	}
}

func TestEnrichChurch_EmbeddingStored(t *testing.T) {
	c := church("Grace Chapel")
	store := newFakeStore(c)
	svc := NewService(store, newFakeQueue(), &fakeFetcher{}, &fakeEnricher{}, &fakeEmbedder{vec: []float32{0.1, 0.2}})

	if err := svc.EnrichChurch(context.Background(), c.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(store.saved[0].Embedding) != 2 {
		t.Fatal("expected embedding stored")
	}
}

func TestEnrichChurch_NotFound(t *testing.T) {
	svc := NewService(newFakeStore(), newFakeQueue(), &fakeFetcher{}, &fakeEnricher{}, nil)
	if err := svc.EnrichChurch(context.Background(), uuid.New()); err == nil {
		t.Fatal("expected error for unknown church")
	}
}

func TestRetryFailed_DefaultsLimit(t *testing.T) {
	queue := newFakeQueue()
	queue.failed[uuid.New()] = "boom"
	svc := NewService(newFakeStore(), queue, &fakeFetcher{}, &fakeEnricher{}, nil)

	n, err := svc.RetryFailed(context.Background(), 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 retried, got %d", n)
	}
	if queue.retried != 100 {
		t.Fatalf("expected default limit 100, got %d", queue.retried)
	}
}
