package db

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/derek/church-finder/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

type ListParams struct {
	Query          string
	QueryEmbedding []float32
	City           string
	State          string
	Denomination   string
	Source         string
	Limit          int
	Offset         int
}

type ListResult struct {
	Churches []models.Church `json:"churches"`
	Total    int             `json:"total"`
	Limit    int             `json:"limit"`
	Offset   int             `json:"offset"`
}

// selectCols is the comprehensive column list for all church queries.
const selectCols = `id, name, slug, address, city, state, state_abbr, zip, lat, lng,
	phone, email, website, denomination, source, source_id,
	description, what_to_expect, worship_styles, service_times,
	has_youth_ministry, has_childrens_ministry, has_small_groups,
	pastor_name, founded_year, ai_generated_at, created_at, updated_at`

func scanChurch(scan func(dest ...interface{}) error) (models.Church, error) {
	var c models.Church
	var address, stateAbbr, zip, phone, email, website, denomination *string
	var description, whatToExpect, pastorName *string
	var foundedYear *int
	var serviceTimesRaw []byte

	err := scan(
		&c.ID, &c.Name, &c.Slug, &address, &c.City, &c.State, &stateAbbr, &zip, &c.Latitude, &c.Longitude,
		&phone, &email, &website, &denomination, &c.Source, &c.SourceID,
		&description, &whatToExpect, &c.WorshipStyles, &serviceTimesRaw,
		&c.HasYouthMinistry, &c.HasChildrensMinistry, &c.HasSmallGroups,
		&pastorName, &foundedYear, &c.AIGeneratedAt, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return c, err
	}

	if address != nil {
		c.Address = *address
	}
	if stateAbbr != nil {
		c.StateAbbr = *stateAbbr
	}
	if zip != nil {
		c.Zip = *zip
	}
	if phone != nil {
		c.Phone = *phone
	}
	if email != nil {
		c.Email = *email
	}
	if website != nil {
		c.Website = *website
	}
	if denomination != nil {
		c.Denomination = *denomination
	}
	if description != nil {
		c.Description = *description
	}
	if whatToExpect != nil {
		c.WhatToExpect = *whatToExpect
	}
	if pastorName != nil {
		c.PastorName = *pastorName
	}
	if foundedYear != nil {
		c.FoundedYear = *foundedYear
	}
	if len(serviceTimesRaw) > 0 {
		_ = json.Unmarshal(serviceTimesRaw, &c.ServiceTimes)
	}

	return c, nil
}

func (s *Store) ListChurches(ctx context.Context, params ListParams) (*ListResult, error) {
	where := "WHERE 1=1"
	var args []interface{}
	argIdx := 1

	if params.Query != "" {
		where += fmt.Sprintf(" AND (name ILIKE '%%' || $%d || '%%' OR denomination ILIKE '%%' || $%d || '%%' OR description ILIKE '%%' || $%d || '%%')", argIdx, argIdx, argIdx)
		args = append(args, params.Query)
		argIdx++
	}
	if params.City != "" {
		where += fmt.Sprintf(" AND city ILIKE $%d", argIdx)
		args = append(args, params.City)
		argIdx++
	}
	if params.State != "" {
		where += fmt.Sprintf(" AND (state ILIKE $%d OR state_abbr ILIKE $%d)", argIdx, argIdx)
		args = append(args, params.State)
		argIdx++
	}
	if params.Denomination != "" {
		where += fmt.Sprintf(" AND denomination ILIKE $%d", argIdx)
		args = append(args, params.Denomination)
		argIdx++
	}
	if params.Source != "" {
		where += fmt.Sprintf(" AND source = $%d", argIdx)
		args = append(args, params.Source)
		argIdx++
	}

	var total int
	countSQL := "SELECT COUNT(*) FROM churches " + where
	if err := s.pool.QueryRow(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count failed: %w", err)
	}

	selectSQL := fmt.Sprintf("SELECT %s FROM churches %s", selectCols, where)

	// Semantic ordering when a query embedding is available; otherwise
	// alphabetical within the filtered set.
	if len(params.QueryEmbedding) > 0 {
		selectSQL += fmt.Sprintf(`
			ORDER BY
				CASE WHEN embedding IS NULL THEN 1 ELSE 0 END ASC,
				COALESCE(1 - (embedding <=> $%d), -1) DESC,
				name ASC
		`, argIdx)
		args = append(args, pgvector.NewVector(params.QueryEmbedding))
		argIdx++
	} else {
		selectSQL += " ORDER BY name ASC, created_at DESC"
	}

	selectSQL += fmt.Sprintf(" LIMIT $%d OFFSET $%d", argIdx, argIdx+1)
	args = append(args, params.Limit, params.Offset)

	rows, err := s.pool.Query(ctx, selectSQL, args...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	var churches []models.Church
	for rows.Next() {
		c, err := scanChurch(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}
		churches = append(churches, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration failed: %w", err)
	}

	if churches == nil {
		churches = []models.Church{}
	}

	return &ListResult{
		Churches: churches,
		Total:    total,
		Limit:    params.Limit,
		Offset:   params.Offset,
	}, nil
}

func (s *Store) GetChurch(ctx context.Context, id uuid.UUID) (*models.Church, error) {
	sql := fmt.Sprintf("SELECT %s FROM churches WHERE id = $1", selectCols)
	row := s.pool.QueryRow(ctx, sql, id)

	c, err := scanChurch(row.Scan)
	if err != nil {
		return nil, fmt.Errorf("not found: %w", err)
	}
	return &c, nil
}

func (s *Store) GetChurchBySlug(ctx context.Context, slug string) (*models.Church, error) {
	sql := fmt.Sprintf("SELECT %s FROM churches WHERE slug = $1", selectCols)
	row := s.pool.QueryRow(ctx, sql, slug)

	c, err := scanChurch(row.Scan)
	if err != nil {
		return nil, fmt.Errorf("not found: %w", err)
	}
	return &c, nil
}

func (s *Store) GetChurchBySourceID(ctx context.Context, source, sourceID string) (*models.Church, error) {
	sql := fmt.Sprintf("SELECT %s FROM churches WHERE source = $1 AND source_id = $2", selectCols)
	row := s.pool.QueryRow(ctx, sql, source, sourceID)

	c, err := scanChurch(row.Scan)
	if err != nil {
		return nil, fmt.Errorf("not found: %w", err)
	}
	return &c, nil
}

// ExistingSourceIDs returns which of the given source IDs are already stored
// for a source, as a set. One round-trip per import batch.
func (s *Store) ExistingSourceIDs(ctx context.Context, source string, sourceIDs []string) (map[string]bool, error) {
	existing := make(map[string]bool)
	if len(sourceIDs) == 0 {
		return existing, nil
	}

	rows, err := s.pool.Query(ctx,
		"SELECT source_id FROM churches WHERE source = $1 AND source_id = ANY($2)",
		source, sourceIDs)
	if err != nil {
		return nil, fmt.Errorf("existing source_id query failed: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("existing source_id scan failed: %w", err)
		}
		existing[id] = true
	}
	return existing, rows.Err()
}

func (s *Store) SlugExists(ctx context.Context, slug string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM churches WHERE slug = $1)", slug).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("slug check failed: %w", err)
	}
	return exists, nil
}

func (s *Store) InsertChurch(ctx context.Context, c *models.Church) error {
	query := `
		INSERT INTO churches (
			name, slug, address, city, state, state_abbr, zip, lat, lng,
			phone, email, website, denomination, source, source_id
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9,
			$10, $11, $12, $13, $14, $15
		)
		RETURNING id
	`

	var id uuid.UUID
	err := s.pool.QueryRow(ctx, query,
		c.Name, c.Slug, nilIfEmpty(c.Address), c.City, c.State, nilIfEmpty(c.StateAbbr), nilIfEmpty(c.Zip), c.Latitude, c.Longitude,
		nilIfEmpty(c.Phone), nilIfEmpty(c.Email), nilIfEmpty(c.Website), nilIfEmpty(c.Denomination), c.Source, c.SourceID,
	).Scan(&id)
	if err != nil {
		return err
	}

	c.ID = id
	return nil
}

// UpdateChurchBySourceID refreshes the provider-owned fields of an existing
// listing. Empty incoming values never clobber stored ones; AI-enriched
// columns are untouched.
func (s *Store) UpdateChurchBySourceID(ctx context.Context, c *models.Church) error {
	query := `
		UPDATE churches SET
			name = $1,
			address = COALESCE(NULLIF($2, ''), address),
			city = COALESCE(NULLIF($3, ''), city),
			state = COALESCE(NULLIF($4, ''), state),
			state_abbr = COALESCE(NULLIF($5, ''), state_abbr),
			zip = COALESCE(NULLIF($6, ''), zip),
			lat = $7,
			lng = $8,
			phone = COALESCE(NULLIF($9, ''), phone),
			email = COALESCE(NULLIF($10, ''), email),
			website = COALESCE(NULLIF($11, ''), website),
			denomination = COALESCE(NULLIF($12, ''), denomination),
			updated_at = NOW()
		WHERE source = $13 AND source_id = $14
	`

	tag, err := s.pool.Exec(ctx, query,
		c.Name, c.Address, c.City, c.State, c.StateAbbr, c.Zip, c.Latitude, c.Longitude,
		c.Phone, c.Email, c.Website, c.Denomination, c.Source, c.SourceID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("no listing for source=%s source_id=%s", c.Source, c.SourceID)
	}
	return nil
}

// UpdateEnrichment writes the enrichment-owned columns of a listing in a
// single call. Merge decisions are made by the caller; this persists the
// already-merged model.
func (s *Store) UpdateEnrichment(ctx context.Context, c *models.Church) error {
	var serviceTimes interface{}
	if len(c.ServiceTimes) > 0 {
		payload, err := json.Marshal(c.ServiceTimes)
		if err != nil {
			return fmt.Errorf("failed to encode service times: %w", err)
		}
		serviceTimes = string(payload)
	}

	var embedding interface{}
	if len(c.Embedding) > 0 {
		embedding = pgvector.NewVector(c.Embedding)
	}

	query := `
		UPDATE churches SET
			description = COALESCE(NULLIF($1, ''), description),
			what_to_expect = COALESCE(NULLIF($2, ''), what_to_expect),
			denomination = COALESCE(NULLIF($3, ''), denomination),
			worship_styles = COALESCE(NULLIF($4, '{}'::text[]), worship_styles),
			service_times = COALESCE($5::jsonb, service_times),
			has_youth_ministry = $6,
			has_childrens_ministry = $7,
			has_small_groups = $8,
			pastor_name = COALESCE(NULLIF($9, ''), pastor_name),
			founded_year = COALESCE(NULLIF($10, 0), founded_year),
			embedding = COALESCE($11, embedding),
			ai_generated_at = COALESCE($12, ai_generated_at),
			updated_at = NOW()
		WHERE id = $13
	`

	tag, err := s.pool.Exec(ctx, query,
		c.Description, c.WhatToExpect, c.Denomination, c.WorshipStyles, serviceTimes,
		c.HasYouthMinistry, c.HasChildrensMinistry, c.HasSmallGroups,
		c.PastorName, c.FoundedYear, embedding, c.AIGeneratedAt, c.ID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("no listing with id %s", c.ID)
	}
	return nil
}

func (s *Store) GetStats(ctx context.Context) (map[string]interface{}, error) {
	stats := make(map[string]interface{})

	var total int
	s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM churches").Scan(&total)
	stats["total"] = total

	var enriched int
	s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM churches WHERE ai_generated_at IS NOT NULL").Scan(&enriched)
	stats["enriched"] = enriched

	var withWebsite int
	s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM churches WHERE website IS NOT NULL").Scan(&withWebsite)
	stats["with_website"] = withWebsite

	sourceCounts := map[string]int{}
	rows, err := s.pool.Query(ctx, "SELECT source, COUNT(*) FROM churches GROUP BY source")
	if err == nil {
		defer rows.Close()
		for rows.Next() {
			var source string
			var count int
			if scanErr := rows.Scan(&source, &count); scanErr == nil {
				sourceCounts[source] = count
			}
		}
	}
	stats["source_counts"] = sourceCounts

	return stats, nil
}

// nilIfEmpty returns nil for empty strings so NULL is stored in DB.
func nilIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
