package api

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/derek/church-finder/internal/ai"
	"github.com/derek/church-finder/internal/config"
	"github.com/derek/church-finder/internal/db"
	"github.com/derek/church-finder/internal/enrich"
	"github.com/derek/church-finder/internal/ingest"
	"github.com/derek/church-finder/internal/providers"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

type Server struct {
	Echo      *echo.Echo
	Store     *db.Store
	Queue     *db.QueueStore
	Providers *providers.Manager
	Ingest    *ingest.Service
	Enrich    *enrich.Service
	Embedder  ai.Embedder

	cfg *config.Config
}

var (
	adminSecretOnce    sync.Once
	adminSecretRuntime string
	adminSecretErr     error
)

func NewServer(cfg *config.Config, pool *pgxpool.Pool) *Server {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	allowedOrigins := append([]string{"http://localhost:3000"}, cfg.CORSOrigins...)
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: allowedOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, "X-Admin-Secret"},
	}))

	store := db.NewStore(pool)
	queue := db.NewQueueStore(pool)
	manager := providers.FromConfig(cfg)
	ingestSvc := ingest.NewService(store, queue, manager)

	var enrichSvc *enrich.Service
	completer, err := ai.NewCompleterFromConfig(cfg)
	if err != nil {
		log.Printf("[API] Enrichment disabled: %v", err)
	} else {
		enrichSvc = enrich.NewService(store, queue, enrich.NewFetcher(), ai.NewEnricher(completer), ai.NewEmbedderFromConfig(cfg))
	}

	s := &Server{
		Echo:      e,
		Store:     store,
		Queue:     queue,
		Providers: manager,
		Ingest:    ingestSvc,
		Enrich:    enrichSvc,
		Embedder:  ai.NewEmbedderFromConfig(cfg),
		cfg:       cfg,
	}

	s.routes()
	return s
}

func (s *Server) routes() {
	s.Echo.GET("/health", s.handleHealth)

	api := s.Echo.Group("/api/v1")
	api.GET("/churches", s.handleListChurches)
	api.GET("/churches/by-source", s.handleGetChurchBySource)
	api.GET("/churches/:id", s.handleGetChurch)
	api.GET("/stats", s.handleGetStats)

	admin := api.Group("/admin")
	admin.Use(s.adminMiddleware)
	admin.POST("/import", s.handleImport)
	admin.POST("/import/church", s.handleImportChurch)
	admin.POST("/import/raw", s.handleImportRaw)
	admin.POST("/import/seeds", s.handleImportSeeds)
	admin.POST("/enrich", s.handleEnrich)
	admin.POST("/enrich/retry-failed", s.handleRetryFailed)
	admin.GET("/queue/stats", s.handleQueueStats)
	admin.GET("/queue/failed", s.handleQueueFailed)
	admin.GET("/providers", s.handleProviders)
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.String(http.StatusOK, "OK")
}

func (s *Server) handleListChurches(c echo.Context) error {
	q := c.QueryParam("q")

	limit := 20
	offset := 0
	if l, err := strconv.Atoi(c.QueryParam("limit")); err == nil && l > 0 && l <= 100 {
		limit = l
	}
	if o, err := strconv.Atoi(c.QueryParam("offset")); err == nil && o >= 0 {
		offset = o
	}

	// Semantic ordering when a query and an embedder are available;
	// keyword search otherwise.
	var queryEmbedding []float32
	if q != "" && s.Embedder != nil {
		aiCtx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
		defer cancel()

		vec, err := s.Embedder.Embed(aiCtx, q)
		if err != nil {
			c.Logger().Errorf("Query embedding failed, using keyword search: %v", err)
		} else {
			queryEmbedding = vec
		}
	}

	result, err := s.Store.ListChurches(c.Request().Context(), db.ListParams{
		Query:          q,
		QueryEmbedding: queryEmbedding,
		City:           c.QueryParam("city"),
		State:          c.QueryParam("state"),
		Denomination:   c.QueryParam("denomination"),
		Source:         c.QueryParam("source"),
		Limit:          limit,
		Offset:         offset,
	})
	if err != nil {
		c.Logger().Errorf("Failed to list churches: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal Server Error"})
	}

	return c.JSON(http.StatusOK, result)
}

// handleGetChurch accepts either a UUID or a slug.
func (s *Server) handleGetChurch(c echo.Context) error {
	idStr := c.Param("id")
	ctx := c.Request().Context()

	if id, err := uuid.Parse(idStr); err == nil {
		church, err := s.Store.GetChurch(ctx, id)
		if err != nil || church == nil {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "Not found"})
		}
		return c.JSON(http.StatusOK, church)
	}

	church, err := s.Store.GetChurchBySlug(ctx, idStr)
	if err != nil || church == nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Not found"})
	}
	return c.JSON(http.StatusOK, church)
}

// handleGetChurchBySource resolves a listing by its provider identity.
// Slashes in OSM ids make a path parameter impractical, hence query params.
func (s *Server) handleGetChurchBySource(c echo.Context) error {
	source := c.QueryParam("source")
	sourceID := c.QueryParam("source_id")
	if source == "" || sourceID == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "source and source_id are required"})
	}

	church, err := s.Store.GetChurchBySourceID(c.Request().Context(), source, sourceID)
	if err != nil || church == nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Not found"})
	}
	return c.JSON(http.StatusOK, church)
}

func (s *Server) handleGetStats(c echo.Context) error {
	stats, err := s.Store.GetStats(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, stats)
}

type importRequest struct {
	providers.SearchParams
	ingest.ImportOptions
}

func (s *Server) handleImport(c echo.Context) error {
	var req importRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
	}

	result, err := s.Ingest.ImportFromProvider(c.Request().Context(), req.SearchParams, req.ImportOptions)
	if err != nil {
		return importError(c, err)
	}
	return c.JSON(http.StatusOK, result)
}

type importChurchRequest struct {
	Provider   string `json:"provider"`
	ExternalID string `json:"external_id"`
	ingest.ImportOptions
}

func (s *Server) handleImportChurch(c echo.Context) error {
	var req importChurchRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
	}
	if req.ExternalID == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "external_id is required"})
	}
	opts := req.ImportOptions
	opts.Provider = req.Provider

	result, err := s.Ingest.ImportSingleChurch(c.Request().Context(), req.Provider, req.ExternalID, opts)
	if err != nil {
		return importError(c, err)
	}
	return c.JSON(http.StatusOK, result)
}

type importRawRequest struct {
	Churches []providers.RawChurch `json:"churches"`
	ingest.ImportOptions
}

func (s *Server) handleImportRaw(c echo.Context) error {
	var req importRawRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
	}
	for i, raw := range req.Churches {
		if raw.Name == "" || raw.Source == "" || raw.SourceID == "" {
			return c.JSON(http.StatusBadRequest, map[string]string{
				"error": fmt.Sprintf("church %d: name, source and source_id are required", i),
			})
		}
	}

	result, err := s.Ingest.ImportRawData(c.Request().Context(), req.Churches, req.ImportOptions)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, result)
}

func (s *Server) handleImportSeeds(c echo.Context) error {
	var opts ingest.ImportOptions
	if err := c.Bind(&opts); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
	}

	result, err := s.Ingest.ImportSeeds(c.Request().Context(), opts)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, result)
}

type enrichRequest struct {
	BatchSize int    `json:"batch_size"`
	ChurchID  string `json:"church_id"`
}

func (s *Server) handleEnrich(c echo.Context) error {
	if s.Enrich == nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "No AI provider configured"})
	}

	var req enrichRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
	}

	ctx := c.Request().Context()

	if req.ChurchID != "" {
		id, err := uuid.Parse(req.ChurchID)
		if err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid church_id"})
		}
		if err := s.Enrich.EnrichChurch(ctx, id); err != nil {
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
		}
		return c.JSON(http.StatusOK, map[string]string{"message": "Enrichment complete", "church_id": req.ChurchID})
	}

	result, err := s.Enrich.ProcessQueue(ctx, req.BatchSize)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, result)
}

func (s *Server) handleRetryFailed(c echo.Context) error {
	if s.Enrich == nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "No AI provider configured"})
	}

	limit := 100
	if raw := strings.TrimSpace(c.QueryParam("limit")); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 && parsed <= 1000 {
			limit = parsed
		}
	}

	n, err := s.Enrich.RetryFailed(c.Request().Context(), limit)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"message": "Retry queued", "retried": n})
}

func (s *Server) handleQueueStats(c echo.Context) error {
	stats, err := s.Queue.Stats(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, stats)
}

func (s *Server) handleQueueFailed(c echo.Context) error {
	limit := 50
	if raw := strings.TrimSpace(c.QueryParam("limit")); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 && parsed <= 500 {
			limit = parsed
		}
	}

	entries, err := s.Queue.ListFailed(c.Request().Context(), limit)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"failed": entries})
}

func (s *Server) handleProviders(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"providers": s.Providers.Available(),
		"default":   s.Providers.Default(),
	})
}

// importError maps validation and configuration problems to 400 so a bad
// request is distinguishable from a provider outage.
func importError(c echo.Context, err error) error {
	var notConfigured *providers.ErrProviderNotConfigured
	if errors.Is(err, providers.ErrMissingLocation) || errors.As(err, &notConfigured) {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
}

func (s *Server) Start(port string) error {
	return s.Echo.Start(":" + port)
}

func (s *Server) adminMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		secret, err := s.adminSecret()
		if err != nil {
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Server admin configuration error"})
		}

		authHeader := c.Request().Header.Get("Authorization")
		adminHeader := c.Request().Header.Get("X-Admin-Secret")

		if adminHeader == secret {
			return next(c)
		}
		if len(authHeader) > 7 && strings.EqualFold(authHeader[:7], "Bearer ") {
			if authHeader[7:] == secret {
				return next(c)
			}
		}

		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized admin access"})
	}
}

func (s *Server) adminSecret() (string, error) {
	adminSecretOnce.Do(func() {
		if secret := strings.TrimSpace(s.cfg.AdminSecret); secret != "" {
			adminSecretRuntime = secret
			return
		}

		buf := make([]byte, 48)
		if _, err := rand.Read(buf); err != nil {
			adminSecretErr = fmt.Errorf("failed to generate ADMIN_SECRET fallback: %w", err)
			return
		}

		adminSecretRuntime = base64.RawURLEncoding.EncodeToString(buf)
		log.Print("ADMIN_SECRET is not set; using ephemeral in-memory fallback secret")
	})

	if adminSecretErr != nil {
		return "", adminSecretErr
	}
	if adminSecretRuntime == "" {
		return "", fmt.Errorf("admin secret unavailable")
	}
	return adminSecretRuntime, nil
}
