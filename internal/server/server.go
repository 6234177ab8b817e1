// Package server exposes the save pipeline and the article store over HTTP
// for the browser extension and dashboard.
package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/MitsuhaFe/Digest-AI/internal/ai"
	"github.com/MitsuhaFe/Digest-AI/internal/app"
	"github.com/MitsuhaFe/Digest-AI/internal/content"
	"github.com/MitsuhaFe/Digest-AI/internal/page"
	"github.com/MitsuhaFe/Digest-AI/internal/store"
)

// Service is what the handlers need from the application.
type Service interface {
	Fetch(ctx context.Context, rawURL string) (*page.Snapshot, error)
	Extract(ctx context.Context, snap *page.Snapshot) (app.Extraction, error)
	Save(ctx context.Context, snap *page.Snapshot, opts app.SaveOptions) (store.Article, error)
	SaveURL(ctx context.Context, rawURL string, opts app.SaveOptions) (store.Article, error)
	List(ctx context.Context) ([]store.Article, error)
	Get(ctx context.Context, id string) (store.Article, error)
	UpdateTags(ctx context.Context, id string, tags []string) (store.Article, error)
	Delete(ctx context.Context, id string) error
	Config() app.Config
}

type Server struct {
	svc    Service
	router *gin.Engine
}

func New(svc Service) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(), cors())
	s := &Server{svc: svc, router: router}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.router.GET("/healthz", s.health)

	api := s.router.Group("/api")
	{
		api.POST("/extract", s.extract)
		api.POST("/articles", s.saveArticle)
		api.GET("/articles", s.listArticles)
		api.GET("/articles/:id", s.getArticle)
		api.PUT("/articles/:id/tags", s.updateTags)
		api.DELETE("/articles/:id", s.deleteArticle)
		api.GET("/articles/:id/export", s.exportArticle)
	}
}

// Handler returns the router for tests and custom listeners.
func (s *Server) Handler() http.Handler { return s.router }

// Run serves on addr until ctx is cancelled, then drains for up to ten
// seconds.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.router, ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("listening")
		errCh <- srv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		ev := log.Info()
		if c.Writer.Status() >= 500 {
			ev = log.Warn()
		}
		ev.Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Msg("request")
	}
}

func cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		h.Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, PUT, DELETE")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"version": app.BuildVersion,
		"model":   s.svc.Config().AIModel,
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

// saveRequest carries either a snapshot captured by the extension or a bare
// URL for the server to fetch.
type saveRequest struct {
	Snapshot *page.Snapshot `json:"snapshot"`
	URL      string         `json:"url"`
	app.SaveOptions
}

func (r saveRequest) valid() bool {
	if r.Snapshot != nil {
		return strings.TrimSpace(r.Snapshot.URL) != ""
	}
	return strings.TrimSpace(r.URL) != ""
}

func (s *Server) extract(c *gin.Context) {
	var req saveRequest
	if err := c.ShouldBindJSON(&req); err != nil || !req.valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "snapshot.url or url is required"})
		return
	}
	snap := req.Snapshot
	if snap == nil {
		var err error
		if snap, err = s.svc.Fetch(c.Request.Context(), req.URL); err != nil {
			writeError(c, err)
			return
		}
	}
	ex, err := s.svc.Extract(c.Request.Context(), snap)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, ex)
}

func (s *Server) saveArticle(c *gin.Context) {
	var req saveRequest
	if err := c.ShouldBindJSON(&req); err != nil || !req.valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "snapshot.url or url is required"})
		return
	}
	var (
		art store.Article
		err error
	)
	if req.Snapshot != nil {
		art, err = s.svc.Save(c.Request.Context(), req.Snapshot, req.SaveOptions)
	} else {
		art, err = s.svc.SaveURL(c.Request.Context(), req.URL, req.SaveOptions)
	}
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, art)
}

func (s *Server) listArticles(c *gin.Context) {
	list, err := s.svc.List(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	if t := strings.TrimSpace(c.Query("type")); t != "" {
		list = store.FilterType(list, t)
	}
	c.JSON(http.StatusOK, gin.H{"articles": list, "count": len(list)})
}

func (s *Server) getArticle(c *gin.Context) {
	art, err := s.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, art)
}

func (s *Server) updateTags(c *gin.Context) {
	var req struct {
		Tags []string `json:"tags"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "tags must be a list of strings"})
		return
	}
	art, err := s.svc.UpdateTags(c.Request.Context(), c.Param("id"), req.Tags)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, art)
}

func (s *Server) deleteArticle(c *gin.Context) {
	if err := s.svc.Delete(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) exportArticle(c *gin.Context) {
	art, err := s.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	switch format := c.DefaultQuery("format", "md"); format {
	case "md", "markdown":
		attach(c, app.ExportFileName(art, "md"))
		c.Data(http.StatusOK, "text/markdown; charset=utf-8", []byte(app.ExportMarkdown(art)))
	case "pdf":
		var buf bytes.Buffer
		if err := app.ExportPDF(art, s.svc.Config().PDFFontPath, &buf); err != nil {
			writeError(c, fmt.Errorf("render pdf: %w", err))
			return
		}
		attach(c, app.ExportFileName(art, "pdf"))
		c.Data(http.StatusOK, "application/pdf", buf.Bytes())
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("unsupported format %q", format)})
	}
}

func attach(c *gin.Context, name string) {
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename*=UTF-8''%s`, url.PathEscape(name)))
}

// writeError maps pipeline errors to status codes.
func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	var (
		extractErr *content.ExtractionError
		apiErr     *ai.APIRequestError
		parseErr   *ai.ResponseParseError
	)
	switch {
	case errors.Is(err, store.ErrNotFound):
		status = http.StatusNotFound
	case errors.As(err, &extractErr):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, app.ErrMissingAPIKey), errors.Is(err, ai.ErrUnsupportedVendor):
		status = http.StatusBadRequest
	case errors.As(err, &apiErr), errors.As(err, &parseErr):
		status = http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
	}
	if status >= 500 {
		log.Error().Err(err).Str("path", c.Request.URL.Path).Msg("request failed")
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
