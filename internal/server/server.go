// Package server is the jsnorm HTTP service: schema CRUD under /json-schemas
// and normalization of every other collection.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	jsnorm "github.com/reoring/jsnorm"
	"github.com/reoring/jsnorm/internal/config"
	"github.com/reoring/jsnorm/internal/logger"
	"github.com/reoring/jsnorm/internal/metrics"
	"github.com/reoring/jsnorm/middleware"
	ginmw "github.com/reoring/jsnorm/middleware/gin"
	"github.com/reoring/jsnorm/repository"
	"github.com/reoring/jsnorm/schemadoc"
)

type Server struct {
	cfg     *config.Config
	store   repository.Store
	metrics *metrics.Service
	log     logger.Logger
	engine  *gin.Engine
}

// New wires routes. m may be nil to disable /metrics.
func New(ctx context.Context, cfg *config.Config, store repository.Store, m *metrics.Service) *Server {
	gin.SetMode(gin.ReleaseMode)
	s := &Server{cfg: cfg, store: store, metrics: m, log: logger.FromContext(ctx), engine: gin.New()}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler { return s.engine }

func (s *Server) routes() {
	r := s.engine
	r.Use(gin.Recovery(), s.withLogger)

	opt := middleware.Options{ParseOpt: s.cfg.Normalize.ParseOpt()}.WithDefaults()
	if s.metrics != nil {
		opt.Recorder = s.metrics
	}
	r.Use(ginmw.Normalize(s.store, opt))

	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	if s.metrics != nil {
		r.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	}

	g := r.Group("/" + middleware.SchemaCollection)
	g.GET("", s.listSchemas)
	g.POST("", s.putSchema)
	g.GET("/:collection", s.getSchema)
	g.PUT("/:collection", s.putSchema)
	g.DELETE("/:collection", s.deleteSchema)

	// data collections share the first path segment namespace with the routes above
	r.NoRoute(s.echoNormalized)
}

func (s *Server) withLogger(c *gin.Context) {
	start := time.Now()
	c.Request = c.Request.WithContext(logger.ContextWithLogger(c.Request.Context(), s.log))
	c.Next()
	s.log.Debug("request", "method", c.Request.Method, "path", c.Request.URL.Path, "status", c.Writer.Status(), "took", time.Since(start))
}

func (s *Server) echoNormalized(c *gin.Context) {
	if !middleware.IsWrite(c.Request.Method) || middleware.CollectionFromPath(c.Request.URL.Path) == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	if _, ok := ginmw.GetNormalized(c); !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no schema registered for collection"})
		return
	}
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", body)
}

func (s *Server) listSchemas(c *gin.Context) {
	names, err := s.store.List(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	if names == nil {
		names = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"collections": names})
}

func (s *Server) getSchema(c *gin.Context) {
	e, err := s.store.Find(c.Request.Context(), c.Param("collection"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, e.Document)
}

func (s *Server) putSchema(c *gin.Context) {
	body := c.Request.Body
	if n := s.cfg.Normalize.MaxBytes; n > 0 {
		body = http.MaxBytesReader(c.Writer, body, n)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": err.Error()})
		return
	}
	doc, diag, err := schemadoc.Import(data, schemadoc.Options{ValidateDocument: s.cfg.Repository.ValidateDocuments})
	if err != nil {
		s.fail(c, err)
		return
	}
	if name := c.Param("collection"); name != "" {
		if doc.CollectionName != "" && doc.CollectionName != name {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("collectionName %q does not match path %q", doc.CollectionName, name)})
			return
		}
		doc.CollectionName = name
		doc.Raw["collectionName"] = name
	}
	if err := repository.ValidateCollection(doc.CollectionName); err != nil {
		s.fail(c, err)
		return
	}
	if _, ok := doc.Raw["$schema"]; !ok {
		doc.Raw["$schema"] = schemadoc.DefaultDialect
	}
	if err := s.store.Put(c.Request.Context(), doc); err != nil {
		s.fail(c, err)
		return
	}
	status := http.StatusOK
	if c.Request.Method == http.MethodPost {
		status = http.StatusCreated
	}
	resp := gin.H{"collectionName": doc.CollectionName, "modelName": doc.ModelName}
	if diag.HasWarnings() {
		resp["warnings"] = diag.Warnings()
	}
	c.JSON(status, resp)
}

func (s *Server) deleteSchema(c *gin.Context) {
	if err := s.store.Delete(c.Request.Context(), c.Param("collection")); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		c.JSON(http.StatusNotFound, middleware.ErrorPayload(jsnorm.Issues{{Path: "/", Code: jsnorm.CodeSchemaNotFound}}))
	case errors.Is(err, repository.ErrNoCollection), errors.Is(err, repository.ErrInvalidCollection):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, repository.ErrReadOnly):
		c.JSON(http.StatusMethodNotAllowed, gin.H{"error": err.Error()})
	default:
		if iss, ok := jsnorm.AsIssues(err); ok {
			c.JSON(http.StatusBadRequest, middleware.ErrorPayload(iss))
			return
		}
		s.log.Error("request failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Server.Addr,
		Handler:           s.engine,
		ReadHeaderTimeout: s.cfg.Server.ReadTimeout,
		ReadTimeout:       s.cfg.Server.ReadTimeout,
	}
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("listening", "addr", s.cfg.Server.Addr)
		errCh <- srv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.Server.ShutdownTimeout)
	defer cancel()
	s.log.Info("shutting down")
	if err := srv.Shutdown(sctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
