// Package httpserver is a simulated MCQ generation backend for local
// development and tests. It implements the same HTTP contract as the real
// backend over an in-memory job store.
package httpserver

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/tinytelemetry/mcqpdf/internal/model"
)

// Server serves the simulated backend API.
type Server struct {
	addr      string
	store     *jobStore
	logger    *zap.Logger
	server    *http.Server
	ctx       context.Context
	cancel    context.CancelFunc
	startTime time.Time
	now       func() time.Time
}

// NewServer creates a new simulated backend. sc must pass Validate.
func NewServer(addr string, sc Scenario, logger *zap.Logger) (*Server, error) {
	if err := sc.Validate(); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	if addr == "" {
		addr = "127.0.0.1:8001"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		addr:      addr,
		store:     newJobStore(sc),
		logger:    logger,
		ctx:       ctx,
		cancel:    cancel,
		startTime: time.Now(),
		now:       time.Now,
	}, nil
}

// Handler returns the gin engine with every route registered.
func (s *Server) Handler() http.Handler {
	r := gin.New()
	r.Use(gin.Recovery(), s.accessLog())

	r.POST("/api/generate-mcq-pdf", s.handleCreate)
	r.GET("/api/job-status/:id", s.handleJobStatus)
	r.GET("/api/browser-status", s.handleBrowserStatus)
	r.POST("/api/browser-restart", s.handleBrowserRestart)
	r.GET("/api/health", s.handleHealth)
	r.GET("/files/:name", s.handleFile)
	return r
}

// Start begins serving HTTP requests.
func (s *Server) Start() error {
	gin.SetMode(gin.ReleaseMode)

	s.server = &http.Server{
		Handler:           s.Handler(),
		BaseContext:       func(_ net.Listener) context.Context { return s.ctx },
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.addr = listener.Addr().String()
	s.startTime = s.now()

	go s.server.Serve(listener)
	s.logger.Info("backend listening", zap.String("addr", s.addr))
	return nil
}

// Addr is the bound listen address once Start has returned.
func (s *Server) Addr() string { return s.addr }

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop() error {
	s.cancel()
	if s.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

func (s *Server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}

func (s *Server) handleCreate(c *gin.Context) {
	var req model.CreateJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid JSON body"})
		return
	}
	req.Topic = strings.TrimSpace(req.Topic)
	if req.Topic == "" {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Topic is required"})
		return
	}
	if req.ExamType == "" {
		req.ExamType = model.DefaultExamType
	}
	if req.PDFFormat == "" {
		req.PDFFormat = model.DefaultPDFFormat
	}
	if !req.ExamType.Valid() || !req.PDFFormat.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Unsupported exam_type or pdf_format"})
		return
	}

	now := s.now()
	if s.store.restarting(now) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"detail": "Browser is restarting, please retry"})
		return
	}

	job := s.store.create(req, now)
	s.logger.Info("job created",
		zap.String("job_id", job.ID),
		zap.String("topic", req.Topic),
		zap.String("exam_type", string(req.ExamType)),
		zap.String("pdf_format", string(req.PDFFormat)),
	)
	c.JSON(http.StatusOK, job)
}

func (s *Server) handleJobStatus(c *gin.Context) {
	rec, ok := s.store.get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"detail": "Job not found"})
		return
	}
	now := s.now()
	if s.store.restarting(now) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"detail": "Browser restarting"})
		return
	}
	c.JSON(http.StatusOK, s.store.snapshot(rec, now))
}

func (s *Server) handleBrowserStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.store.browserStatus(s.now()))
}

func (s *Server) handleBrowserRestart(c *gin.Context) {
	st := s.store.restart(s.now())
	s.logger.Warn("browser restart simulated", zap.Int("restart_count", st.BrowserRestartCount))
	c.JSON(http.StatusOK, st)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"uptime": s.now().Sub(s.startTime).String(),
		"jobs":   s.store.count(),
	})
}

func (s *Server) handleFile(c *gin.Context) {
	name := c.Param("name")
	id, ok := strings.CutSuffix(name, ".pdf")
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"detail": "File not found"})
		return
	}
	rec, ok := s.store.get(id)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"detail": "File not found"})
		return
	}
	job := s.store.snapshot(rec, s.now())
	if job.Status != model.JobCompleted {
		c.JSON(http.StatusNotFound, gin.H{"detail": "File not ready"})
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+name+`"`)
	c.Data(http.StatusOK, "application/pdf", placeholderPDF(
		string(rec.req.ExamType)+" MCQs: "+rec.req.Topic,
		"Format: "+string(rec.req.PDFFormat),
		job.Progress,
	))
}
