package server

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/agenthands/tabgraph/internal/core"
	"github.com/agenthands/tabgraph/internal/core/export"
	"github.com/agenthands/tabgraph/internal/core/ingest"
	"github.com/agenthands/tabgraph/internal/core/jobs"
	"github.com/agenthands/tabgraph/internal/core/match"
	"github.com/agenthands/tabgraph/internal/core/search"
)

type Server struct {
	Uploads *ingest.Ingestor
	Search  *search.Service
	Exports *export.Exporter
	Matches *match.Engine
	Jobs    *jobs.Runner

	DefaultLimit    int
	DefaultMaxDepth int
	TempDir         string
	Logger          *slog.Logger
}

func (s *Server) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.Default()
	}
	return s.Logger
}

func (s *Server) SetupRouter() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLog())

	r.GET("/health", s.Health)
	r.POST("/uploads", s.CreateUpload)
	r.GET("/uploads", s.ListUploads)
	r.GET("/uploads/:name", s.GetUpload)
	r.POST("/uploads/:name/resume", s.ResumeUpload)

	data := r.Group("/data")
	data.GET("/search", s.SearchRecords)
	data.GET("/searchForField", s.SearchForField)
	data.GET("/columns", s.Columns)
	data.GET("/searches/:name", s.GetSearchDefinition)
	data.POST("/exports", s.CreateExport)
	data.GET("/exports/:name", s.DownloadExport)
	data.POST("/matches", s.CreateMatch)
	data.GET("/matches", s.ListMatches)
	data.GET("/matches/:name", s.GetMatch)
	data.POST("/matches/:name/complete", s.CompleteMatch)

	return r
}

// Health reports liveness and the background job slots in use.
func (s *Server) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "jobs": s.Jobs.Limiter().Status()})
}

func (s *Server) requestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		s.logger().Debug("request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
		)
	}
}

// fail writes the status for err's class. Unclassified errors are logged
// and answered with a generic message.
func (s *Server) fail(c *gin.Context, op string, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, core.ErrValidation), errors.Is(err, core.ErrSourceFormat):
		status = http.StatusBadRequest
	case errors.Is(err, core.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, core.ErrConflict):
		status = http.StatusConflict
	case errors.Is(err, jobs.ErrTooManyJobs):
		status = http.StatusTooManyRequests
	}
	if status == http.StatusInternalServerError {
		s.logger().Error("request failed", "op", op, "error", err)
		c.JSON(status, gin.H{"error": "Failed to " + op})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

// queryList reads a repeated parameter sent either as name or name[].
func queryList(c *gin.Context, name string) []string {
	return append(c.QueryArray(name), c.QueryArray(name+"[]")...)
}

func formList(c *gin.Context, name string) []string {
	return append(c.PostFormArray(name), c.PostFormArray(name+"[]")...)
}

func intParam(raw, name string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("%w: %s must be a non-negative integer", core.ErrValidation, name)
	}
	return v, nil
}

type page struct {
	skip, limit int
}

func (s *Server) paging(c *gin.Context) (page, error) {
	skip, err := intParam(c.Query("skip"), "skip", 0)
	if err != nil {
		return page{}, err
	}
	limit, err := intParam(c.Query("limit"), "limit", s.DefaultLimit)
	if err != nil {
		return page{}, err
	}
	if limit == 0 {
		limit = search.DefaultLimit
	}
	return page{skip: skip, limit: limit}, nil
}

// list keeps empty results encoded as [] rather than null.
func list[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
