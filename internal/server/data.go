package server

import (
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/agenthands/tabgraph/internal/core"
	"github.com/agenthands/tabgraph/internal/core/match"
	"github.com/agenthands/tabgraph/internal/core/model"
	"github.com/agenthands/tabgraph/internal/core/query"
	"github.com/agenthands/tabgraph/internal/core/search"
)

func predicate(raw string) (model.LogicalPredicate, error) {
	p, err := model.ParsePredicate(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %w", core.ErrValidation, err)
	}
	return p, nil
}

// params reads the options shared by both search endpoints.
func (s *Server) params(c *gin.Context) (search.Params, error) {
	pg, err := s.paging(c)
	if err != nil {
		return search.Params{}, err
	}
	depth, err := intParam(c.Query("maxDepth"), "maxDepth", s.DefaultMaxDepth)
	if err != nil {
		return search.Params{}, err
	}
	pred, err := predicate(c.Query("predicate"))
	if err != nil {
		return search.Params{}, err
	}
	return search.Params{
		Tokens:    queryList(c, "columnAndQuery"),
		Predicate: pred,
		Uploads:   queryList(c, "uploads"),
		JoinBy:    queryList(c, "joinOn"),
		MaxDepth:  depth,
		Skip:      pg.skip,
		Limit:     pg.limit,
	}, nil
}

func (s *Server) SearchRecords(c *gin.Context) {
	p, err := s.params(c)
	if err != nil {
		s.fail(c, "search", err)
		return
	}
	records, err := s.Search.Search(c.Request.Context(), p)
	if err != nil {
		s.fail(c, "search", err)
		return
	}
	c.JSON(http.StatusOK, model.SearchResult{Records: list(records)})
}

func (s *Server) SearchForField(c *gin.Context) {
	p, err := s.params(c)
	if err != nil {
		s.fail(c, "search", err)
		return
	}
	t := query.QueryType(c.DefaultQuery("type", string(query.TypeEquals)))
	records, err := s.Search.ForField(c.Request.Context(), c.Query("field"), c.Query("query"), t, p)
	if err != nil {
		s.fail(c, "search", err)
		return
	}
	c.JSON(http.StatusOK, model.SearchResult{Records: list(records)})
}

func (s *Server) Columns(c *gin.Context) {
	cols, err := s.Search.Columns(c.Request.Context())
	if err != nil {
		s.fail(c, "list columns", err)
		return
	}
	c.JSON(http.StatusOK, list(cols))
}

func (s *Server) GetSearchDefinition(c *gin.Context) {
	def, err := s.Exports.Definitions.Load(c.Request.Context(), c.Param("name"))
	if err != nil {
		s.fail(c, "load search definition", err)
		return
	}
	c.JSON(http.StatusOK, def)
}

type ExportRequest struct {
	model.SearchDefinition
	Destination string `json:"destination"`
}

func (s *Server) CreateExport(c *gin.Context) {
	var req ExportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	pred, err := predicate(string(req.Predicate))
	if err != nil {
		s.fail(c, "start export", err)
		return
	}
	req.Predicate = pred

	if _, err := s.Exports.Start(c.Request.Context(), req.Destination, req.SearchDefinition); err != nil {
		s.fail(c, "start export", err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"destination": req.Destination})
}

func (s *Server) DownloadExport(c *gin.Context) {
	name := c.Param("name")
	rc, err := s.Exports.Open(c.Request.Context(), name)
	if err != nil {
		s.fail(c, "open export", err)
		return
	}
	defer rc.Close()

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name+".csv"))
	c.Header("Content-Type", "text/csv")
	c.Status(http.StatusOK)
	if _, err := io.Copy(c.Writer, rc); err != nil {
		s.logger().Error("failed to stream export", "export", name, "error", err)
	}
}

func (s *Server) CreateMatch(c *gin.Context) {
	depth, err := intParam(c.PostForm("maxDepth"), "maxDepth", s.DefaultMaxDepth)
	if err != nil {
		s.fail(c, "start match", err)
		return
	}
	pred, err := predicate(c.PostForm("predicate"))
	if err != nil {
		s.fail(c, "start match", err)
		return
	}
	path, err := s.receive(c)
	if err != nil {
		s.fail(c, "receive file", err)
		return
	}

	m, _, err := s.Matches.Start(c.Request.Context(), match.Request{
		Name:      c.PostForm("destination"),
		Path:      path,
		Mappings:  formList(c, "mappings"),
		Predicate: pred,
		Uploads:   formList(c, "uploads"),
		JoinBy:    formList(c, "joinOn"),
		MaxDepth:  depth,
	})
	if err != nil {
		s.fail(c, "start match", err)
		return
	}
	c.JSON(http.StatusAccepted, m)
}

func (s *Server) ListMatches(c *gin.Context) {
	p, err := s.paging(c)
	if err != nil {
		s.fail(c, "list matches", err)
		return
	}
	matches, err := s.Matches.List(c.Request.Context(), p.skip, p.limit)
	if err != nil {
		s.fail(c, "list matches", err)
		return
	}
	c.JSON(http.StatusOK, list(matches))
}

func (s *Server) GetMatch(c *gin.Context) {
	m, err := s.Matches.Get(c.Request.Context(), c.Param("name"))
	if err != nil {
		s.fail(c, "get match", err)
		return
	}
	c.JSON(http.StatusOK, m)
}

func (s *Server) CompleteMatch(c *gin.Context) {
	m, err := s.Matches.ForceComplete(c.Request.Context(), c.Param("name"))
	if err != nil {
		s.fail(c, "complete match", err)
		return
	}
	c.JSON(http.StatusOK, m)
}
