package server

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/agenthands/tabgraph/internal/core"
)

// receive stores the multipart "file" part in a temp file owned by the
// caller.
func (s *Server) receive(c *gin.Context) (string, error) {
	fh, err := c.FormFile("file")
	if err != nil {
		return "", fmt.Errorf("%w: file is required", core.ErrValidation)
	}
	dir := s.TempDir
	if dir == "" {
		dir = os.TempDir()
	}
	path := filepath.Join(dir, "tabgraph-"+uuid.NewString()+filepath.Ext(fh.Filename))
	if err := c.SaveUploadedFile(fh, path); err != nil {
		return "", fmt.Errorf("failed to store uploaded file: %w", err)
	}
	return path, nil
}

func (s *Server) CreateUpload(c *gin.Context) {
	path, err := s.receive(c)
	if err != nil {
		s.fail(c, "receive file", err)
		return
	}

	upload, _, err := s.Uploads.Start(c.Request.Context(), c.PostForm("name"), path, formList(c, "mappings"))
	if err != nil {
		s.fail(c, "start upload", err)
		return
	}
	c.JSON(http.StatusAccepted, upload)
}

func (s *Server) ResumeUpload(c *gin.Context) {
	name := c.Param("name")
	if _, err := s.Uploads.Resume(c.Request.Context(), name); err != nil {
		s.fail(c, "resume upload", err)
		return
	}
	upload, err := s.Uploads.Graph.GetUpload(c.Request.Context(), name)
	if err != nil {
		s.fail(c, "get upload", err)
		return
	}
	c.JSON(http.StatusAccepted, upload)
}

func (s *Server) ListUploads(c *gin.Context) {
	p, err := s.paging(c)
	if err != nil {
		s.fail(c, "list uploads", err)
		return
	}
	var finished bool
	switch c.DefaultQuery("state", "unfinished") {
	case "unfinished":
	case "finished":
		finished = true
	default:
		s.fail(c, "list uploads", fmt.Errorf("%w: state must be finished or unfinished", core.ErrValidation))
		return
	}

	uploads, err := s.Uploads.Graph.ListUploads(c.Request.Context(), finished, p.skip, p.limit)
	if err != nil {
		s.fail(c, "list uploads", err)
		return
	}
	c.JSON(http.StatusOK, list(uploads))
}

func (s *Server) GetUpload(c *gin.Context) {
	upload, err := s.Uploads.Graph.GetUpload(c.Request.Context(), c.Param("name"))
	if err != nil {
		s.fail(c, "get upload", err)
		return
	}
	c.JSON(http.StatusOK, upload)
}
