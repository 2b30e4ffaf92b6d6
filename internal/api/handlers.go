package api

import (
	"errors"
	"io/fs"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/AgentShepherd/dataworks/internal/fileutil"
	"github.com/AgentShepherd/dataworks/internal/tasks"
)

// maxTaskText bounds the task description; longer text is rejected before
// any parsing.
const maxTaskText = 8 << 10

// RunRequest is the JSON body accepted by POST /run.
type RunRequest struct {
	Task string `json:"task" binding:"required,max=8192"`
}

// handleRun handles POST /run?task=... or POST /run {"task": "..."}
func (s *Server) handleRun(c *gin.Context) {
	text := c.Query("task")
	if text == "" && c.Request.ContentLength != 0 {
		var req RunRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			Error(c, http.StatusBadRequest, "invalid request body: "+err.Error())
			return
		}
		text = req.Task
	}
	text = strings.TrimSpace(text)
	if text == "" {
		Error(c, http.StatusBadRequest, "task is required")
		return
	}
	if len(text) > maxTaskText {
		Error(c, http.StatusBadRequest, "task is too long")
		return
	}

	res, err := s.d.Run(c.Request.Context(), text)
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, res)
}

// handleRead handles GET /read?path=...
func (s *Server) handleRead(c *gin.Context) {
	p := c.Query("path")
	if p == "" {
		Error(c, http.StatusBadRequest, "path is required")
		return
	}
	canonical, err := s.d.AuthorizeRead(c.Request.Context(), p)
	if err != nil {
		Fail(c, err)
		return
	}

	data, err := fileutil.ReadFileLimited(canonical, s.d.Authorizer().MaxFileSize())
	switch {
	case err == nil:
	case errors.Is(err, fs.ErrNotExist):
		Error(c, http.StatusNotFound, "file not found")
		return
	case errors.Is(err, fileutil.ErrTooLarge):
		Error(c, http.StatusRequestEntityTooLarge, "file exceeds the maximum file size")
		return
	case errors.Is(err, fileutil.ErrNotRegular):
		Error(c, http.StatusBadRequest, "not a regular file")
		return
	default:
		httpLog.Error("read %s: %v", s.d.Authorizer().Relative(canonical), err)
		Error(c, http.StatusInternalServerError, "failed to read file")
		return
	}
	c.Data(http.StatusOK, "text/plain; charset=utf-8", data)
}

// FilterQuery represents query parameters for the filter-csv endpoint
type FilterQuery struct {
	FilePath string `form:"file_path" binding:"required,max=4096"`
	Column   string `form:"column" binding:"required,max=256"`
	Value    string `form:"value" binding:"max=4096"`
}

// handleFilterCSV handles GET /api/v1/filter-csv
func (s *Server) handleFilterCSV(c *gin.Context) {
	var q FilterQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		Error(c, http.StatusBadRequest, err.Error())
		return
	}
	canonical, err := s.d.AuthorizeRead(c.Request.Context(), q.FilePath)
	if err != nil {
		Fail(c, err)
		return
	}

	rows, err := tasks.FilterCSV(canonical, q.Column, q.Value, s.d.Authorizer().MaxFileSize())
	switch {
	case err == nil:
	case errors.Is(err, tasks.ErrUnknownColumn):
		Error(c, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, fs.ErrNotExist):
		Error(c, http.StatusNotFound, "file not found")
		return
	case errors.Is(err, fileutil.ErrTooLarge):
		Error(c, http.StatusRequestEntityTooLarge, "file exceeds the maximum file size")
		return
	default:
		httpLog.Warn("filter %s: %v", s.d.Authorizer().Relative(canonical), err)
		Error(c, http.StatusBadRequest, "file is not valid CSV")
		return
	}
	Success(c, rows)
}

// OperationInfo describes one registered operation.
type OperationInfo struct {
	Code        string `json:"code"`
	Summary     string `json:"summary"`
	Verb        string `json:"verb,omitempty"`
	Supported   bool   `json:"supported"`
	Unsupported string `json:"unsupported_reason,omitempty"`
}

// handleOperations handles GET /api/v1/operations
func (s *Server) handleOperations(c *gin.Context) {
	ops := s.d.Registry().Operations()
	out := make([]OperationInfo, 0, len(ops))
	for _, op := range ops {
		out = append(out, OperationInfo{
			Code:        op.Code,
			Summary:     op.Summary,
			Verb:        string(op.Verb),
			Supported:   op.Run != nil,
			Unsupported: op.Unsupported,
		})
	}
	Success(c, out)
}

// handleHealth handles GET /health
func (s *Server) handleHealth(c *gin.Context) {
	m := s.d.Metrics()
	Success(c, gin.H{
		"status":       "ok",
		"version":      s.opts.Version,
		"config_stale": s.opts.Stale(),
		"metrics":      m.GetStats(),
		"deny_rate":    m.DenyRate(),
	})
}
