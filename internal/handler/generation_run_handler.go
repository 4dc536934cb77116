package handler

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/helpdesk-datagen/internal/dto"
	"github.com/noah-isme/helpdesk-datagen/internal/middleware"
	"github.com/noah-isme/helpdesk-datagen/internal/models"
	"github.com/noah-isme/helpdesk-datagen/internal/service"
	appErrors "github.com/noah-isme/helpdesk-datagen/pkg/errors"
	"github.com/noah-isme/helpdesk-datagen/pkg/response"
)

type runService interface {
	CreateRun(ctx context.Context, req dto.GenerateRequest) (*dto.RunCreatedResponse, error)
	GetRun(ctx context.Context, id string) (*dto.RunResponse, error)
	GetStats(ctx context.Context, id string) (*dto.RunStatsResponse, error)
	ResolveDownload(ctx context.Context, token string) (*service.RunDownload, error)
}

// GenerationRunHandler exposes the asynchronous dataset generation API.
type GenerationRunHandler struct {
	runs runService
}

// NewGenerationRunHandler constructs the handler.
func NewGenerationRunHandler(runs runService) *GenerationRunHandler {
	return &GenerationRunHandler{runs: runs}
}

// CreateRun godoc
// @Summary Queue a dataset generation run
// @Tags Runs
// @Accept json
// @Produce json
// @Param payload body dto.GenerateRequest true "Generation request"
// @Success 202 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 503 {object} response.Envelope
// @Router /runs [post]
func (h *GenerationRunHandler) CreateRun(c *gin.Context) {
	var req dto.GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid generation payload"))
		return
	}
	created, err := h.runs.CreateRun(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Accepted(c, created)
}

// GetRun godoc
// @Summary Generation run status
// @Tags Runs
// @Produce json
// @Param id path string true "Run ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /runs/{id} [get]
func (h *GenerationRunHandler) GetRun(c *gin.Context) {
	run, err := h.runs.GetRun(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetMeta(c, "terminal", run.Status == models.RunStatusFinished || run.Status == models.RunStatusFailed)
	response.JSON(c, http.StatusOK, run, middleware.ExtractMeta(c))
}

// GetStats godoc
// @Summary Per-technician stats of a finished run
// @Tags Runs
// @Produce json
// @Param id path string true "Run ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /runs/{id}/stats [get]
func (h *GenerationRunHandler) GetStats(c *gin.Context) {
	stats, err := h.runs.GetStats(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats, middleware.ExtractMeta(c))
}

// Download godoc
// @Summary Download a run artifact through a signed token
// @Tags Runs
// @Produce octet-stream
// @Param token path string true "Signed download token"
// @Success 200 {file} file
// @Failure 403 {object} response.Envelope
// @Router /export/{token} [get]
func (h *GenerationRunHandler) Download(c *gin.Context) {
	token := strings.TrimSpace(c.Param("token"))
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token is required"))
		return
	}
	download, err := h.runs.ResolveDownload(c.Request.Context(), token)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer download.File.Close() //nolint:errcheck
	info, err := download.File.Stat()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to stat artifact"))
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", download.Filename))
	c.Header("Cache-Control", "no-store")
	c.DataFromReader(http.StatusOK, info.Size(), contentType(download.Format), download.File, nil)
}

func contentType(format string) string {
	switch format {
	case "csv":
		return "text/csv"
	case "pdf":
		return "application/pdf"
	default:
		return "application/octet-stream"
	}
}
