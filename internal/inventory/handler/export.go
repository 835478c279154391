package handler

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/medistock/medistock-backend/internal/inventory/domain"
	"github.com/medistock/medistock-backend/internal/inventory/service"
	"github.com/medistock/medistock-backend/pkg/errors"
	"github.com/medistock/medistock-backend/pkg/httputil"
	"github.com/medistock/medistock-backend/pkg/i18n"
	"github.com/medistock/medistock-backend/pkg/logger"
)

// ExportHandler serves inventory reports as JSON, HTML or PDF
type ExportHandler struct {
	service *service.ReportService
	logger  *logger.Logger
}

// NewExportHandler creates a new export handler
func NewExportHandler(svc *service.ReportService, log *logger.Logger) *ExportHandler {
	return &ExportHandler{
		service: svc,
		logger:  log,
	}
}

// Report builds the report named by {type} and renders it in ?format=
// (json by default).
func (h *ExportHandler) Report(w http.ResponseWriter, r *http.Request) {
	format := strings.ToLower(r.URL.Query().Get("format"))
	if format == "" {
		format = "json"
	}
	if format != "json" && format != "html" && format != "pdf" {
		httputil.ErrorLocalized(w, r, errors.Validation(map[string]string{"format": "must be one of: json html pdf"}))
		return
	}

	report, err := h.service.Build(r.Context(), chi.URLParam(r, "type"))
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	localizer := i18n.LocalizerFromContext(r.Context())
	switch format {
	case "html":
		page, err := h.service.RenderHTML(report, localizer)
		if err != nil {
			h.logger.Error().Err(err).Str("type", string(report.Type)).Msg("failed to render report HTML")
			httputil.ErrorLocalized(w, r, err)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write(page)
	case "pdf":
		pdfBytes, err := h.service.RenderPDF(report, localizer)
		if err != nil {
			h.logger.Error().Err(err).Str("type", string(report.Type)).Msg("failed to generate report PDF")
			httputil.ErrorLocalized(w, r, err)
			return
		}
		w.Header().Set("Content-Type", "application/pdf")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", reportFilename(report)))
		w.Header().Set("Content-Length", fmt.Sprintf("%d", len(pdfBytes)))
		w.Write(pdfBytes)
	default:
		httputil.JSON(w, http.StatusOK, report)
	}
}

func reportFilename(r *domain.Report) string {
	return fmt.Sprintf("%s-report-%s.pdf", r.Type, r.GeneratedAt.Format("2006-01-02"))
}
