package httpx

import (
	"log/slog"
	"net/http"

	apperrors "github.com/VihangaMunasinghe/ares-sub001/internal/errors"
	"github.com/VihangaMunasinghe/ares-sub001/internal/service"
)

// AnalyzeHandlers serves stateless analysis of raw solver results.
type AnalyzeHandlers struct {
	Svc    *service.AnalysisService
	Logger *slog.Logger
}

// Analyze handles HTTP requests to analyze a raw payload without touching any job.
// The optional max_week query parameter enables the week range check.
func (h *AnalyzeHandlers) Analyze(w http.ResponseWriter, r *http.Request) {
	maxWeek := parseIntQuery(r, "max_week", 0)
	if maxWeek < 0 {
		WriteAppError(w, r, h.Logger, apperrors.ValidationField("max_week", "max_week must be non-negative"))
		return
	}
	raw, ok := ReadBody(w, r)
	if !ok {
		return
	}

	report, err := h.Svc.Analyze(r.Context(), raw, maxWeek)
	if err != nil {
		WriteAppError(w, r, h.Logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, report)
}
