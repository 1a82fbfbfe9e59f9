package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/harborstay/guest-ai-platform/internal/conversation"
	"github.com/harborstay/guest-ai-platform/internal/tenancy"
	"github.com/harborstay/guest-ai-platform/pkg/logging"
)

// ReportsHandler serves the monitoring surface: quality reports, duplicate
// sweeps, generic-response alerts, and configuration audits.
type ReportsHandler struct {
	monitor     *conversation.Monitor
	dedup       *conversation.Deduplicator
	gate        *conversation.ConfigGate
	logger      *logging.Logger
	sweepWindow time.Duration
}

// NewReportsHandler wires the reporting endpoints. sweepWindow is the
// default lookback for the duplicate sweep; zero means 24 hours.
func NewReportsHandler(monitor *conversation.Monitor, dedup *conversation.Deduplicator, gate *conversation.ConfigGate, logger *logging.Logger, sweepWindow time.Duration) *ReportsHandler {
	if logger == nil {
		logger = logging.Default()
	}
	if sweepWindow <= 0 {
		sweepWindow = 24 * time.Hour
	}
	return &ReportsHandler{monitor: monitor, dedup: dedup, gate: gate, logger: logger, sweepWindow: sweepWindow}
}

// Quality returns the aggregated quality report for a window. Defaults to
// the last 24 hours.
func (h *ReportsHandler) Quality(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := tenancy.TenantIDFromContext(r.Context())
	if !ok {
		http.Error(w, "missing tenant", http.StatusBadRequest)
		return
	}

	to := time.Now()
	from := to.Add(-24 * time.Hour)
	if v := r.URL.Query().Get("from"); v != "" {
		if parsed, err := time.Parse(time.RFC3339, v); err == nil {
			from = parsed
		}
	}
	if v := r.URL.Query().Get("to"); v != "" {
		if parsed, err := time.Parse(time.RFC3339, v); err == nil {
			to = parsed
		}
	}

	report, err := h.monitor.QualityReport(r.Context(), tenantID, from, to)
	if err != nil {
		h.logger.Error("quality report failed", "tenant_id", tenantID, "error", err.Error())
		http.Error(w, "report generation failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// Duplicates sweeps recent transcripts for repeated replies.
func (h *ReportsHandler) Duplicates(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := tenancy.TenantIDFromContext(r.Context())
	if !ok {
		http.Error(w, "missing tenant", http.StatusBadRequest)
		return
	}

	lookback := h.sweepWindow
	if v := r.URL.Query().Get("hours"); v != "" {
		if hours, err := strconv.Atoi(v); err == nil && hours > 0 {
			lookback = time.Duration(hours) * time.Hour
		}
	}

	alerts, err := h.dedup.DetectRecentDuplicates(r.Context(), tenantID, lookback)
	if err != nil {
		h.logger.Error("duplicate sweep failed", "tenant_id", tenantID, "error", err.Error())
		http.Error(w, "duplicate sweep failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"alerts": alerts, "count": len(alerts)})
}

// GenericResponses flags replies that leaned on generic hotel phrasing.
func (h *ReportsHandler) GenericResponses(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := tenancy.TenantIDFromContext(r.Context())
	if !ok {
		http.Error(w, "missing tenant", http.StatusBadRequest)
		return
	}

	lookback := time.Hour
	if v := r.URL.Query().Get("hours"); v != "" {
		if hours, err := strconv.Atoi(v); err == nil && hours > 0 {
			lookback = time.Duration(hours) * time.Hour
		}
	}

	alert, err := h.monitor.DetectGenericResponses(r.Context(), tenantID, lookback)
	if err != nil {
		h.logger.Error("generic response sweep failed", "tenant_id", tenantID, "error", err.Error())
		http.Error(w, "sweep failed", http.StatusInternalServerError)
		return
	}
	if alert == nil {
		writeJSON(w, http.StatusOK, map[string]any{"alert": nil})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"alert": alert})
}

// Configuration audits the tenant's configured data coverage.
func (h *ReportsHandler) Configuration(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := tenancy.TenantIDFromContext(r.Context())
	if !ok {
		http.Error(w, "missing tenant", http.StatusBadRequest)
		return
	}

	report, err := h.gate.ValidateConfiguration(r.Context(), tenantID)
	if err != nil {
		h.logger.Error("configuration audit failed", "tenant_id", tenantID, "error", err.Error())
		http.Error(w, "configuration audit failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, report)
}
