package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tanvi/payboard/internal/domain"
	"github.com/tanvi/payboard/internal/service"
)

// recentFeedLimit caps the quick transaction feed.
const recentFeedLimit = 20

// defaultSeedCount matches the convenience seed endpoint's default batch.
const defaultSeedCount = 10

// Seeder populates the store with sample transactions.
type Seeder interface {
	Seed(ctx context.Context, count int) (int, error)
}

// APIHandlers exposes HTTP handlers for the REST API.
type APIHandlers struct {
	logger  *slog.Logger
	records *service.RecordService
	stats   *service.StatsService
	seeder  Seeder
}

// NewAPIHandlers constructs an APIHandlers instance. The seeder may be
// nil, which disables the seed endpoint.
func NewAPIHandlers(logger *slog.Logger, records *service.RecordService, stats *service.StatsService, seeder Seeder) *APIHandlers {
	return &APIHandlers{
		logger:  logger,
		records: records,
		stats:   stats,
		seeder:  seeder,
	}
}

func (h *APIHandlers) handleTransactions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}

	query := r.URL.Query()
	filter := domain.ListFilter{
		TxnID:  query.Get("txn_id"),
		Payer:  query.Get("payer"),
		Payee:  query.Get("payee"),
		Status: query.Get("status"),
		Limit:  parseInt(query.Get("limit"), 0),
	}

	txns, err := h.records.List(r.Context(), filter)
	if err != nil {
		h.writeServiceError(w, err, "failed to list transactions")
		return
	}
	respondJSON(w, http.StatusOK, toTransactionResponses(txns))
}

// handleTransaction serves /api/transactions/{id} and
// /api/transactions/{id}/audit.
func (h *APIHandlers) handleTransaction(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/transactions/")
	rest = strings.Trim(rest, "/")

	txnID, sub, _ := strings.Cut(rest, "/")
	if txnID == "" {
		writeError(w, http.StatusBadRequest, "transaction ID is required")
		return
	}

	switch {
	case sub == "audit":
		if r.Method != http.MethodGet {
			methodNotAllowed(w, http.MethodGet)
			return
		}
		h.auditHistory(w, r, txnID)
	case sub != "":
		writeError(w, http.StatusNotFound, "unknown resource")
	case r.Method == http.MethodGet:
		h.getTransaction(w, r, txnID)
	case r.Method == http.MethodPut:
		h.updateTransaction(w, r, txnID)
	default:
		methodNotAllowed(w, http.MethodGet, http.MethodPut)
	}
}

func (h *APIHandlers) getTransaction(w http.ResponseWriter, r *http.Request, txnID string) {
	txn, err := h.records.Get(r.Context(), txnID)
	if err != nil {
		h.writeServiceError(w, err, "failed to fetch transaction")
		return
	}
	respondJSON(w, http.StatusOK, toTransactionResponse(txn))
}

func (h *APIHandlers) updateTransaction(w http.ResponseWriter, r *http.Request, txnID string) {
	if r.Body == nil {
		writeError(w, http.StatusBadRequest, "request body is required")
		return
	}
	defer r.Body.Close()

	// UseNumber keeps amounts textual so the engine can compare them as
	// exact decimals.
	decoder := json.NewDecoder(r.Body)
	decoder.UseNumber()

	var fieldMap map[string]any
	if err := decoder.Decode(&fieldMap); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	txn, err := h.records.Update(r.Context(), txnID, fieldMap)
	if err != nil {
		h.writeServiceError(w, err, "failed to update transaction")
		return
	}
	respondJSON(w, http.StatusOK, toTransactionResponse(txn))
}

func (h *APIHandlers) auditHistory(w http.ResponseWriter, r *http.Request, txnID string) {
	events, err := h.records.AuditHistory(r.Context(), txnID)
	if err != nil {
		h.writeServiceError(w, err, "failed to fetch audit history")
		return
	}
	respondJSON(w, http.StatusOK, toAuditResponses(events))
}

func (h *APIHandlers) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}

	query := r.URL.Query()
	var windowStart time.Time
	if v := query.Get("window_start"); v != "" {
		ts, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid window_start timestamp")
			return
		}
		windowStart = ts
	}
	recentLimit := parseInt(query.Get("recent_limit"), 0)

	snapshot, err := h.stats.Compute(r.Context(), windowStart, recentLimit)
	if err != nil {
		h.writeServiceError(w, err, "failed to compute stats")
		return
	}
	respondJSON(w, http.StatusOK, toStatsResponse(snapshot))
}

func (h *APIHandlers) handleRecent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}

	txns, err := h.records.List(r.Context(), domain.ListFilter{Limit: recentFeedLimit})
	if err != nil {
		h.writeServiceError(w, err, "failed to list recent transactions")
		return
	}
	respondJSON(w, http.StatusOK, toTransactionResponses(txns))
}

func (h *APIHandlers) handleSeed(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	if h.seeder == nil {
		writeError(w, http.StatusNotFound, "seeding is not enabled")
		return
	}

	count := defaultSeedCount
	if r.Body != nil {
		defer r.Body.Close()
		var payload seedRequest
		if err := json.NewDecoder(r.Body).Decode(&payload); err == nil && payload.Count > 0 {
			count = payload.Count
		}
	}

	inserted, err := h.seeder.Seed(r.Context(), count)
	if err != nil {
		h.logger.Error("seeding failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to seed transactions")
		return
	}
	respondJSON(w, http.StatusCreated, seedResponse{Inserted: inserted})
}

// writeServiceError maps sentinel errors onto HTTP statuses; anything
// unrecognized is logged and reported as a 500.
func (h *APIHandlers) writeServiceError(w http.ResponseWriter, err error, logMsg string) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "transaction not found")
	case errors.Is(err, domain.ErrInvalidRequest):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrStorageUnavailable):
		h.logger.Error(logMsg, "error", err)
		writeError(w, http.StatusServiceUnavailable, "storage unavailable")
	default:
		h.logger.Error(logMsg, "error", err)
		writeError(w, http.StatusInternalServerError, logMsg)
	}
}

// --- Request & Response DTOs ---

type seedRequest struct {
	Count int `json:"count"`
}

type seedResponse struct {
	Inserted int `json:"inserted"`
}

type transactionResponse struct {
	TxnID     string `json:"txn_id"`
	Payer     string `json:"payer"`
	Payee     string `json:"payee"`
	Amount    string `json:"amount"`
	Channel   string `json:"channel"`
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Remarks   string `json:"remarks"`
}

type auditEventResponse struct {
	ID       string `json:"id"`
	TxnID    string `json:"txn_id"`
	Field    string `json:"field"`
	OldValue any    `json:"old_value"`
	NewValue any    `json:"new_value"`
	EditedBy string `json:"edited_by"`
	EditedAt string `json:"edited_at"`
}

type channelStatsResponse struct {
	Channel string `json:"channel"`
	Count   int64  `json:"count"`
	Volume  string `json:"volume"`
}

type statusCountResponse struct {
	Status string `json:"status"`
	Count  int64  `json:"count"`
}

type statsResponse struct {
	TotalCount  int64                  `json:"total_count"`
	TotalVolume string                 `json:"total_volume"`
	ChannelData []channelStatsResponse `json:"channel_data"`
	StatusData  []statusCountResponse  `json:"status_data"`
	RecentEdits []auditEventResponse   `json:"recent_edits"`
}

// --- Helpers ---

func toTransactionResponse(txn domain.Transaction) transactionResponse {
	return transactionResponse{
		TxnID:     txn.TxnID,
		Payer:     txn.Payer,
		Payee:     txn.Payee,
		Amount:    txn.Amount.String(),
		Channel:   string(txn.Channel),
		Status:    string(txn.Status),
		Timestamp: formatTime(txn.Timestamp),
		Remarks:   txn.Remarks,
	}
}

func toTransactionResponses(txns []domain.Transaction) []transactionResponse {
	out := make([]transactionResponse, 0, len(txns))
	for _, txn := range txns {
		out = append(out, toTransactionResponse(txn))
	}
	return out
}

func toAuditResponses(events []domain.AuditEvent) []auditEventResponse {
	out := make([]auditEventResponse, 0, len(events))
	for _, ev := range events {
		out = append(out, auditEventResponse{
			ID:       ev.ID,
			TxnID:    ev.TxnID,
			Field:    ev.Field,
			OldValue: renderFieldValue(ev.OldValue),
			NewValue: renderFieldValue(ev.NewValue),
			EditedBy: ev.EditedBy,
			EditedAt: formatTime(ev.EditedAt),
		})
	}
	return out
}

func toStatsResponse(snapshot domain.StatsSnapshot) statsResponse {
	resp := statsResponse{
		TotalCount:  snapshot.TotalCount,
		TotalVolume: snapshot.TotalVolume.String(),
		ChannelData: make([]channelStatsResponse, 0, len(snapshot.ChannelBreakdown)),
		StatusData:  make([]statusCountResponse, 0, len(snapshot.StatusBreakdown)),
		RecentEdits: toAuditResponses(snapshot.RecentEdits),
	}
	for channel, stats := range snapshot.ChannelBreakdown {
		resp.ChannelData = append(resp.ChannelData, channelStatsResponse{
			Channel: string(channel),
			Count:   stats.Count,
			Volume:  stats.Volume.String(),
		})
	}
	for status, count := range snapshot.StatusBreakdown {
		resp.StatusData = append(resp.StatusData, statusCountResponse{
			Status: string(status),
			Count:  count,
		})
	}
	return resp
}

// renderFieldValue flattens domain-typed values for JSON output.
func renderFieldValue(value any) any {
	switch v := value.(type) {
	case decimal.Decimal:
		return v.String()
	case domain.Status:
		return string(v)
	case domain.Channel:
		return string(v)
	default:
		return value
	}
}

func parseInt(value string, fallback int) int {
	if value == "" {
		return fallback
	}
	if v, err := strconv.Atoi(value); err == nil {
		return v
	}
	return fallback
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{
		"error": msg,
	})
}

func methodNotAllowed(w http.ResponseWriter, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}
