package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/chittyos/evidence-core/internal/apperr"
	"github.com/chittyos/evidence-core/internal/models"
)

type uploadRequest struct {
	Content        []byte `json:"content" validate:"required"`
	SourceFilename string `json:"source_filename" validate:"required"`
	MimeType       string `json:"mime_type" validate:"required"`
	Uploader       string `json:"uploader"`
	Client         string `json:"client"`
}

func (s *Server) handleSubmitDocument(w http.ResponseWriter, r *http.Request) {
	var req uploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.validate.Struct(req); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	resp, err := s.gateway.Submit(r.Context(), &models.DocumentInput{
		Content:        req.Content,
		SourceFilename: req.SourceFilename,
		MimeType:       req.MimeType,
		Uploader:       req.Uploader,
		Client:         req.Client,
	})
	if err != nil {
		s.respondAppErr(w, err, "submit document")
		return
	}
	s.respondJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	doc, err := s.store.GetDocument(r.Context(), id)
	if err != nil {
		s.respondAppErr(w, err, "get document")
		return
	}
	links, err := s.store.LinksForDocument(r.Context(), id)
	if err != nil {
		s.respondAppErr(w, err, "get document links")
		return
	}
	grants, err := s.store.GrantsForDocument(r.Context(), id)
	if err != nil {
		s.respondAppErr(w, err, "get document grants")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{
		"document": doc,
		"links":    links,
		"grants":   grants,
	})
}

func (s *Server) handleGetDocumentLog(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	log, err := s.store.LogForDocument(r.Context(), id)
	if err != nil {
		s.respondAppErr(w, err, "get document log")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"log": log})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var query models.SearchQuery
	if err := json.NewDecoder(r.Body).Decode(&query); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	resp, err := s.engine.Search(r.Context(), &query)
	if err != nil {
		s.respondAppErr(w, err, "search")
		return
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListGaps(w http.ResponseWriter, r *http.Request) {
	status := models.GapStatus(r.URL.Query().Get("status"))
	if status == "" {
		status = models.GapStatusOpen
	}
	offset, limit := pageParams(r)
	gaps, err := s.store.ListGaps(r.Context(), status, offset, limit)
	if err != nil {
		s.respondAppErr(w, err, "list gaps")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"gaps": gaps})
}

type resolveGapRequest struct {
	Value            string `json:"value" validate:"required"`
	SourceType       string `json:"sourceType"`
	SourceDocument   string `json:"sourceDocument"`
}

func (s *Server) handleResolveGap(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req resolveGapRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.validate.Struct(req); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	result, err := s.guardian.ResolveGap(r.Context(), id, req.Value, req.SourceDocument)
	if err != nil {
		s.respondAppErr(w, err, "resolve gap")
		return
	}
	s.respondJSON(w, http.StatusOK, result)
}

type createRuleRequest struct {
	Name             string               `json:"name" validate:"required"`
	RuleType         string               `json:"ruleType" validate:"required"`
	MatchCriteria    models.MatchCriteria `json:"matchCriteria"`
	CorrectionType   models.CorrectionType `json:"correctionType" validate:"required"`
	CorrectionValue  string               `json:"correctionValue"`
	RequiresApproval bool                 `json:"requiresApproval"`
}

func (s *Server) handleCreateRule(w http.ResponseWriter, r *http.Request) {
	var req createRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.validate.Struct(req); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	rule, affected, err := s.guardian.CreateRule(r.Context(), req.Name, req.RuleType, req.MatchCriteria,
		req.CorrectionType, req.CorrectionValue, req.RequiresApproval)
	if err != nil {
		s.respondAppErr(w, err, "create rule")
		return
	}
	s.respondJSON(w, http.StatusCreated, map[string]any{"rule": rule, "affected": affected})
}

func (s *Server) handleActivateRule(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.guardian.Activate(r.Context(), id); err != nil {
		s.respondAppErr(w, err, "activate rule")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "active"})
}

func (s *Server) handleApplyRule(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	queued, err := s.guardian.Apply(r.Context(), id)
	if err != nil {
		s.respondAppErr(w, err, "apply rule")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]int{"queued": queued})
}

func (s *Server) handleScanKnownErrors(w http.ResponseWriter, r *http.Request) {
	findings, err := s.guardian.ScanForKnownErrors(r.Context())
	if err != nil {
		s.respondAppErr(w, err, "scan known errors")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"findings": findings})
}

func (s *Server) handleListQueue(w http.ResponseWriter, r *http.Request) {
	status := models.CorrectionQueueItemStatus(r.URL.Query().Get("status"))
	if status == "" {
		status = models.QueueItemPending
	}
	_, limit := pageParams(r)
	items, err := s.store.ListQueueItems(r.Context(), "", status, limit)
	if err != nil {
		s.respondAppErr(w, err, "list queue")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"items": items})
}

type queueIDsRequest struct {
	IDs    []string `json:"ids" validate:"required,min=1"`
	Reason string   `json:"reason"`
}

func (s *Server) handleQueueApprove(w http.ResponseWriter, r *http.Request) {
	var req queueIDsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.validate.Struct(req); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.guardian.Approve(r.Context(), req.IDs); err != nil {
		s.respondAppErr(w, err, "approve queue items")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "approved"})
}

func (s *Server) handleQueueReject(w http.ResponseWriter, r *http.Request) {
	var req queueIDsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.validate.Struct(req); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.guardian.Reject(r.Context(), req.IDs, req.Reason); err != nil {
		s.respondAppErr(w, err, "reject queue items")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "rejected"})
}

func (s *Server) handleQueueBulkApply(w http.ResponseWriter, r *http.Request) {
	result, err := s.guardian.BulkApply(r.Context())
	if err != nil {
		s.respondAppErr(w, err, "bulk apply")
		return
	}
	s.respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleListDuplicates(w http.ResponseWriter, r *http.Request) {
	status := models.DuplicateStatus(r.URL.Query().Get("status"))
	if status == "" {
		status = models.DuplicateStatusPending
	}
	offset, limit := pageParams(r)
	candidates, err := s.store.ListDuplicateCandidates(r.Context(), status, offset, limit)
	if err != nil {
		s.respondAppErr(w, err, "list duplicates")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"candidates": candidates})
}

func (s *Server) handleConfirmDuplicate(w http.ResponseWriter, r *http.Request) {
	docA, docB := chi.URLParam(r, "docA"), chi.URLParam(r, "docB")
	a, b := models.OrderedPair(docA, docB)
	winner, loser, err := s.olderFirst(r.Context(), a, b)
	if err != nil {
		s.respondAppErr(w, err, "resolve merge order")
		return
	}
	if err := s.store.MergeDocuments(r.Context(), winner, loser); err != nil {
		s.respondAppErr(w, err, "merge documents")
		return
	}
	if err := s.store.SetDuplicateStatus(r.Context(), a, b, models.DuplicateStatusMerged, false); err != nil {
		s.respondAppErr(w, err, "set duplicate status")
		return
	}
	if s.logger != nil {
		s.logger.Info("duplicate confirmed and merged", zap.String("winner", winner), zap.String("loser", loser))
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"winner": winner, "loser": loser, "status": "merged"})
}

func (s *Server) handleRejectDuplicate(w http.ResponseWriter, r *http.Request) {
	docA, docB := chi.URLParam(r, "docA"), chi.URLParam(r, "docB")
	a, b := models.OrderedPair(docA, docB)
	if err := s.store.SetDuplicateStatus(r.Context(), a, b, models.DuplicateStatusNotDuplicate, false); err != nil {
		s.respondAppErr(w, err, "set duplicate status")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "not_duplicate"})
}

// olderFirst preserves the older document (by submission time) as the
// merge winner, mirroring duphunter.Hunter's own auto-merge rule, for a
// manually confirmed pair.
func (s *Server) olderFirst(ctx context.Context, docA, docB string) (winner, loser string, err error) {
	a, err := s.store.GetDocument(ctx, docA)
	if err != nil {
		return "", "", err
	}
	b, err := s.store.GetDocument(ctx, docB)
	if err != nil {
		return "", "", err
	}
	if a.SubmittedAt.Before(b.SubmittedAt) {
		return a.ID, b.ID, nil
	}
	return b.ID, a.ID, nil
}

type authorityPathRequest struct {
	FromEntityID string     `json:"fromEntityId" validate:"required"`
	ToEntityID   string     `json:"toEntityId" validate:"required"`
	AsOf         *time.Time `json:"asOf"`
}

func (s *Server) handleAuthorityPath(w http.ResponseWriter, r *http.Request) {
	var req authorityPathRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.validate.Struct(req); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	chain, err := s.store.AuthorityPath(r.Context(), req.FromEntityID, req.ToEntityID, req.AsOf)
	if err != nil {
		s.respondAppErr(w, err, "authority path")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"path": chain})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := map[string]any{"status": "ok"}
	if err := s.store.Ping(r.Context()); err != nil {
		health["status"] = "degraded"
		health["store"] = err.Error()
	}
	pending, err := s.store.ListQueueItems(r.Context(), "", models.QueueItemPending, 1000)
	if err == nil {
		health["correction_queue_depth"] = len(pending)
	}
	openGaps, err := s.store.ListGaps(r.Context(), models.GapStatusOpen, 0, 1000)
	if err == nil {
		health["open_gaps"] = len(openGaps)
	}
	pendingDupes, err := s.store.ListDuplicateCandidates(r.Context(), models.DuplicateStatusPending, 0, 1000)
	if err == nil {
		health["pending_duplicates"] = len(pendingDupes)
	}
	s.respondJSON(w, http.StatusOK, health)
}

func pageParams(r *http.Request) (offset, limit int) {
	limit = 50
	offset = 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}
	return offset, limit
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}

// respondAppErr maps an apperr.Kind to its HTTP status per §7's error
// taxonomy and logs the underlying cause.
func (s *Server) respondAppErr(w http.ResponseWriter, err error, action string) {
	if s.logger != nil {
		s.logger.Error(action+" failed", zap.Error(err))
	}
	s.respondError(w, statusForKind(apperr.KindOf(err)), strings.TrimSpace(err.Error()))
}

func statusForKind(kind apperr.Kind) int {
	switch kind {
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindValidation, apperr.KindSchemaViolation:
		return http.StatusBadRequest
	case apperr.KindEntityMergeConflict, apperr.KindGrantSupersession:
		return http.StatusConflict
	case apperr.KindStepTimeout, apperr.KindDeadlineExceeded:
		return http.StatusGatewayTimeout
	case apperr.KindOCRFailed, apperr.KindExtractionFailed, apperr.KindEmbeddingFailed,
		apperr.KindVectorUpsertFailed, apperr.KindCorrectionApply, apperr.KindIngestion, apperr.KindPersistence:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
