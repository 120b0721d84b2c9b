package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/auditworks/auditapi/internal/core/domain"
	"github.com/auditworks/auditapi/internal/core/usecase"
)

type ctxKey string

const (
	timeFormat             = "2006-01-02T15:04:05.999999999Z07:00"
	actorCtxKey     ctxKey = "actor"
	maxJSONBodySize        = 1 << 20
)

type Handler struct {
	audits      *usecase.AuditService
	templates   *usecase.TemplateService
	recs        *usecase.RecommendationService
	comparisons *usecase.ComparisonService
	trail       *usecase.TrailService
	auth        *usecase.AuthService
	log         *zap.Logger
}

func NewHandler(
	audits *usecase.AuditService,
	templates *usecase.TemplateService,
	recs *usecase.RecommendationService,
	comparisons *usecase.ComparisonService,
	trail *usecase.TrailService,
	auth *usecase.AuthService,
	log *zap.Logger,
) *Handler {
	return &Handler{
		audits:      audits,
		templates:   templates,
		recs:        recs,
		comparisons: comparisons,
		trail:       trail,
		auth:        auth,
		log:         log,
	}
}

func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", h.healthz)

	r.Group(func(pr chi.Router) {
		pr.Use(h.requireAPIKey)

		pr.Post("/v1/templates:import", h.importTemplate)
		pr.Get("/v1/templates", h.listTemplates)
		pr.Get("/v1/templates/{id}", h.getTemplate)

		pr.Post("/v1/audits", h.createAudit)
		pr.Get("/v1/audits", h.listAudits)
		pr.Get("/v1/audits/{id}", h.getAudit)
		pr.Post("/v1/audits/{id}:start", h.startAudit)
		pr.Post("/v1/audits/{id}:respond", h.respond)
		pr.Post("/v1/audits/{id}:complete", h.completeAudit)
		pr.Post("/v1/audits/{id}:cancel", h.cancelAudit)
		pr.Post("/v1/audits/{id}:generate-recommendations", h.generateRecommendations)
		pr.Get("/v1/audits/{id}/questions", h.auditQuestions)
		pr.Get("/v1/audits/{id}/summary", h.auditSummary)
		pr.Get("/v1/audits/{id}/events", h.auditEvents)
		pr.Get("/v1/audits/{id}/recommendations", h.listRecommendations)
		pr.Post("/v1/audits/{id}/recommendations", h.createRecommendation)
		pr.Get("/v1/audits/{id}/recommendations/summary", h.recommendationSummary)
		pr.Delete("/v1/recommendations/{id}", h.deleteRecommendation)

		pr.Post("/v1/comparisons:compare", h.compare)
		pr.Post("/v1/comparisons:trends", h.trends)
		pr.Post("/v1/comparisons", h.saveComparison)
		pr.Get("/v1/comparisons", h.listComparisons)
		pr.Get("/v1/comparisons/{id}", h.getComparison)
		pr.Delete("/v1/comparisons/{id}", h.deleteComparison)
		pr.Get("/v1/comparisons/{id}/analyze", h.analyzeComparison)
		pr.Get("/v1/comparisons/{id}/trends", h.comparisonTrends)
	})

	return r
}

type createAuditRequest struct {
	Title         string `json:"title"`
	TemplateID    string `json:"template_id"`
	CompanyID     string `json:"company_id"`
	AssignedTo    string `json:"assigned_to"`
	ScheduledDate string `json:"scheduled_date"`
	Notes         string `json:"notes"`
}

type respondRequest struct {
	QuestionID  string `json:"question_id"`
	Score       *int   `json:"score"`
	Response    string `json:"response"`
	Notes       string `json:"notes"`
	EvidenceRef string `json:"evidence_ref"`
}

type auditSetRequest struct {
	AuditIDs []string `json:"audit_ids"`
}

type saveComparisonRequest struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	AuditIDs    []string `json:"audit_ids"`
}

type createRecommendationRequest struct {
	Category string `json:"category"`
	Text     string `json:"text"`
	Priority string `json:"priority"`
}

type auditResponse struct {
	ID               string          `json:"id"`
	Title            string          `json:"title"`
	TemplateID       string          `json:"template_id"`
	CompanyID        string          `json:"company_id"`
	CompanyName      string          `json:"company_name"`
	AssignedTo       string          `json:"assigned_to"`
	CreatedBy        string          `json:"created_by"`
	Status           string          `json:"status"`
	ScheduledDate    *string         `json:"scheduled_date"`
	StartedAt        *string         `json:"started_at"`
	CompletedAt      *string         `json:"completed_at"`
	TotalScore       json.RawMessage `json:"total_score"`
	MaxPossibleScore json.RawMessage `json:"max_possible_score"`
	ScorePercentage  json.RawMessage `json:"score_percentage"`
	Notes            string          `json:"notes"`
	CreatedAt        string          `json:"created_at"`
	UpdatedAt        string          `json:"updated_at"`
}

type questionResponse struct {
	ID         string          `json:"id"`
	Category   string          `json:"category"`
	Text       string          `json:"text"`
	OrderNum   int             `json:"order_num"`
	MaxScore   int             `json:"max_score"`
	IsRequired bool            `json:"is_required"`
	HelpText   string          `json:"help_text,omitempty"`
	Response   *answerResponse `json:"response"`
}

type answerResponse struct {
	ID          string `json:"id"`
	QuestionID  string `json:"question_id"`
	Type        string `json:"response_type,omitempty"`
	Score       *int   `json:"score"`
	Notes       string `json:"notes,omitempty"`
	EvidenceRef string `json:"evidence_ref,omitempty"`
	RespondedAt string `json:"responded_at"`
}

type templateResponse struct {
	ID          string             `json:"id"`
	Name        string             `json:"name"`
	Standard    string             `json:"standard,omitempty"`
	Description string             `json:"description,omitempty"`
	Version     int                `json:"version"`
	IsActive    bool               `json:"is_active"`
	MaxScore    int                `json:"max_possible_score"`
	Questions   []questionResponse `json:"questions"`
	CreatedAt   string             `json:"created_at"`
}

type recommendationResponse struct {
	ID            string `json:"id"`
	AuditID       string `json:"audit_id"`
	Category      string `json:"category"`
	Text          string `json:"text"`
	Priority      string `json:"priority"`
	AutoGenerated bool   `json:"is_auto_generated"`
	CreatedBy     string `json:"created_by,omitempty"`
	CreatedAt     string `json:"created_at"`
}

type comparisonResponse struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	AuditIDs    []string `json:"audit_ids"`
	CreatedBy   string   `json:"created_by"`
	CreatedAt   string   `json:"created_at"`
}

func (h *Handler) importTemplate(w http.ResponseWriter, r *http.Request) {
	actor := actorFromContext(r.Context())
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodySize)

	decoder := json.NewDecoder(r.Body)
	var payload json.RawMessage
	if err := decoder.Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "validation", "invalid json body")
		return
	}
	if err := ensureEOF(decoder); err != nil {
		writeError(w, http.StatusBadRequest, "validation", "invalid json body")
		return
	}

	template, err := h.templates.Import(r.Context(), payload, actor)
	if err != nil {
		h.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTemplateResponse(template))
}

func (h *Handler) listTemplates(w http.ResponseWriter, r *http.Request) {
	templates, err := h.templates.List(r.Context())
	if err != nil {
		h.handleDomainError(w, err)
		return
	}
	result := make([]templateResponse, 0, len(templates))
	for _, t := range templates {
		result = append(result, toTemplateResponse(t))
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": result})
}

func (h *Handler) getTemplate(w http.ResponseWriter, r *http.Request) {
	template, err := h.templates.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTemplateResponse(template))
}

func (h *Handler) createAudit(w http.ResponseWriter, r *http.Request) {
	actor := actorFromContext(r.Context())

	var req createAuditRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	in := usecase.CreateAuditInput{
		Title:      req.Title,
		TemplateID: req.TemplateID,
		CompanyID:  req.CompanyID,
		AssignedTo: req.AssignedTo,
		Notes:      req.Notes,
	}
	if req.ScheduledDate != "" {
		parsed, err := time.Parse(time.RFC3339, req.ScheduledDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "validation", "scheduled_date must be RFC 3339")
			return
		}
		in.ScheduledDate = &parsed
	}

	audit, err := h.audits.Create(r.Context(), in, actor)
	if err != nil {
		h.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toAuditResponse(audit))
}

func (h *Handler) listAudits(w http.ResponseWriter, r *http.Request) {
	actor := actorFromContext(r.Context())
	status := domain.Status(r.URL.Query().Get("status"))
	companyID := r.URL.Query().Get("company_id")

	audits, err := h.audits.List(r.Context(), status, companyID, actor)
	if err != nil {
		h.handleDomainError(w, err)
		return
	}
	result := make([]auditResponse, 0, len(audits))
	for _, a := range audits {
		result = append(result, toAuditResponse(a))
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": result})
}

func (h *Handler) getAudit(w http.ResponseWriter, r *http.Request) {
	actor := actorFromContext(r.Context())
	audit, err := h.audits.Get(r.Context(), chi.URLParam(r, "id"), actor)
	if err != nil {
		h.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAuditResponse(audit))
}

func (h *Handler) startAudit(w http.ResponseWriter, r *http.Request) {
	actor := actorFromContext(r.Context())
	audit, err := h.audits.Start(r.Context(), chi.URLParam(r, "id"), actor)
	if err != nil {
		h.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAuditResponse(audit))
}

func (h *Handler) respond(w http.ResponseWriter, r *http.Request) {
	actor := actorFromContext(r.Context())

	var req respondRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	saved, progress, err := h.audits.Respond(r.Context(), chi.URLParam(r, "id"), usecase.RespondInput{
		QuestionID:  req.QuestionID,
		Score:       req.Score,
		Response:    domain.ResponseType(req.Response),
		Notes:       req.Notes,
		EvidenceRef: req.EvidenceRef,
	}, actor)
	if err != nil {
		h.handleDomainError(w, err)
		return
	}

	answer := toAnswerResponse(saved)
	writeJSON(w, http.StatusOK, map[string]any{"response": &answer, "progress": progress})
}

func (h *Handler) completeAudit(w http.ResponseWriter, r *http.Request) {
	actor := actorFromContext(r.Context())
	audit, err := h.audits.Complete(r.Context(), chi.URLParam(r, "id"), actor)
	if err != nil {
		h.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAuditResponse(audit))
}

func (h *Handler) cancelAudit(w http.ResponseWriter, r *http.Request) {
	actor := actorFromContext(r.Context())
	audit, err := h.audits.Cancel(r.Context(), chi.URLParam(r, "id"), actor)
	if err != nil {
		h.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAuditResponse(audit))
}

func (h *Handler) auditQuestions(w http.ResponseWriter, r *http.Request) {
	actor := actorFromContext(r.Context())
	views, progress, err := h.audits.Questions(r.Context(), chi.URLParam(r, "id"), actor)
	if err != nil {
		h.handleDomainError(w, err)
		return
	}

	questions := make([]questionResponse, 0, len(views))
	for _, v := range views {
		questions = append(questions, toQuestionResponse(v.Question, v.Response))
	}
	writeJSON(w, http.StatusOK, map[string]any{"questions": questions, "progress": progress})
}

func (h *Handler) auditSummary(w http.ResponseWriter, r *http.Request) {
	actor := actorFromContext(r.Context())
	summary, err := h.audits.Summary(r.Context(), chi.URLParam(r, "id"), actor)
	if err != nil {
		h.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"audit":      toAuditResponse(summary.Audit),
		"progress":   summary.Progress,
		"categories": summary.Categories,
	})
}

func (h *Handler) auditEvents(w http.ResponseWriter, r *http.Request) {
	actor := actorFromContext(r.Context())

	afterID := int64(0)
	if raw := r.URL.Query().Get("after_id"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "validation", "after_id must be integer")
			return
		}
		afterID = parsed
	}
	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}

	events, err := h.trail.List(r.Context(), chi.URLParam(r, "id"), afterID, limit, actor)
	if err != nil {
		h.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": events})
}

func (h *Handler) generateRecommendations(w http.ResponseWriter, r *http.Request) {
	actor := actorFromContext(r.Context())
	recs, err := h.recs.Generate(r.Context(), chi.URLParam(r, "id"), actor)
	if err != nil {
		h.handleDomainError(w, err)
		return
	}
	result := make([]recommendationResponse, 0, len(recs))
	for _, rec := range recs {
		result = append(result, toRecommendationResponse(rec))
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": result})
}

func (h *Handler) listRecommendations(w http.ResponseWriter, r *http.Request) {
	actor := actorFromContext(r.Context())

	var auto *bool
	if raw := r.URL.Query().Get("auto"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "validation", "auto must be boolean")
			return
		}
		auto = &parsed
	}

	recs, err := h.recs.List(r.Context(), chi.URLParam(r, "id"),
		domain.Priority(r.URL.Query().Get("priority")), auto, actor)
	if err != nil {
		h.handleDomainError(w, err)
		return
	}
	result := make([]recommendationResponse, 0, len(recs))
	for _, rec := range recs {
		result = append(result, toRecommendationResponse(rec))
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": result})
}

func (h *Handler) createRecommendation(w http.ResponseWriter, r *http.Request) {
	actor := actorFromContext(r.Context())

	var req createRecommendationRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	rec, err := h.recs.Create(r.Context(), chi.URLParam(r, "id"), usecase.CreateRecommendationInput{
		Category: req.Category,
		Text:     req.Text,
		Priority: domain.Priority(req.Priority),
	}, actor)
	if err != nil {
		h.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toRecommendationResponse(rec))
}

func (h *Handler) recommendationSummary(w http.ResponseWriter, r *http.Request) {
	actor := actorFromContext(r.Context())
	summary, err := h.recs.Summary(r.Context(), chi.URLParam(r, "id"), actor)
	if err != nil {
		h.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (h *Handler) deleteRecommendation(w http.ResponseWriter, r *http.Request) {
	actor := actorFromContext(r.Context())
	deleted, err := h.recs.Delete(r.Context(), chi.URLParam(r, "id"), actor)
	if err != nil {
		h.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"deleted": deleted})
}

func (h *Handler) compare(w http.ResponseWriter, r *http.Request) {
	actor := actorFromContext(r.Context())

	var req auditSetRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := h.comparisons.Compare(r.Context(), req.AuditIDs, actor)
	if err != nil {
		h.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) trends(w http.ResponseWriter, r *http.Request) {
	actor := actorFromContext(r.Context())

	var req auditSetRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := h.comparisons.Trends(r.Context(), req.AuditIDs, actor)
	if err != nil {
		h.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) saveComparison(w http.ResponseWriter, r *http.Request) {
	actor := actorFromContext(r.Context())

	var req saveComparisonRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	cmp, err := h.comparisons.Save(r.Context(), usecase.CreateComparisonInput{
		Name:        req.Name,
		Description: req.Description,
		AuditIDs:    req.AuditIDs,
	}, actor)
	if err != nil {
		h.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toComparisonResponse(cmp))
}

func (h *Handler) listComparisons(w http.ResponseWriter, r *http.Request) {
	actor := actorFromContext(r.Context())
	comparisons, err := h.comparisons.List(r.Context(), actor)
	if err != nil {
		h.handleDomainError(w, err)
		return
	}
	result := make([]comparisonResponse, 0, len(comparisons))
	for _, cmp := range comparisons {
		result = append(result, toComparisonResponse(cmp))
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": result})
}

func (h *Handler) getComparison(w http.ResponseWriter, r *http.Request) {
	actor := actorFromContext(r.Context())
	cmp, err := h.comparisons.Get(r.Context(), chi.URLParam(r, "id"), actor)
	if err != nil {
		h.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toComparisonResponse(cmp))
}

func (h *Handler) deleteComparison(w http.ResponseWriter, r *http.Request) {
	actor := actorFromContext(r.Context())
	deleted, err := h.comparisons.Delete(r.Context(), chi.URLParam(r, "id"), actor)
	if err != nil {
		h.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"deleted": deleted})
}

func (h *Handler) analyzeComparison(w http.ResponseWriter, r *http.Request) {
	actor := actorFromContext(r.Context())
	result, err := h.comparisons.Analyze(r.Context(), chi.URLParam(r, "id"), actor)
	if err != nil {
		h.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) comparisonTrends(w http.ResponseWriter, r *http.Request) {
	actor := actorFromContext(r.Context())
	result, err := h.comparisons.SavedTrends(r.Context(), chi.URLParam(r, "id"), actor)
	if err != nil {
		h.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (h *Handler) requireAPIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimSpace(r.Header.Get("X-API-Key"))
		if token == "" {
			auth := strings.TrimSpace(r.Header.Get("Authorization"))
			if strings.HasPrefix(strings.ToLower(auth), "bearer ") {
				token = strings.TrimSpace(auth[7:])
			}
		}

		actor, err := h.auth.Authenticate(r.Context(), token)
		if err != nil {
			if errors.Is(err, usecase.ErrUnauthorized) {
				writeError(w, http.StatusUnauthorized, "unauthorized", "unauthorized")
				return
			}
			h.log.Error("authenticate api key", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "internal", "internal server error")
			return
		}

		ctx := context.WithValue(r.Context(), actorCtxKey, actor)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func toAuditResponse(a domain.Audit) auditResponse {
	return auditResponse{
		ID:               a.ID,
		Title:            a.Title,
		TemplateID:       a.TemplateID,
		CompanyID:        a.Company.ID,
		CompanyName:      a.Company.Name,
		AssignedTo:       a.AssignedTo,
		CreatedBy:        a.CreatedBy,
		Status:           string(a.Status),
		ScheduledDate:    formatTimePtr(a.ScheduledDate),
		StartedAt:        formatTimePtr(a.StartedAt),
		CompletedAt:      formatTimePtr(a.CompletedAt),
		TotalScore:       mustMarshal(a.TotalScore),
		MaxPossibleScore: mustMarshal(a.MaxPossibleScore),
		ScorePercentage:  mustMarshal(a.ScorePercentage),
		Notes:            a.Notes,
		CreatedAt:        a.CreatedAt.UTC().Format(timeFormat),
		UpdatedAt:        a.UpdatedAt.UTC().Format(timeFormat),
	}
}

func toQuestionResponse(q domain.Question, resp *domain.Response) questionResponse {
	view := questionResponse{
		ID:         q.ID,
		Category:   q.Category,
		Text:       q.Text,
		OrderNum:   q.OrderNum,
		MaxScore:   q.MaxScore,
		IsRequired: q.IsRequired,
		HelpText:   q.HelpText,
	}
	if resp != nil {
		answer := toAnswerResponse(*resp)
		view.Response = &answer
	}
	return view
}

func toAnswerResponse(r domain.Response) answerResponse {
	return answerResponse{
		ID:          r.ID,
		QuestionID:  r.QuestionID,
		Type:        string(r.Type),
		Score:       r.Score,
		Notes:       r.Notes,
		EvidenceRef: r.EvidenceRef,
		RespondedAt: r.RespondedAt.UTC().Format(timeFormat),
	}
}

func toTemplateResponse(t domain.Template) templateResponse {
	questions := make([]questionResponse, 0, len(t.Questions))
	for _, q := range t.Questions {
		questions = append(questions, toQuestionResponse(q, nil))
	}
	return templateResponse{
		ID:          t.ID,
		Name:        t.Name,
		Standard:    t.Standard,
		Description: t.Description,
		Version:     t.Version,
		IsActive:    t.IsActive,
		MaxScore:    t.MaxPossibleScore(),
		Questions:   questions,
		CreatedAt:   t.CreatedAt.UTC().Format(timeFormat),
	}
}

func toRecommendationResponse(rec domain.Recommendation) recommendationResponse {
	return recommendationResponse{
		ID:            rec.ID,
		AuditID:       rec.AuditID,
		Category:      rec.Category,
		Text:          rec.Text,
		Priority:      string(rec.Priority),
		AutoGenerated: rec.AutoGenerated,
		CreatedBy:     rec.CreatedBy,
		CreatedAt:     rec.CreatedAt.UTC().Format(timeFormat),
	}
}

func toComparisonResponse(cmp domain.Comparison) comparisonResponse {
	return comparisonResponse{
		ID:          cmp.ID,
		Name:        cmp.Name,
		Description: cmp.Description,
		AuditIDs:    cmp.AuditIDs,
		CreatedBy:   cmp.CreatedBy,
		CreatedAt:   cmp.CreatedAt.UTC().Format(timeFormat),
	}
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	formatted := t.UTC().Format(timeFormat)
	return &formatted
}

func mustMarshal(v any) json.RawMessage {
	data, _ := json.Marshal(v)
	return data
}

func decodeJSON(w http.ResponseWriter, r *http.Request, into any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodySize)
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(into); err != nil {
		writeError(w, http.StatusBadRequest, "validation", "invalid json body")
		return false
	}
	if err := ensureEOF(decoder); err != nil {
		writeError(w, http.StatusBadRequest, "validation", "invalid json body")
		return false
	}
	return true
}

func parseLimit(w http.ResponseWriter, r *http.Request) (int, bool) {
	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "validation", "limit must be integer")
			return 0, false
		}
		limit = parsed
	}
	return limit, true
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	data, err := json.Marshal(body)
	if err != nil {
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(append(data, '\n'))
}

func writeError(w http.ResponseWriter, status int, kind, message string) {
	writeJSON(w, status, map[string]any{"error": map[string]any{"kind": kind, "message": message}})
}

func (h *Handler) handleDomainError(w http.ResponseWriter, err error) {
	var incomplete *domain.IncompleteRequiredError
	var validation *domain.ValidationError
	switch {
	case errors.As(err, &incomplete):
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": map[string]any{
			"kind":    "incomplete_required",
			"message": incomplete.Error(),
			"missing": incomplete.Missing,
		}})
	case errors.As(err, &validation):
		writeError(w, http.StatusBadRequest, "validation", validation.Msg)
	case errors.Is(err, domain.ErrInvalidTransition):
		writeError(w, http.StatusBadRequest, "invalid_transition", err.Error())
	case errors.Is(err, domain.ErrInvalidState):
		writeError(w, http.StatusBadRequest, "invalid_state", err.Error())
	case errors.Is(err, domain.ErrScoreOutOfRange):
		writeError(w, http.StatusBadRequest, "score_out_of_range", err.Error())
	case errors.Is(err, domain.ErrQuestionMismatch):
		writeError(w, http.StatusBadRequest, "question_mismatch", err.Error())
	case errors.Is(err, domain.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden", "forbidden")
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", "not found")
	default:
		h.log.Error("request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal", "internal server error")
	}
}

func ensureEOF(decoder *json.Decoder) error {
	var extra json.RawMessage
	if err := decoder.Decode(&extra); err != nil {
		if err == io.EOF {
			return nil
		}
		return err
	}
	return errors.New("extra json tokens")
}

func actorFromContext(ctx context.Context) domain.Actor {
	actor, _ := ctx.Value(actorCtxKey).(domain.Actor)
	return actor
}
