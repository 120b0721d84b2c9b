package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/auditworks/auditapi/internal/core/domain"
	"github.com/auditworks/auditapi/internal/core/ports"
)

// In-memory store fakes shared by the service tests. Mutate mirrors the real
// adapter: the callback sees the stored audit and persists through SaveAudit.

type fakeStore struct {
	audits    map[string]domain.Audit
	responses map[string][]domain.Response
	events    []domain.LifecycleEvent
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		audits:    map[string]domain.Audit{},
		responses: map[string][]domain.Response{},
	}
}

func (s *fakeStore) Create(_ context.Context, audit domain.Audit) (domain.Audit, error) {
	now := time.Now().UTC()
	audit.CreatedAt = now
	audit.UpdatedAt = now
	s.audits[audit.ID] = audit
	s.events = append(s.events, domain.LifecycleEvent{
		EventID:     uuid.NewString(),
		AuditID:     audit.ID,
		Action:      domain.EventAuditCreated,
		Actor:       audit.CreatedBy,
		AfterStatus: audit.Status,
		OccurredAt:  now,
	})
	return audit, nil
}

func (s *fakeStore) Get(_ context.Context, id string) (domain.Audit, error) {
	audit, ok := s.audits[id]
	if !ok {
		return domain.Audit{}, domain.ErrNotFound
	}
	return audit, nil
}

func (s *fakeStore) GetMany(_ context.Context, ids []string) ([]domain.Audit, error) {
	result := make([]domain.Audit, 0, len(ids))
	for _, id := range ids {
		if audit, ok := s.audits[id]; ok {
			result = append(result, audit)
		}
	}
	return result, nil
}

func (s *fakeStore) List(_ context.Context, filter ports.AuditListFilter) ([]domain.Audit, error) {
	var result []domain.Audit
	for _, audit := range s.audits {
		if !audit.VisibleTo(filter.Actor) {
			continue
		}
		if filter.Status != "" && audit.Status != filter.Status {
			continue
		}
		if filter.CompanyID != "" && audit.Company.ID != filter.CompanyID {
			continue
		}
		result = append(result, audit)
	}
	return result, nil
}

func (s *fakeStore) ListResponses(_ context.Context, auditID string) ([]domain.Response, error) {
	return append([]domain.Response(nil), s.responses[auditID]...), nil
}

func (s *fakeStore) Mutate(_ context.Context, auditID string, fn func(tx ports.AuditMutation) error) error {
	audit, ok := s.audits[auditID]
	if !ok {
		return domain.ErrNotFound
	}
	return fn(&fakeMutation{store: s, audit: audit})
}

type fakeMutation struct {
	store *fakeStore
	audit domain.Audit
}

func (m *fakeMutation) Audit() domain.Audit { return m.audit }

func (m *fakeMutation) Responses() ([]domain.Response, error) {
	return append([]domain.Response(nil), m.store.responses[m.audit.ID]...), nil
}

func (m *fakeMutation) UpsertResponse(resp domain.Response) (domain.Response, error) {
	existing := m.store.responses[resp.AuditID]
	for i, r := range existing {
		if r.QuestionID == resp.QuestionID {
			resp.ID = r.ID
			existing[i] = resp
			return resp, nil
		}
	}
	m.store.responses[resp.AuditID] = append(existing, resp)
	return resp, nil
}

func (m *fakeMutation) SaveAudit(audit domain.Audit) error {
	audit.UpdatedAt = time.Now().UTC()
	m.store.audits[audit.ID] = audit
	m.audit = audit
	return nil
}

func (m *fakeMutation) AppendEvent(event domain.LifecycleEvent) error {
	m.store.events = append(m.store.events, event)
	return nil
}

type fakeTemplates struct {
	templates map[string]domain.Template
}

func newFakeTemplates(templates ...domain.Template) *fakeTemplates {
	repo := &fakeTemplates{templates: map[string]domain.Template{}}
	for _, t := range templates {
		repo.templates[t.ID] = t
	}
	return repo
}

func (r *fakeTemplates) Create(_ context.Context, template domain.Template) (domain.Template, error) {
	r.templates[template.ID] = template
	return template, nil
}

func (r *fakeTemplates) Get(_ context.Context, id string) (domain.Template, error) {
	template, ok := r.templates[id]
	if !ok {
		return domain.Template{}, domain.ErrNotFound
	}
	return template, nil
}

func (r *fakeTemplates) List(_ context.Context) ([]domain.Template, error) {
	var result []domain.Template
	for _, t := range r.templates {
		result = append(result, t)
	}
	return result, nil
}

type fakeCompanies struct {
	companies map[string]domain.CompanyRef
}

func newFakeCompanies(companies ...domain.CompanyRef) *fakeCompanies {
	repo := &fakeCompanies{companies: map[string]domain.CompanyRef{}}
	for _, c := range companies {
		repo.companies[c.ID] = c
	}
	return repo
}

func (r *fakeCompanies) Get(_ context.Context, id string) (domain.CompanyRef, error) {
	company, ok := r.companies[id]
	if !ok {
		return domain.CompanyRef{}, domain.ErrNotFound
	}
	return company, nil
}

func (r *fakeCompanies) Upsert(_ context.Context, company domain.CompanyRef) error {
	r.companies[company.ID] = company
	return nil
}

type fakeRecs struct {
	recs []domain.Recommendation
}

func (r *fakeRecs) ReplaceAuto(_ context.Context, auditID string, recs []domain.Recommendation) ([]domain.Recommendation, error) {
	kept := r.recs[:0]
	for _, rec := range r.recs {
		if rec.AuditID == auditID && rec.AutoGenerated {
			continue
		}
		kept = append(kept, rec)
	}
	r.recs = append(kept, recs...)
	return append([]domain.Recommendation(nil), recs...), nil
}

func (r *fakeRecs) Create(_ context.Context, rec domain.Recommendation) (domain.Recommendation, error) {
	r.recs = append(r.recs, rec)
	return rec, nil
}

func (r *fakeRecs) Get(_ context.Context, id string) (domain.Recommendation, error) {
	for _, rec := range r.recs {
		if rec.ID == id {
			return rec, nil
		}
	}
	return domain.Recommendation{}, domain.ErrNotFound
}

func (r *fakeRecs) List(_ context.Context, filter ports.RecommendationFilter) ([]domain.Recommendation, error) {
	var result []domain.Recommendation
	for _, rec := range r.recs {
		if rec.AuditID != filter.AuditID {
			continue
		}
		if filter.Priority != "" && rec.Priority != filter.Priority {
			continue
		}
		if filter.Auto != nil && rec.AutoGenerated != *filter.Auto {
			continue
		}
		result = append(result, rec)
	}
	return result, nil
}

func (r *fakeRecs) Delete(_ context.Context, id string) (bool, error) {
	for i, rec := range r.recs {
		if rec.ID == id {
			r.recs = append(r.recs[:i], r.recs[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

type fakeComparisons struct {
	comparisons map[string]domain.Comparison
}

func newFakeComparisons() *fakeComparisons {
	return &fakeComparisons{comparisons: map[string]domain.Comparison{}}
}

func (r *fakeComparisons) Create(_ context.Context, cmp domain.Comparison) (domain.Comparison, error) {
	cmp.CreatedAt = time.Now().UTC()
	r.comparisons[cmp.ID] = cmp
	return cmp, nil
}

func (r *fakeComparisons) Get(_ context.Context, id string) (domain.Comparison, error) {
	cmp, ok := r.comparisons[id]
	if !ok {
		return domain.Comparison{}, domain.ErrNotFound
	}
	return cmp, nil
}

func (r *fakeComparisons) List(_ context.Context, createdBy string) ([]domain.Comparison, error) {
	var result []domain.Comparison
	for _, cmp := range r.comparisons {
		if cmp.CreatedBy == createdBy {
			result = append(result, cmp)
		}
	}
	return result, nil
}

func (r *fakeComparisons) Delete(_ context.Context, id, createdBy string) (bool, error) {
	cmp, ok := r.comparisons[id]
	if !ok || cmp.CreatedBy != createdBy {
		return false, nil
	}
	delete(r.comparisons, id)
	return true, nil
}

// Shared test fixture: one owner, one employee, one company and a template
// with two categories worth 20 points in total.

var (
	testOwner    = domain.Actor{ID: "owner-1", Name: "Owner", Role: domain.RoleOwner}
	testEmployee = domain.Actor{ID: "emp-1", Name: "Employee", Role: domain.RoleEmployee}
	testCompany  = domain.CompanyRef{ID: "co-1", Name: "Acme", OwnerID: "owner-1"}
)

func testTemplate() domain.Template {
	return domain.Template{
		ID:       "tpl-1",
		Name:     "ISO 27001 Basics",
		Standard: "ISO 27001",
		Version:  1,
		IsActive: true,
		Questions: []domain.Question{
			{ID: "q1", TemplateID: "tpl-1", Category: "Security", Text: "Access reviews run quarterly?", OrderNum: 1, MaxScore: 5, IsRequired: true},
			{ID: "q2", TemplateID: "tpl-1", Category: "Security", Text: "MFA enforced for admin accounts?", OrderNum: 2, MaxScore: 5, IsRequired: true},
			{ID: "q3", TemplateID: "tpl-1", Category: "Process", Text: "Incident runbook documented?", OrderNum: 3, MaxScore: 10, IsRequired: false},
		},
	}
}

func newTestAuditService(store *fakeStore) *AuditService {
	return NewAuditService(store, newFakeTemplates(testTemplate()), newFakeCompanies(testCompany))
}
