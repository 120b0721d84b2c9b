package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/auditworks/auditapi/internal/adapters/sqlite/gormsqlite"
	"github.com/auditworks/auditapi/internal/core/domain"
	"github.com/auditworks/auditapi/internal/core/ports"
	"github.com/auditworks/auditapi/migrations"
)

func newTestDB(t *testing.T) *gormsqlite.DB {
	t.Helper()

	db, err := gormsqlite.Open(filepath.Join(t.TempDir(), "audit.sqlite"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	sqlDB, err := db.WriteSQLDB()
	if err != nil {
		t.Fatalf("writer sql db: %v", err)
	}
	if err := migrations.Up(context.Background(), sqlDB); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

type fixtures struct {
	owner    domain.Actor
	employee domain.Actor
	company  domain.CompanyRef
	template domain.Template
}

func seedFixtures(t *testing.T, db *gormsqlite.DB) fixtures {
	t.Helper()
	ctx := context.Background()

	f := fixtures{
		owner:    domain.Actor{ID: "owner-1", Name: "Owner", Role: domain.RoleOwner},
		employee: domain.Actor{ID: "emp-1", Name: "Employee", Role: domain.RoleEmployee},
		company:  domain.CompanyRef{ID: "co-1", Name: "Acme", OwnerID: "owner-1"},
	}

	actors := NewActorRepository(db)
	if err := actors.Upsert(ctx, f.owner); err != nil {
		t.Fatalf("seed owner: %v", err)
	}
	if err := actors.Upsert(ctx, f.employee); err != nil {
		t.Fatalf("seed employee: %v", err)
	}
	if err := NewCompanyRepository(db).Upsert(ctx, f.company); err != nil {
		t.Fatalf("seed company: %v", err)
	}

	template := domain.Template{
		ID:       uuid.NewString(),
		Name:     "ISO 27001 Basics",
		Standard: "ISO 27001",
		Version:  1,
		IsActive: true,
	}
	template.Questions = []domain.Question{
		{ID: uuid.NewString(), TemplateID: template.ID, Category: "Security", Text: "Access reviews run quarterly?", OrderNum: 1, MaxScore: 5, IsRequired: true},
		{ID: uuid.NewString(), TemplateID: template.ID, Category: "Process", Text: "Incident runbook documented?", OrderNum: 2, MaxScore: 10, IsRequired: false},
	}
	created, err := NewTemplateRepository(db).Create(ctx, template)
	if err != nil {
		t.Fatalf("seed template: %v", err)
	}
	f.template = created
	return f
}

func newAudit(f fixtures) domain.Audit {
	return domain.Audit{
		ID:               uuid.NewString(),
		Title:            "Q3 security review",
		TemplateID:       f.template.ID,
		Company:          f.company,
		AssignedTo:       f.employee.ID,
		CreatedBy:        f.owner.ID,
		Status:           domain.StatusDraft,
		TotalScore:       decimal.Zero,
		MaxPossibleScore: decimal.NewFromInt(15),
		ScorePercentage:  decimal.Zero,
	}
}

func TestAuditStoreCreateAndGet(t *testing.T) {
	db := newTestDB(t)
	f := seedFixtures(t, db)
	store := NewAuditStore(db)
	ctx := context.Background()

	created, err := store.Create(ctx, newAudit(f))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := store.Get(ctx, created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Title != created.Title || got.Status != domain.StatusDraft {
		t.Fatalf("unexpected audit: %+v", got)
	}
	if got.Company.OwnerID != f.owner.ID {
		t.Fatalf("company not joined: %+v", got.Company)
	}
	if !got.MaxPossibleScore.Equal(decimal.NewFromInt(15)) {
		t.Fatalf("max score = %s, want 15", got.MaxPossibleScore)
	}

	if _, err := store.Get(ctx, "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("missing audit: got %v, want not found", err)
	}

	// Creation writes the audit.created trail row and queues its outbox event
	// in the same transaction.
	events, err := NewLifecycleEventRepository(db).List(ctx, created.ID, 0, 10)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(events) != 1 || events[0].Action != domain.EventAuditCreated {
		t.Fatalf("unexpected trail: %+v", events)
	}
	pending, err := NewOutboxRepository(db).FetchPending(ctx, 10)
	if err != nil {
		t.Fatalf("fetch outbox: %v", err)
	}
	if len(pending) != 1 || pending[0].Topic != "audits."+domain.EventAuditCreated {
		t.Fatalf("unexpected outbox: %+v", pending)
	}
}

func TestAuditStoreMutateUpsertsAndRescores(t *testing.T) {
	db := newTestDB(t)
	f := seedFixtures(t, db)
	store := NewAuditStore(db)
	ctx := context.Background()

	created, err := store.Create(ctx, newAudit(f))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	questionID := f.template.Questions[0].ID

	firstScore := 2
	var firstID string
	err = store.Mutate(ctx, created.ID, func(tx ports.AuditMutation) error {
		resp, err := tx.UpsertResponse(domain.Response{
			ID: uuid.NewString(), AuditID: created.ID, QuestionID: questionID,
			Score: &firstScore, RespondedAt: time.Now().UTC(),
		})
		if err != nil {
			return err
		}
		firstID = resp.ID
		return nil
	})
	if err != nil {
		t.Fatalf("first mutate: %v", err)
	}

	// Replacing the answer keeps the original row id and updates the score.
	secondScore := 5
	err = store.Mutate(ctx, created.ID, func(tx ports.AuditMutation) error {
		resp, err := tx.UpsertResponse(domain.Response{
			ID: uuid.NewString(), AuditID: created.ID, QuestionID: questionID,
			Score: &secondScore, RespondedAt: time.Now().UTC(),
		})
		if err != nil {
			return err
		}
		if resp.ID != firstID {
			t.Errorf("upsert changed row id: %s -> %s", firstID, resp.ID)
		}

		audit := tx.Audit()
		audit.Status = domain.StatusInProgress
		audit.TotalScore = decimal.NewFromInt(5)
		audit.ScorePercentage = decimal.NewFromInt(5).Mul(decimal.NewFromInt(100)).DivRound(decimal.NewFromInt(15), 2)
		if err := tx.SaveAudit(audit); err != nil {
			return err
		}
		return tx.AppendEvent(domain.LifecycleEvent{
			AuditID: created.ID, Action: domain.EventResponseSaved, Actor: f.employee.ID,
			BeforeStatus: domain.StatusInProgress, AfterStatus: domain.StatusInProgress,
		})
	})
	if err != nil {
		t.Fatalf("second mutate: %v", err)
	}

	responses, err := store.ListResponses(ctx, created.ID)
	if err != nil {
		t.Fatalf("list responses: %v", err)
	}
	if len(responses) != 1 || *responses[0].Score != 5 {
		t.Fatalf("unexpected responses: %+v", responses)
	}

	got, err := store.Get(ctx, created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != domain.StatusInProgress {
		t.Fatalf("status = %s, want in_progress", got.Status)
	}
	if got.ScorePercentage.String() != "33.33" {
		t.Fatalf("percentage = %s, want 33.33", got.ScorePercentage)
	}

	events, err := NewLifecycleEventRepository(db).List(ctx, created.ID, 0, 10)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(events) != 2 || events[1].Action != domain.EventResponseSaved {
		t.Fatalf("unexpected trail: %+v", events)
	}
}

func TestAuditStoreListScope(t *testing.T) {
	db := newTestDB(t)
	f := seedFixtures(t, db)
	store := NewAuditStore(db)
	ctx := context.Background()

	mine, err := store.Create(ctx, newAudit(f))
	if err != nil {
		t.Fatalf("create mine: %v", err)
	}

	otherCompany := domain.CompanyRef{ID: "co-2", Name: "Rival", OwnerID: "owner-2"}
	if err := NewCompanyRepository(db).Upsert(ctx, otherCompany); err != nil {
		t.Fatalf("seed other company: %v", err)
	}
	foreign := newAudit(f)
	foreign.ID = uuid.NewString()
	foreign.Company = otherCompany
	foreign.CreatedBy = "owner-2"
	foreign.AssignedTo = "emp-2"
	if _, err := store.Create(ctx, foreign); err != nil {
		t.Fatalf("create foreign: %v", err)
	}

	ownerView, err := store.List(ctx, ports.AuditListFilter{Actor: f.owner})
	if err != nil {
		t.Fatalf("owner list: %v", err)
	}
	if len(ownerView) != 1 || ownerView[0].ID != mine.ID {
		t.Fatalf("owner scope leaked: %+v", ownerView)
	}

	employeeView, err := store.List(ctx, ports.AuditListFilter{Actor: f.employee})
	if err != nil {
		t.Fatalf("employee list: %v", err)
	}
	if len(employeeView) != 1 || employeeView[0].ID != mine.ID {
		t.Fatalf("employee scope leaked: %+v", employeeView)
	}

	drafts, err := store.List(ctx, ports.AuditListFilter{Actor: f.owner, Status: domain.StatusCompleted})
	if err != nil {
		t.Fatalf("status list: %v", err)
	}
	if len(drafts) != 0 {
		t.Fatalf("status filter leaked: %+v", drafts)
	}
}

func TestRecommendationRepositoryReplaceAuto(t *testing.T) {
	db := newTestDB(t)
	f := seedFixtures(t, db)
	store := NewAuditStore(db)
	repo := NewRecommendationRepository(db)
	ctx := context.Background()

	audit, err := store.Create(ctx, newAudit(f))
	if err != nil {
		t.Fatalf("create audit: %v", err)
	}

	manual, err := repo.Create(ctx, domain.Recommendation{
		ID: uuid.NewString(), AuditID: audit.ID, Category: "Security",
		Text: "Rotate shared credentials.", Priority: domain.PriorityHigh, CreatedBy: f.owner.ID,
	})
	if err != nil {
		t.Fatalf("create manual: %v", err)
	}

	firstGen := []domain.Recommendation{
		{ID: uuid.NewString(), AuditID: audit.ID, Category: "Security", Text: "old advice", Priority: domain.PriorityHigh},
	}
	if _, err := repo.ReplaceAuto(ctx, audit.ID, firstGen); err != nil {
		t.Fatalf("first replace: %v", err)
	}
	secondGen := []domain.Recommendation{
		{ID: uuid.NewString(), AuditID: audit.ID, Category: "Security", Text: "new advice", Priority: domain.PriorityMedium},
		{ID: uuid.NewString(), AuditID: audit.ID, Category: "General", Text: "overall advice", Priority: domain.PriorityLow},
	}
	if _, err := repo.ReplaceAuto(ctx, audit.ID, secondGen); err != nil {
		t.Fatalf("second replace: %v", err)
	}

	all, err := repo.List(ctx, ports.RecommendationFilter{AuditID: audit.ID})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected manual + 2 regenerated, got %d", len(all))
	}
	for _, rec := range all {
		if rec.AutoGenerated && rec.Text == "old advice" {
			t.Fatalf("stale auto recommendation survived: %+v", rec)
		}
	}

	auto := true
	autoOnly, err := repo.List(ctx, ports.RecommendationFilter{AuditID: audit.ID, Auto: &auto})
	if err != nil {
		t.Fatalf("list auto: %v", err)
	}
	if len(autoOnly) != 2 {
		t.Fatalf("auto filter wrong: %+v", autoOnly)
	}

	got, err := repo.Get(ctx, manual.ID)
	if err != nil {
		t.Fatalf("get manual: %v", err)
	}
	if got.AuditID != audit.ID || got.AutoGenerated {
		t.Fatalf("get returned wrong row: %+v", got)
	}
	if _, err := repo.Get(ctx, "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("get missing: got %v, want not found", err)
	}

	deleted, err := repo.Delete(ctx, manual.ID)
	if err != nil || !deleted {
		t.Fatalf("delete manual = %v/%v", deleted, err)
	}
	deleted, err = repo.Delete(ctx, "missing")
	if err != nil || deleted {
		t.Fatalf("delete missing = %v/%v, want false", deleted, err)
	}
}

func TestComparisonRepositoryRoundTrip(t *testing.T) {
	db := newTestDB(t)
	repo := NewComparisonRepository(db)
	ctx := context.Background()

	cmp := domain.Comparison{
		ID:        uuid.NewString(),
		Name:      "H1 vs H2",
		AuditIDs:  []string{"a2", "a1", "a3"},
		CreatedBy: "owner-1",
	}
	if _, err := repo.Create(ctx, cmp); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := repo.Get(ctx, cmp.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	// Member order is the order the audits were saved in.
	if len(got.AuditIDs) != 3 || got.AuditIDs[0] != "a2" || got.AuditIDs[2] != "a3" {
		t.Fatalf("audit ids = %v", got.AuditIDs)
	}

	listed, err := repo.List(ctx, "owner-1")
	if err != nil || len(listed) != 1 {
		t.Fatalf("list = %v/%v", listed, err)
	}
	if listed, err := repo.List(ctx, "owner-2"); err != nil || len(listed) != 0 {
		t.Fatalf("foreign list = %v/%v", listed, err)
	}

	if deleted, err := repo.Delete(ctx, cmp.ID, "owner-2"); err != nil || deleted {
		t.Fatalf("foreign delete = %v/%v, want false", deleted, err)
	}
	if deleted, err := repo.Delete(ctx, cmp.ID, "owner-1"); err != nil || !deleted {
		t.Fatalf("delete = %v/%v, want true", deleted, err)
	}
	if _, err := repo.Get(ctx, cmp.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("get after delete: got %v, want not found", err)
	}
}

func TestAPIKeyRepositoryLookup(t *testing.T) {
	db := newTestDB(t)
	f := seedFixtures(t, db)
	repo := NewAPIKeyRepository(db)
	ctx := context.Background()

	if err := repo.Upsert(ctx, domain.APIKey{TokenHash: "hash-1", ActorID: f.owner.ID, Name: "ci", Active: true}); err != nil {
		t.Fatalf("upsert active: %v", err)
	}
	if err := repo.Upsert(ctx, domain.APIKey{TokenHash: "hash-2", ActorID: f.employee.ID, Name: "revoked", Active: false}); err != nil {
		t.Fatalf("upsert revoked: %v", err)
	}

	actor, err := repo.FindActorByTokenHash(ctx, "hash-1")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if actor.ID != f.owner.ID || actor.Role != domain.RoleOwner {
		t.Fatalf("actor = %+v", actor)
	}

	if _, err := repo.FindActorByTokenHash(ctx, "hash-2"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("revoked key: got %v, want not found", err)
	}
	if _, err := repo.FindActorByTokenHash(ctx, "unknown"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("unknown key: got %v, want not found", err)
	}

	// Rotating a key to another actor overwrites in place.
	if err := repo.Upsert(ctx, domain.APIKey{TokenHash: "hash-1", ActorID: f.employee.ID, Name: "ci", Active: true}); err != nil {
		t.Fatalf("rotate: %v", err)
	}
	actor, err = repo.FindActorByTokenHash(ctx, "hash-1")
	if err != nil {
		t.Fatalf("lookup after rotate: %v", err)
	}
	if actor.ID != f.employee.ID {
		t.Fatalf("actor after rotate = %+v", actor)
	}
}

func TestTemplateRepositoryRoundTrip(t *testing.T) {
	db := newTestDB(t)
	f := seedFixtures(t, db)
	repo := NewTemplateRepository(db)
	ctx := context.Background()

	got, err := repo.Get(ctx, f.template.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got.Questions) != 2 || got.Questions[0].OrderNum != 1 || got.Questions[1].OrderNum != 2 {
		t.Fatalf("questions out of order: %+v", got.Questions)
	}
	if got.MaxPossibleScore() != 15 {
		t.Fatalf("max possible = %d, want 15", got.MaxPossibleScore())
	}

	if _, err := repo.Get(ctx, "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("missing template: got %v, want not found", err)
	}

	all, err := repo.List(ctx)
	if err != nil || len(all) != 1 {
		t.Fatalf("list = %d/%v, want 1 template", len(all), err)
	}
}

func TestMigrationsAreIdempotent(t *testing.T) {
	db := newTestDB(t)
	sqlDB, err := db.WriteSQLDB()
	if err != nil {
		t.Fatalf("writer sql db: %v", err)
	}
	if err := migrations.Up(context.Background(), sqlDB); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
}
