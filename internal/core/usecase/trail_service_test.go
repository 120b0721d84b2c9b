package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/auditworks/auditapi/internal/core/domain"
)

type fakeEvents struct {
	events []domain.LifecycleEvent
}

func (r *fakeEvents) List(_ context.Context, auditID string, afterID int64, limit int) ([]domain.LifecycleEvent, error) {
	var result []domain.LifecycleEvent
	for _, e := range r.events {
		if e.AuditID != auditID || e.ID <= afterID {
			continue
		}
		result = append(result, e)
		if len(result) == limit {
			break
		}
	}
	return result, nil
}

func TestTrailListPagination(t *testing.T) {
	store := newFakeStore()
	events := &fakeEvents{}
	svc := NewTrailService(events, newTestAuditService(store))
	seedCompleted(store, "a1", "tpl-1", 50, time.Now().UTC())

	for i := int64(1); i <= 5; i++ {
		events.events = append(events.events, domain.LifecycleEvent{ID: i, AuditID: "a1", Action: domain.EventResponseSaved})
	}
	events.events = append(events.events, domain.LifecycleEvent{ID: 6, AuditID: "other", Action: domain.EventAuditCreated})

	page, err := svc.List(context.Background(), "a1", 2, 2, testOwner)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(page) != 2 || page[0].ID != 3 || page[1].ID != 4 {
		t.Fatalf("unexpected page: %+v", page)
	}

	// Zero limit falls back to the default page size.
	all, err := svc.List(context.Background(), "a1", 0, 0, testOwner)
	if err != nil {
		t.Fatalf("list default: %v", err)
	}
	if len(all) != 5 {
		t.Fatalf("expected 5 events for a1, got %d", len(all))
	}
}

func TestTrailListEnforcesVisibility(t *testing.T) {
	store := newFakeStore()
	svc := NewTrailService(&fakeEvents{}, newTestAuditService(store))
	seedCompleted(store, "a1", "tpl-1", 50, time.Now().UTC())

	outsider := domain.Actor{ID: "emp-9", Role: domain.RoleEmployee}
	if _, err := svc.List(context.Background(), "a1", 0, 0, outsider); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("outsider trail: got %v, want forbidden", err)
	}
	if _, err := svc.List(context.Background(), "missing", 0, 0, testOwner); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("missing audit trail: got %v, want not found", err)
	}
}

type fakeAPIKeys struct {
	actors map[string]domain.Actor
}

func (r *fakeAPIKeys) FindActorByTokenHash(_ context.Context, hash string) (domain.Actor, error) {
	actor, ok := r.actors[hash]
	if !ok {
		return domain.Actor{}, domain.ErrNotFound
	}
	return actor, nil
}

func (r *fakeAPIKeys) Upsert(_ context.Context, key domain.APIKey) error { return nil }

func TestAuthenticateResolvesHashedToken(t *testing.T) {
	repo := &fakeAPIKeys{actors: map[string]domain.Actor{
		HashToken("secret-token"): testOwner,
	}}
	svc := NewAuthService(repo)

	actor, err := svc.Authenticate(context.Background(), "secret-token")
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if actor.ID != testOwner.ID {
		t.Fatalf("actor = %+v, want owner", actor)
	}

	if _, err := svc.Authenticate(context.Background(), "wrong"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("bad token: got %v, want unauthorized", err)
	}
	if _, err := svc.Authenticate(context.Background(), "   "); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("blank token: got %v, want unauthorized", err)
	}
}
