package storage

import (
	"testing"
	"time"

	"github.com/lehigh-university-libraries/captioner/internal/workflow"
)

func TestSessionStore(t *testing.T) {
	s := New()

	newController := func(id string) *workflow.Controller {
		return workflow.NewController(workflow.Options{})
	}
	a := s.Create(newController)
	b := s.Create(newController)
	if a.ID == b.ID {
		t.Fatal("Expected unique session IDs")
	}

	got, ok := s.Get(a.ID)
	if !ok || got != a {
		t.Error("Expected to find session a")
	}

	list := s.List()
	if len(list) != 2 || list[0].CreatedAt.After(list[1].CreatedAt) {
		t.Errorf("Expected 2 sessions oldest first, got %d", len(list))
	}

	deleted, ok := s.Delete(a.ID)
	if !ok || deleted != a {
		t.Error("Expected Delete to return session a")
	}
	if _, ok := s.Get(a.ID); ok {
		t.Error("Expected session a to be gone")
	}
	if _, ok := s.Delete(a.ID); ok {
		t.Error("Expected second delete to report missing")
	}
	if s.Len() != 1 {
		t.Errorf("Expected 1 session, got %d", s.Len())
	}
}

func TestSessionStoreExpire(t *testing.T) {
	s := New()
	newController := func(id string) *workflow.Controller {
		return workflow.NewController(workflow.Options{})
	}
	stale := s.Create(newController)
	active := s.Create(newController)

	stale.touch(time.Now().Add(-time.Hour))
	active.touch(time.Now().Add(-time.Hour))
	if _, ok := s.Get(active.ID); !ok {
		t.Fatal("Expected active session")
	}

	expired := s.Expire(time.Now().Add(-30 * time.Minute))
	if len(expired) != 1 || expired[0] != stale {
		t.Fatalf("Expected only the stale session to expire, got %d", len(expired))
	}
	if _, ok := s.Get(stale.ID); ok {
		t.Error("Expected stale session removed")
	}
	if s.Len() != 1 {
		t.Errorf("Expected 1 session left, got %d", s.Len())
	}
	if got := s.Expire(time.Now().Add(-30 * time.Minute)); len(got) != 0 {
		t.Errorf("Expected nothing left to expire, got %d", len(got))
	}
}
