package scheduler

import (
	"errors"
	"testing"

	"github.com/rbazzell/distributed-systems-project/internal/model"
)

func TestRegistryRoundRobin(t *testing.T) {
	r := NewRegistry()
	r.Register("w1", "http://w1")
	r.Register("w2", "http://w2")
	r.Register("w3", "http://w3")

	want := []string{"w1", "w2", "w3", "w1", "w2", "w3"}
	for i, id := range want {
		w, err := r.Next()
		if err != nil {
			t.Fatalf("Next %d: %v", i, err)
		}
		if w.ID != id {
			t.Errorf("Next %d = %s, want %s", i, w.ID, id)
		}
	}
}

func TestRegistryEmpty(t *testing.T) {
	r := NewRegistry()
	if _, err := r.Next(); !errors.Is(err, model.ErrNoWorkersAvailable) {
		t.Errorf("Next on empty registry: got %v, want ErrNoWorkersAvailable", err)
	}
	if _, err := r.Rotation(); !errors.Is(err, model.ErrNoWorkersAvailable) {
		t.Errorf("Rotation on empty registry: got %v, want ErrNoWorkersAvailable", err)
	}
}

func TestRegistryReRegisterKeepsPosition(t *testing.T) {
	r := NewRegistry()
	r.Register("w1", "http://w1")
	r.Register("w2", "http://w2")

	w, added := r.Register("w1", "http://w1-new")
	if added {
		t.Error("re-registration reported as new")
	}
	if w.Endpoint != "http://w1-new" {
		t.Errorf("endpoint = %q, want updated", w.Endpoint)
	}
	if r.Len() != 2 {
		t.Fatalf("Len = %d, want 2", r.Len())
	}

	first, _ := r.Next()
	if first.ID != "w1" || first.Endpoint != "http://w1-new" {
		t.Errorf("first = %+v, want w1 at new endpoint", first)
	}
}

func TestRegistryJoinMidRotation(t *testing.T) {
	r := NewRegistry()
	r.Register("w1", "http://w1")
	r.Register("w2", "http://w2")
	r.Next() // w1

	r.Register("w3", "http://w3")

	var got []string
	for range 4 {
		w, _ := r.Next()
		got = append(got, w.ID)
	}
	want := []string{"w2", "w3", "w1", "w2"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("rotation = %v, want %v", got, want)
		}
	}
}

func TestRegistryRotation(t *testing.T) {
	r := NewRegistry()
	r.Register("w1", "http://w1")
	r.Register("w2", "http://w2")
	r.Register("w3", "http://w3")
	r.Next() // w1

	rot, err := r.Rotation()
	if err != nil {
		t.Fatalf("Rotation: %v", err)
	}
	ids := []string{rot[0].ID, rot[1].ID, rot[2].ID}
	if ids[0] != "w2" || ids[1] != "w3" || ids[2] != "w1" {
		t.Errorf("Rotation = %v, want [w2 w3 w1]", ids)
	}

	next, _ := r.Next()
	if next.ID != "w3" {
		t.Errorf("Next after Rotation = %s, want w3", next.ID)
	}
}

func TestRegistryListIsCopy(t *testing.T) {
	r := NewRegistry()
	r.Register("w1", "http://w1")

	list := r.List()
	list[0].Endpoint = "mutated"

	if r.List()[0].Endpoint != "http://w1" {
		t.Error("List exposed internal state")
	}
}
