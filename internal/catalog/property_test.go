package catalog

import (
	"context"
	"testing"

	"pgregory.net/rapid"
)

// catalogMachine drives random operation sequences against the service and a
// plain in-memory model of the expected state.
type catalogMachine struct {
	svc   Service
	model []Status // model[i] is the status of item i+1
}

func (m *catalogMachine) Create(t *rapid.T) {
	title := rapid.StringN(0, 8, -1).Draw(t, "title")
	owner := rapid.StringN(0, 8, -1).Draw(t, "owner")
	id, err := m.svc.CreateItem(context.Background(), title, owner)
	if title == "" || owner == "" {
		if Code(err) != CodeInvalidData {
			t.Fatalf("create(%q, %q): want ErrInvalidData, got %v", title, owner, err)
		}
		return
	}
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	m.model = append(m.model, StatusAvailable)
	if want := uint32(len(m.model)); id != want {
		t.Fatalf("create returned id %d, want %d", id, want)
	}
}

func (m *catalogMachine) Transition(t *rapid.T) {
	op := rapid.SampledFrom([]Operation{OpLoan, OpReturn, OpReserve}).Draw(t, "op")
	id := rapid.Uint32Range(0, uint32(len(m.model))+2).Draw(t, "id")

	var err error
	ctx := context.Background()
	switch op {
	case OpLoan:
		err = m.svc.Loan(ctx, id)
	case OpReturn:
		err = m.svc.ReturnItem(ctx, id)
	case OpReserve:
		err = m.svc.Reserve(ctx, id)
	}

	if id == 0 || int(id) > len(m.model) {
		if Code(err) != CodeNotFound {
			t.Fatalf("%s(%d): want ErrNotFound, got %v", op, id, err)
		}
		return
	}
	next, nextErr := Next(op, m.model[id-1])
	if nextErr != nil {
		if Code(err) != CodeNotAvailable {
			t.Fatalf("%s(%d) from %s: want ErrNotAvailable, got %v", op, id, m.model[id-1], err)
		}
		return
	}
	if err != nil {
		t.Fatalf("%s(%d): %v", op, id, err)
	}
	m.model[id-1] = next
}

func (m *catalogMachine) Check(t *rapid.T) {
	ctx := context.Background()
	all, err := m.svc.ListAll(ctx)
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all) != len(m.model) {
		t.Fatalf("list all has %d items, want %d", len(all), len(m.model))
	}
	var wantAvailable []uint32
	for i, item := range all {
		if item.ID != uint32(i+1) {
			t.Fatalf("list all position %d has id %d", i, item.ID)
		}
		if item.Status != m.model[i] {
			t.Fatalf("item %d is %s, want %s", item.ID, item.Status, m.model[i])
		}
		if item.Status == StatusAvailable {
			wantAvailable = append(wantAvailable, item.ID)
		}
	}

	avail, err := m.svc.ListAvailable(ctx)
	if err != nil {
		t.Fatalf("list available: %v", err)
	}
	if len(avail) != len(wantAvailable) {
		t.Fatalf("list available has %d items, want %d", len(avail), len(wantAvailable))
	}
	for i, item := range avail {
		if item.ID != wantAvailable[i] {
			t.Fatalf("list available position %d has id %d, want %d", i, item.ID, wantAvailable[i])
		}
	}
}

func TestCatalogStateMachine(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		svc, _ := newService()
		t.Repeat(rapid.StateMachineActions(&catalogMachine{svc: svc}))
	})
}

func TestCreateIDsAreDense(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		svc, _ := newService()
		n := rapid.IntRange(1, 30).Draw(t, "n")
		for i := 1; i <= n; i++ {
			id, err := svc.CreateItem(context.Background(), "t", "o")
			if err != nil {
				t.Fatalf("create: %v", err)
			}
			if id != uint32(i) {
				t.Fatalf("create #%d returned id %d", i, id)
			}
		}
	})
}
