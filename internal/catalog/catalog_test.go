package catalog

import (
	"bytes"
	"context"
	"log"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ledgerlib/internal/host"
	"ledgerlib/internal/journal"
	"ledgerlib/internal/storage/memory"
)

func newTestService(t testing.TB) (Service, *memory.Store) {
	t.Helper()
	return newService()
}

func newService() (Service, *memory.Store) {
	backing := memory.NewStore()
	env := host.New(backing,
		host.WithJournal(journal.NewMemoryJournal()),
		host.WithLogger(log.New(&bytes.Buffer{}, "", 0)),
	)
	return NewService(env), backing
}

func mustCreate(t *testing.T, svc Service, title, owner string) uint32 {
	t.Helper()
	id, err := svc.CreateItem(context.Background(), title, owner)
	require.NoError(t, err)
	return id
}

func statusOf(t *testing.T, svc Service, id uint32) Status {
	t.Helper()
	item, ok, err := svc.GetItem(context.Background(), id)
	require.NoError(t, err)
	require.True(t, ok)
	return item.Status
}

func TestCreateAndGetItem(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	id := mustCreate(t, svc, "El Quijote", "Cervantes")
	assert.Equal(t, uint32(1), id)

	item, ok, err := svc.GetItem(ctx, id)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, Item{ID: 1, Title: "El Quijote", Owner: "Cervantes", Status: StatusAvailable}, *item)
}

func TestCreateAssignsSequentialIDs(t *testing.T) {
	svc, _ := newTestService(t)
	for want := uint32(1); want <= 5; want++ {
		assert.Equal(t, want, mustCreate(t, svc, "T", "O"))
	}
}

func TestCreateRejectsEmptyFields(t *testing.T) {
	svc, backing := newTestService(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		title string
		owner string
	}{
		{"empty title", "", "Someone"},
		{"empty owner", "Something", ""},
		{"both empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := svc.CreateItem(ctx, tt.title, tt.owner)
			assert.ErrorIs(t, err, ErrInvalidData)
			assert.Zero(t, id)
			assert.Zero(t, backing.Len(), "a rejected create writes nothing")
		})
	}

	assert.Equal(t, uint32(1), mustCreate(t, svc, "A", "o1"), "the counter did not advance")
}

func TestGetItemAbsent(t *testing.T) {
	svc, _ := newTestService(t)
	item, ok, err := svc.GetItem(context.Background(), 999)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, item)
}

func TestLoanTwiceFails(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	id := mustCreate(t, svc, "Cien Años de Soledad", "García Márquez")

	require.NoError(t, svc.Loan(ctx, id))
	assert.Equal(t, StatusLoaned, statusOf(t, svc, id))

	assert.ErrorIs(t, svc.Loan(ctx, id), ErrNotAvailable)
	assert.Equal(t, StatusLoaned, statusOf(t, svc, id))
}

func TestReturnItem(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	id := mustCreate(t, svc, "La Casa de los Espíritus", "Isabel Allende")

	assert.ErrorIs(t, svc.ReturnItem(ctx, id), ErrNotAvailable, "cannot return an available item")

	require.NoError(t, svc.Loan(ctx, id))
	require.NoError(t, svc.ReturnItem(ctx, id))
	assert.Equal(t, StatusAvailable, statusOf(t, svc, id))

	assert.ErrorIs(t, svc.ReturnItem(ctx, id), ErrNotAvailable)
}

func TestReserve(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	avail := mustCreate(t, svc, "Rayuela", "Julio Cortázar")
	loaned := mustCreate(t, svc, "Ficciones", "Borges")
	require.NoError(t, svc.Loan(ctx, loaned))

	assert.ErrorIs(t, svc.Reserve(ctx, loaned), ErrNotAvailable)
	assert.Equal(t, StatusLoaned, statusOf(t, svc, loaned))

	require.NoError(t, svc.Reserve(ctx, avail))
	assert.Equal(t, StatusReserved, statusOf(t, svc, avail))
	assert.ErrorIs(t, svc.Reserve(ctx, avail), ErrNotAvailable)
}

func TestReservedIsTerminal(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	id := mustCreate(t, svc, "T", "O")
	require.NoError(t, svc.Reserve(ctx, id))

	assert.ErrorIs(t, svc.Loan(ctx, id), ErrNotAvailable)
	assert.ErrorIs(t, svc.ReturnItem(ctx, id), ErrNotAvailable)
	assert.ErrorIs(t, svc.Reserve(ctx, id), ErrNotAvailable)
	assert.Equal(t, StatusReserved, statusOf(t, svc, id))
}

func TestOperationsOnMissingItem(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	mustCreate(t, svc, "T", "O")

	assert.ErrorIs(t, svc.Loan(ctx, 999), ErrNotFound)
	assert.ErrorIs(t, svc.ReturnItem(ctx, 999), ErrNotFound)
	assert.ErrorIs(t, svc.Reserve(ctx, 999), ErrNotFound)
	assert.ErrorIs(t, svc.SetStatus(ctx, 999, StatusLoaned), ErrNotFound)
	assert.ErrorIs(t, svc.Loan(ctx, 0), ErrNotFound)
}

func TestSetStatus(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	id := mustCreate(t, svc, "T", "O")

	require.NoError(t, svc.SetStatus(ctx, id, StatusReserved))
	assert.Equal(t, StatusReserved, statusOf(t, svc, id))

	require.NoError(t, svc.SetStatus(ctx, id, StatusAvailable), "the raw overwrite ignores the transition table")
	assert.Equal(t, StatusAvailable, statusOf(t, svc, id))

	assert.ErrorIs(t, svc.SetStatus(ctx, id, Status("lost")), ErrInvalidData)
}

func TestListEmptyCatalog(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	all, err := svc.ListAll(ctx)
	require.NoError(t, err)
	assert.NotNil(t, all)
	assert.Empty(t, all)

	avail, err := svc.ListAvailable(ctx)
	require.NoError(t, err)
	assert.Empty(t, avail)
}

func TestListScenario(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	assert.Equal(t, uint32(1), mustCreate(t, svc, "A", "o1"))
	assert.Equal(t, uint32(2), mustCreate(t, svc, "B", "o2"))
	require.NoError(t, svc.Loan(ctx, 2))

	avail, err := svc.ListAvailable(ctx)
	require.NoError(t, err)
	assert.Equal(t, []Item{{ID: 1, Title: "A", Owner: "o1", Status: StatusAvailable}}, avail)

	all, err := svc.ListAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, []Item{
		{ID: 1, Title: "A", Owner: "o1", Status: StatusAvailable},
		{ID: 2, Title: "B", Owner: "o2", Status: StatusLoaned},
	}, all)
}

func TestListAllMixedStatuses(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	for _, title := range []string{"Libro A", "Libro B", "Libro C"} {
		mustCreate(t, svc, title, "Autor")
	}
	require.NoError(t, svc.Loan(ctx, 1))
	require.NoError(t, svc.Reserve(ctx, 2))

	all, err := svc.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []Status{StatusLoaned, StatusReserved, StatusAvailable},
		[]Status{all[0].Status, all[1].Status, all[2].Status})
}

func TestListSkipsGaps(t *testing.T) {
	ctx := context.Background()
	svc, backing := newTestService(t)
	mustCreate(t, svc, "A", "o")
	mustCreate(t, svc, "B", "o")
	mustCreate(t, svc, "C", "o")

	// an allocated ID with no record is skipped, not an error
	require.NoError(t, putCounter(ctx, backing, 6))

	all, err := svc.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, uint32(3), all[2].ID)
}

func TestHistory(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	id := mustCreate(t, svc, "T", "O")
	require.NoError(t, svc.Loan(ctx, id))
	require.NoError(t, svc.ReturnItem(ctx, id))
	assert.Error(t, svc.ReturnItem(ctx, id))

	events, err := svc.History(ctx, id)
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, EventItemCreated, events[0].EventType)
	assert.Equal(t, EventItemStatusChanged, events[1].EventType)
	assert.JSONEq(t, `{"id":1,"operation":"return","from":"loaned","to":"available"}`, string(events[2].EventData))

	_, err = svc.History(ctx, 42)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestHistoryWithoutJournal(t *testing.T) {
	env := host.New(memory.NewStore(), host.WithLogger(log.New(&bytes.Buffer{}, "", 0)))
	svc := NewService(env)
	_, err := svc.History(context.Background(), 1)
	assert.ErrorIs(t, err, ErrHistoryUnavailable)
}

func TestCorruptCounter(t *testing.T) {
	ctx := context.Background()
	svc, backing := newTestService(t)
	require.NoError(t, backing.Set(ctx, CounterKey, []byte{1}))

	_, err := svc.CreateItem(ctx, "T", "O")
	require.Error(t, err)
	assert.Zero(t, Code(err))

	require.NoError(t, backing.Set(ctx, CounterKey, []byte{0, 0, 0, 0}))
	_, err = svc.ListAll(ctx)
	assert.Error(t, err)
}

func TestListWithHugeCounter(t *testing.T) {
	svc, backing := newTestService(t)
	require.NoError(t, backing.Set(context.Background(), CounterKey, []byte{0xFF, 0xFF, 0xFF, 0xFF}))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := svc.ListAll(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestCode(t *testing.T) {
	assert.Equal(t, CodeNotFound, Code(ErrNotFound))
	assert.Equal(t, CodeNotAvailable, Code(ErrNotAvailable))
	assert.Equal(t, CodeInvalidData, Code(ErrInvalidData))
	assert.Equal(t, 0, Code(nil))
	assert.Equal(t, 0, Code(ErrHistoryUnavailable))
}

func TestNext(t *testing.T) {
	tests := []struct {
		op      Operation
		current Status
		want    Status
		err     error
	}{
		{OpLoan, StatusAvailable, StatusLoaned, nil},
		{OpLoan, StatusLoaned, "", ErrNotAvailable},
		{OpLoan, StatusReserved, "", ErrNotAvailable},
		{OpReturn, StatusLoaned, StatusAvailable, nil},
		{OpReturn, StatusAvailable, "", ErrNotAvailable},
		{OpReturn, StatusReserved, "", ErrNotAvailable},
		{OpReserve, StatusAvailable, StatusReserved, nil},
		{OpReserve, StatusLoaned, "", ErrNotAvailable},
		{OpReserve, StatusReserved, "", ErrNotAvailable},
	}
	for _, tt := range tests {
		t.Run(string(tt.op)+"/"+string(tt.current), func(t *testing.T) {
			got, err := Next(tt.op, tt.current)
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := Next(OpSet, StatusAvailable)
	assert.Error(t, err)
}

func TestStatusJSON(t *testing.T) {
	var s Status
	require.NoError(t, s.UnmarshalJSON([]byte(`"loaned"`)))
	assert.Equal(t, StatusLoaned, s)
	assert.ErrorIs(t, s.UnmarshalJSON([]byte(`"borrowed"`)), ErrInvalidData)
	assert.Error(t, s.UnmarshalJSON([]byte(`7`)))
}
