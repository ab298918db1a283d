package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"itemstore/internal/item/model"
	"itemstore/internal/item/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// flakyRepo fails every Save while failSave is set.
type flakyRepo struct {
	*repository.FileRepository
	mu       sync.Mutex
	failSave bool
}

func (r *flakyRepo) Save(ctx context.Context, items model.Collection) error {
	r.mu.Lock()
	fail := r.failSave
	r.mu.Unlock()
	if fail {
		return fmt.Errorf("%w: disk full", model.ErrPersistenceFailure)
	}
	return r.FileRepository.Save(ctx, items)
}

func (r *flakyRepo) setFail(v bool) {
	r.mu.Lock()
	r.failSave = v
	r.mu.Unlock()
}

func newService(t *testing.T) (*ItemService, *flakyRepo) {
	t.Helper()
	fileRepo, err := repository.NewFileRepository(filepath.Join(t.TempDir(), "data.json"))
	require.NoError(t, err)
	repo := &flakyRepo{FileRepository: fileRepo}
	return NewItemService(repo), repo
}

func mustCreate(t *testing.T, s *ItemService, body string) model.Record {
	t.Helper()
	rec, err := s.Create(context.Background(), []byte(body))
	require.NoError(t, err)
	return rec
}

func TestCreateAssignsSequentialIDs(t *testing.T) {
	s, _ := newService(t)

	a := mustCreate(t, s, `{"name":"a"}`)
	b := mustCreate(t, s, `{"name":"b"}`)

	assert.Equal(t, model.Record{"id": int64(1), "name": "a"}, a)
	assert.Equal(t, model.Record{"id": int64(2), "name": "b"}, b)
}

func TestCreateThenGetReturnsEqualRecord(t *testing.T) {
	s, _ := newService(t)
	ctx := context.Background()

	created := mustCreate(t, s, `{"name":"lamp","price":19.99,"tags":["desk"],"dims":{"h":30}}`)
	got, err := s.Get(ctx, created["id"].(int64))
	require.NoError(t, err)
	assert.Equal(t, created, got)
	assert.Equal(t, json.Number("19.99"), got["price"])
}

func TestCreateOverridesClientID(t *testing.T) {
	s, _ := newService(t)

	rec := mustCreate(t, s, `{"id":99,"name":"x"}`)
	assert.Equal(t, int64(1), rec["id"])
}

func TestCreateValidation(t *testing.T) {
	cases := map[string]struct {
		body string
		want error
	}{
		"empty body":      {"", model.ErrValidation},
		"empty object":    {`{}`, model.ErrValidation},
		"empty name":      {`{"name":""}`, model.ErrValidation},
		"numeric name":    {`{"name":5}`, model.ErrValidation},
		"null name":       {`{"name":null}`, model.ErrValidation},
		"invalid json":    {`{"name":`, model.ErrMalformedInput},
		"array body":      {`[{"name":"a"}]`, model.ErrMalformedInput},
		"string body":     {`"a"`, model.ErrMalformedInput},
		"null body":       {`null`, model.ErrMalformedInput},
		"trailing values": {`{"name":"a"} {}`, model.ErrMalformedInput},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			s, _ := newService(t)
			_, err := s.Create(context.Background(), []byte(tc.body))
			assert.ErrorIs(t, err, tc.want)

			items, err := s.List(context.Background())
			require.NoError(t, err)
			assert.Empty(t, items)
		})
	}
}

func TestGetMissing(t *testing.T) {
	s, _ := newService(t)
	mustCreate(t, s, `{"name":"a"}`)

	_, err := s.Get(context.Background(), 42)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestUpdateIsFullReplacement(t *testing.T) {
	s, _ := newService(t)
	ctx := context.Background()
	mustCreate(t, s, `{"name":"a","color":"red"}`)

	updated, err := s.Update(ctx, 1, []byte(`{"id":7,"name":"c","size":"L"}`))
	require.NoError(t, err)
	assert.Equal(t, model.Record{"id": int64(1), "name": "c", "size": "L"}, updated)

	got, err := s.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, updated, got)
	assert.NotContains(t, got, "color")
}

func TestUpdateKeepsPosition(t *testing.T) {
	s, _ := newService(t)
	ctx := context.Background()
	for _, n := range []string{"a", "b", "c"} {
		mustCreate(t, s, `{"name":"`+n+`"}`)
	}

	_, err := s.Update(ctx, 2, []byte(`{"name":"B"}`))
	require.NoError(t, err)

	items, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, "B", items[1]["name"])
	assert.Equal(t, int64(2), items[1]["id"])
}

func TestUpdateChecksExistenceBeforeBody(t *testing.T) {
	s, _ := newService(t)

	_, err := s.Update(context.Background(), 5, []byte(`not json`))
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestUpdateValidation(t *testing.T) {
	s, _ := newService(t)
	ctx := context.Background()
	mustCreate(t, s, `{"name":"a"}`)

	_, err := s.Update(ctx, 1, []byte(`{"title":"no name"}`))
	assert.ErrorIs(t, err, model.ErrValidation)

	_, err = s.Update(ctx, 1, []byte(`{bad`))
	assert.ErrorIs(t, err, model.ErrMalformedInput)

	got, err := s.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "a", got["name"])
}

func TestDeleteThenGetIsNotFound(t *testing.T) {
	s, _ := newService(t)
	ctx := context.Background()
	mustCreate(t, s, `{"name":"a"}`)
	mustCreate(t, s, `{"name":"b"}`)

	removed, err := s.Delete(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, model.Record{"id": int64(2), "name": "b"}, removed)

	_, err = s.Get(ctx, 2)
	assert.ErrorIs(t, err, model.ErrNotFound)

	_, err = s.Delete(ctx, 2)
	assert.ErrorIs(t, err, model.ErrNotFound)

	items, err := s.List(ctx)
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestDeletedMaxIDIsReallocated(t *testing.T) {
	s, _ := newService(t)
	ctx := context.Background()
	for _, n := range []string{"a", "b", "c"} {
		mustCreate(t, s, `{"name":"`+n+`"}`)
	}

	_, err := s.Delete(ctx, 3)
	require.NoError(t, err)
	rec := mustCreate(t, s, `{"name":"d"}`)
	assert.Equal(t, int64(3), rec["id"])

	_, err = s.Delete(ctx, 1)
	require.NoError(t, err)
	rec = mustCreate(t, s, `{"name":"e"}`)
	assert.Equal(t, int64(4), rec["id"])
}

func TestExternalEditsAreRespected(t *testing.T) {
	s, repo := newService(t)
	require.NoError(t, os.WriteFile(repo.Path(), []byte(`[{"id":10,"name":"outside"}]`), 0o644))

	rec := mustCreate(t, s, `{"name":"a"}`)
	assert.Equal(t, int64(11), rec["id"])
}

func TestCreateFailsWhenIDSpaceIsExhausted(t *testing.T) {
	s, repo := newService(t)
	ctx := context.Background()
	seed := `[{"id":9223372036854775807,"name":"max"}]`
	require.NoError(t, os.WriteFile(repo.Path(), []byte(seed), 0o644))

	for i := 0; i < 2; i++ {
		_, err := s.Create(ctx, []byte(`{"name":"a"}`))
		assert.ErrorIs(t, err, model.ErrIDExhausted)
	}

	data, err := os.ReadFile(repo.Path())
	require.NoError(t, err)
	assert.Equal(t, seed, string(data))

	items, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, int64(math.MaxInt64), items[0]["id"])

	// Updates and deletes still work on a full id space.
	_, err = s.Update(ctx, math.MaxInt64, []byte(`{"name":"renamed"}`))
	require.NoError(t, err)
	_, err = s.Delete(ctx, math.MaxInt64)
	require.NoError(t, err)
	assert.Equal(t, int64(1), mustCreate(t, s, `{"name":"a"}`)["id"])
}

func TestCorruptStoreFailsOperations(t *testing.T) {
	s, repo := newService(t)
	ctx := context.Background()
	require.NoError(t, os.WriteFile(repo.Path(), []byte(`{"not":"an array"}`), 0o644))

	_, err := s.List(ctx)
	assert.ErrorIs(t, err, model.ErrCorruptStore)

	_, err = s.Create(ctx, []byte(`{"name":"a"}`))
	assert.ErrorIs(t, err, model.ErrCorruptStore)

	data, err := os.ReadFile(repo.Path())
	require.NoError(t, err)
	assert.Equal(t, `{"not":"an array"}`, string(data))
}

func TestFailedSaveIsNotCommitted(t *testing.T) {
	s, repo := newService(t)
	ctx := context.Background()
	mustCreate(t, s, `{"name":"a"}`)
	before, err := s.List(ctx)
	require.NoError(t, err)

	repo.setFail(true)
	_, err = s.Create(ctx, []byte(`{"name":"b"}`))
	assert.ErrorIs(t, err, model.ErrPersistenceFailure)
	_, err = s.Update(ctx, 1, []byte(`{"name":"z"}`))
	assert.ErrorIs(t, err, model.ErrPersistenceFailure)
	_, err = s.Delete(ctx, 1)
	assert.ErrorIs(t, err, model.ErrPersistenceFailure)

	after, err := s.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, before, after)

	repo.setFail(false)
	rec := mustCreate(t, s, `{"name":"b"}`)
	assert.Equal(t, int64(2), rec["id"])
}

func TestConcurrentCreatesGetDistinctIDs(t *testing.T) {
	s, repo := newService(t)
	ctx := context.Background()
	const n = 50

	ids := make(chan int64, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rec, err := s.Create(ctx, []byte(fmt.Sprintf(`{"name":"item-%d"}`, i)))
			if err != nil {
				t.Errorf("create %d: %v", i, err)
				return
			}
			ids <- rec["id"].(int64)
		}(i)
	}
	wg.Wait()
	close(ids)

	seen := make(map[int64]bool, n)
	for id := range ids {
		assert.False(t, seen[id], "duplicate id %d", id)
		seen[id] = true
	}
	assert.Len(t, seen, n)
	for id := int64(1); id <= n; id++ {
		assert.True(t, seen[id], "missing id %d", id)
	}

	persisted, err := repo.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, persisted, n)
}

func TestConcurrentUpdatesAreNotLost(t *testing.T) {
	s, _ := newService(t)
	ctx := context.Background()
	const n = 20
	for i := 0; i < n; i++ {
		mustCreate(t, s, fmt.Sprintf(`{"name":"v0-%d"}`, i))
	}

	var wg sync.WaitGroup
	for i := 1; i <= n; i++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			if _, err := s.Update(ctx, id, []byte(fmt.Sprintf(`{"name":"v1-%d"}`, id))); err != nil {
				t.Errorf("update %d: %v", id, err)
			}
		}(int64(i))
	}
	wg.Wait()

	items, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, items, n)
	for _, rec := range items {
		id, _ := rec.ID()
		assert.Equal(t, fmt.Sprintf("v1-%d", id), rec["name"])
	}
}

func TestIDsStayUniqueAcrossMixedOperations(t *testing.T) {
	s, _ := newService(t)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		mustCreate(t, s, `{"name":"x"}`)
		if i%3 == 0 {
			_, err := s.Delete(ctx, int64(i/2+1))
			if err != nil && !errors.Is(err, model.ErrNotFound) {
				t.Fatal(err)
			}
		}
		items, err := s.List(ctx)
		require.NoError(t, err)
		seen := map[int64]bool{}
		for _, rec := range items {
			id, ok := rec.ID()
			require.True(t, ok)
			require.False(t, seen[id], "duplicate id %d", id)
			seen[id] = true
		}
	}
}
