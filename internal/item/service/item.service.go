package service

import (
	"context"
	"fmt"
	"sync"

	"itemstore/internal/item/model"
	"itemstore/internal/item/repository"
	"itemstore/pkg/logger"
)

// ItemService owns the item collection. Every operation loads the persisted
// document, works on its own copy and persists the result while holding mu,
// so no two load-mutate-persist cycles ever interleave.
type ItemService struct {
	Repo repository.Repository
	mu   sync.Mutex
}

func NewItemService(repo repository.Repository) *ItemService {
	return &ItemService{Repo: repo}
}

// List returns every item in stored order.
func (s *ItemService) List(ctx context.Context) (model.Collection, error) {
	var out model.Collection
	err := s.withCollection(ctx, func(items model.Collection) (model.Collection, error) {
		out = items
		return nil, nil
	})
	return out, err
}

// Get returns the item with the given id.
func (s *ItemService) Get(ctx context.Context, id int64) (model.Record, error) {
	var out model.Record
	err := s.withCollection(ctx, func(items model.Collection) (model.Collection, error) {
		idx := items.IndexOf(id)
		if idx < 0 {
			return nil, notFound(id)
		}
		out = items[idx]
		return nil, nil
	})
	return out, err
}

// Create validates body, assigns the next id (ignoring any id in the body)
// and appends the new item.
func (s *ItemService) Create(ctx context.Context, body []byte) (model.Record, error) {
	rec, err := parsePayload(body)
	if err != nil {
		return nil, err
	}

	err = s.withCollection(ctx, func(items model.Collection) (model.Collection, error) {
		id, err := NextID(items)
		if err != nil {
			return nil, err
		}
		rec[model.FieldID] = id
		next := make(model.Collection, 0, len(items)+1)
		next = append(next, items...)
		return append(next, rec), nil
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// Update replaces the item with the given id by body. Fields missing from
// body are dropped; the id is kept.
func (s *ItemService) Update(ctx context.Context, id int64, body []byte) (model.Record, error) {
	var out model.Record
	err := s.withCollection(ctx, func(items model.Collection) (model.Collection, error) {
		idx := items.IndexOf(id)
		if idx < 0 {
			return nil, notFound(id)
		}
		rec, err := parsePayload(body)
		if err != nil {
			return nil, err
		}
		rec[model.FieldID] = id

		next := make(model.Collection, len(items))
		copy(next, items)
		next[idx] = rec
		out = rec
		return next, nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Delete removes the item with the given id and returns it.
func (s *ItemService) Delete(ctx context.Context, id int64) (model.Record, error) {
	var out model.Record
	err := s.withCollection(ctx, func(items model.Collection) (model.Collection, error) {
		idx := items.IndexOf(id)
		if idx < 0 {
			return nil, notFound(id)
		}
		out = items[idx]
		next := make(model.Collection, 0, len(items)-1)
		next = append(next, items[:idx]...)
		return append(next, items[idx+1:]...), nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// withCollection runs one critical section: load, apply fn, and persist the
// collection fn returns. A nil result from fn means nothing to persist. The
// loaded collection is private to this call, so a failed save discards the
// mutation entirely.
func (s *ItemService) withCollection(ctx context.Context, fn func(model.Collection) (model.Collection, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Once started, a cycle runs to completion even if the caller goes away.
	ctx = context.WithoutCancel(ctx)

	items, err := s.Repo.Load(ctx)
	if err != nil {
		return err
	}

	next, err := fn(items)
	if err != nil || next == nil {
		return err
	}

	if err := s.Repo.Save(ctx, next); err != nil {
		logger.Sugar.Errorf("Service: mutation not committed: %v", err)
		return err
	}
	return nil
}

func parsePayload(body []byte) (model.Record, error) {
	rec, err := model.DecodeRecord(body)
	if err != nil {
		return nil, err
	}
	if _, ok := rec.Name(); !ok {
		return nil, model.ErrValidation
	}
	return rec, nil
}

func notFound(id int64) error {
	return fmt.Errorf("%w: id %d", model.ErrNotFound, id)
}
