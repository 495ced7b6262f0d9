package entityloader

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rpattn/changereport/internal/domain"
	"github.com/rpattn/changereport/internal/repository"

	"github.com/google/uuid"
	"github.com/graph-gophers/dataloader"
)

type ctxKey string

const liveLoaderKey ctxKey = "liveLoader"

// LiveLoader batches live-table fallback lookups issued while one report is assembled.
type LiveLoader struct {
	Loader *dataloader.Loader
}

// NewLiveLoader creates a request-scoped loader over the live store.
func NewLiveLoader(repo repository.LiveStore) *LiveLoader {
	batchFn := func(ctx context.Context, keys dataloader.Keys) []*dataloader.Result {
		results := make([]*dataloader.Result, len(keys))

		// Group keys by kind, remembering their positions
		byKind := make(map[domain.EntityKind][]uuid.UUID)
		positions := make(map[string]int, len(keys))
		for i, k := range keys {
			kind, id, err := parseKey(k.String())
			if err != nil {
				results[i] = &dataloader.Result{Error: err}
				continue
			}
			byKind[kind] = append(byKind[kind], id)
			positions[k.String()] = i
		}

		for kind, ids := range byKind {
			entities, err := repo.GetByIDs(ctx, kind, ids)
			if err != nil {
				for _, id := range ids {
					results[positions[key(kind, id)]] = &dataloader.Result{Error: err}
				}
				continue
			}

			entityMap := make(map[uuid.UUID]domain.LiveEntity, len(entities))
			for _, e := range entities {
				entityMap[e.ID] = e
			}
			for _, id := range ids {
				if e, ok := entityMap[id]; ok {
					results[positions[key(kind, id)]] = &dataloader.Result{Data: e}
				} else {
					results[positions[key(kind, id)]] = &dataloader.Result{Data: nil}
				}
			}
		}

		return results
	}

	loader := dataloader.NewBatchedLoader(batchFn, dataloader.WithWait(5*time.Millisecond))

	return &LiveLoader{Loader: loader}
}

// Load fetches one live row; ok is false when the row does not exist.
func (l *LiveLoader) Load(ctx context.Context, kind domain.EntityKind, id uuid.UUID) (domain.LiveEntity, bool, error) {
	thunk := l.Loader.Load(ctx, dataloader.StringKey(key(kind, id)))
	data, err := thunk()
	if err != nil {
		return domain.LiveEntity{}, false, err
	}
	entity, ok := data.(domain.LiveEntity)
	if !ok {
		return domain.LiveEntity{}, false, nil
	}
	return entity, true, nil
}

// WithLoader attaches a loader to ctx.
func WithLoader(ctx context.Context, loader *LiveLoader) context.Context {
	return context.WithValue(ctx, liveLoaderKey, loader)
}

// FromContext retrieves the request's loader, if any.
func FromContext(ctx context.Context) *LiveLoader {
	if l, ok := ctx.Value(liveLoaderKey).(*LiveLoader); ok {
		return l
	}
	return nil
}

func key(kind domain.EntityKind, id uuid.UUID) string {
	return string(kind) + "/" + id.String()
}

func parseKey(raw string) (domain.EntityKind, uuid.UUID, error) {
	idx := strings.LastIndex(raw, "/")
	if idx <= 0 {
		return "", uuid.Nil, fmt.Errorf("invalid loader key %q", raw)
	}
	id, err := uuid.Parse(raw[idx+1:])
	if err != nil {
		return "", uuid.Nil, fmt.Errorf("invalid UUID: %w", err)
	}
	return domain.EntityKind(raw[:idx]), id, nil
}
