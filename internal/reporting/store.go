package reporting

import (
	"context"

	"github.com/efebarandurmaz/archscore/internal/diagram"
	"github.com/efebarandurmaz/archscore/internal/observability"
	"github.com/efebarandurmaz/archscore/internal/snapshot"
)

// instrumentedRepository adds a span around every snapshot store call.
type instrumentedRepository struct {
	backend string
	inner   snapshot.Repository
}

// Instrument wraps repo so each call is traced under the given backend name.
func Instrument(backend string, repo snapshot.Repository) snapshot.Repository {
	return &instrumentedRepository{backend: backend, inner: repo}
}

func (r *instrumentedRepository) Append(ctx context.Context, id diagram.Identity, snap *snapshot.Snapshot) error {
	ctx, span := observability.StartStoreSpan(ctx, r.backend, "append")
	defer span.End()

	err := r.inner.Append(ctx, id, snap)
	observability.RecordError(span, err)
	return err
}

func (r *instrumentedRepository) ReadRecent(ctx context.Context, id diagram.Identity, n int) ([]snapshot.Snapshot, error) {
	ctx, span := observability.StartStoreSpan(ctx, r.backend, "read_recent")
	defer span.End()

	snaps, err := r.inner.ReadRecent(ctx, id, n)
	observability.RecordError(span, err)
	return snaps, err
}

func (r *instrumentedRepository) Close() error { return r.inner.Close() }
