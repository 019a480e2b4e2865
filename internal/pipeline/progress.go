package pipeline

import (
	"context"

	"github.com/outreachkit/prospector/internal/progress"
)

// RunWithProgress runs op while an estimator feeds snapshots to onSnapshot.
// The estimator finishes (sprints to 100 and emits Complete) only after op
// returned successfully; on error it resets without completing. onSnapshot
// is called from a single goroutine and has drained before this returns.
func RunWithProgress[T any](ctx context.Context, cfg progress.Config, onSnapshot func(progress.Snapshot), op func(context.Context) (T, error)) (T, error) {
	est := progress.New(cfg)
	snaps := est.Start(ctx)

	drained := make(chan struct{})
	go func() {
		defer close(drained)
		for s := range snaps {
			if onSnapshot != nil {
				onSnapshot(s)
			}
		}
	}()

	out, err := op(ctx)
	if err != nil {
		est.Fail()
	} else {
		est.Finish()
	}
	<-drained
	return out, err
}
