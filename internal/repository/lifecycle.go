package repository

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sakif/credstore/internal/apperror"
	"github.com/sakif/credstore/internal/model"
	"github.com/sakif/credstore/internal/scheduler"
)

// snapshot is a copy of Data taken inside a task, tagged with the state
// version it reflects.
type snapshot struct {
	data    model.Data
	version uint64
}

// Ready starts the repository if needed and waits until it can serve
// calls. Public operations call it implicitly; the CLI calls it up front to
// surface startup failures early.
func (r *Repository) Ready(ctx context.Context) error {
	return r.waitReady(ctx)
}

// waitReady triggers startup on first use, then waits for the ready
// signal for at most readyTimeout.
//
// Startup runs detached from ctx: the first caller giving up must not leave
// the repository half-initialized for everyone else.
func (r *Repository) waitReady(ctx context.Context) error {
	if r.closed.Load() {
		return apperror.Unavailable("closed")
	}

	r.startOnce.Do(func() {
		r.started.Store(true)
		go r.start(context.WithoutCancel(ctx))
	})

	select {
	case <-r.ready:
		return nil
	default:
	}

	timer := time.NewTimer(r.readyTimeout)
	defer timer.Stop()

	select {
	case <-r.ready:
		return nil
	case <-timer.C:
		return apperror.Unavailable("startup did not complete")
	case <-ctx.Done():
		return ctx.Err()
	}
}

// start loads the snapshot, or seeds when there is none, and installs the
// result as scheduler state. Any load error other than "not found" leaves
// the repository permanently unavailable.
func (r *Repository) start(ctx context.Context) {
	began := time.Now()

	data, err := r.store.Load(ctx)
	seeded := false
	switch {
	case err == nil:
	case errors.Is(err, apperror.ErrSnapshotNotFound):
		data = buildSeed(ctx, r.hasher, r.seed, r.logger)
		seeded = true
	default:
		r.logger.Error("repository startup failed",
			slog.Any("error", apperror.Persistence("load", err)),
		)
		close(r.failed)
		return
	}

	_, err = scheduler.Submit(r.sched, func(st *state) (struct{}, error) {
		st.data = data
		st.index = BuildIndex(data)
		if seeded {
			st.version++
			r.scheduleSave(st, 0)
		}
		return struct{}{}, nil
	}).Wait(ctx)
	if err != nil {
		r.logger.Error("repository startup failed", slog.Any("error", err))
		close(r.failed)
		return
	}

	r.logger.Info("repository ready",
		slog.Bool("seeded", seeded),
		slog.Int("users", len(data.Users)),
		slog.Duration("took", time.Since(began)),
	)
	close(r.ready)
}

// scheduleSave arms, or re-arms, the debounced save. It must run inside a
// task body.
//
//   - no timer: arm one for delay.
//   - timer armed and stoppable: push it back by delay.
//   - timer already fired: its save task is queued behind the current task
//     and will see this mutation, so nothing more is needed.
func (r *Repository) scheduleSave(st *state, delay time.Duration) {
	if st.saveTimer != nil {
		if st.saveTimer.Stop() {
			st.saveTimer.Reset(delay)
		}
		return
	}
	st.saveTimer = time.AfterFunc(delay, r.submitSave)
}

// submitSave is the timer callback. It copies the current data through the
// scheduler, so the copy is ordered with every mutation, and writes the
// copy from its own goroutine.
func (r *Repository) submitSave() {
	ctx := context.Background()

	snap, err := scheduler.Submit(r.sched, func(st *state) (snapshot, error) {
		st.saveTimer = nil
		return snapshot{data: st.data.Clone(), version: st.version}, nil
	}).Wait(ctx)
	if err != nil {
		r.logger.Error("preparing snapshot", slog.Any("error", err))
		return
	}

	// Failure is already logged; the store stays dirty and the next
	// mutation's save retries.
	_ = r.write(ctx, snap)
}

// write hands snap to the snapshot store. Writes are serialized by writeMu
// and a copy no newer than the last successful write is skipped, so an
// older copy can never overwrite a newer one.
func (r *Repository) write(ctx context.Context, snap snapshot) error {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	if snap.version <= r.written {
		return nil
	}

	began := time.Now()
	if err := r.store.Save(ctx, snap.data); err != nil {
		perr := apperror.Persistence("save", err)
		r.logger.Error("saving snapshot failed",
			slog.Uint64("version", snap.version),
			slog.Any("error", perr),
		)
		return perr
	}

	r.written = snap.version
	r.logger.Debug("snapshot saved",
		slog.Uint64("version", snap.version),
		slog.Int("users", len(snap.data.Users)),
		slog.Duration("took", time.Since(began)),
	)
	return nil
}

// Close flushes any unsaved mutation and rejects every later call with
// apperror.ErrUnavailable. Calls submitted before Close still complete.
//
// A repository that never started is closed without touching the store.
// Close is safe to call more than once; a later call retries a failed write.
func (r *Repository) Close(ctx context.Context) error {
	r.closed.Store(true)

	// Claim the start slot so a late caller cannot trigger startup.
	r.startOnce.Do(func() {})
	if !r.started.Load() {
		return nil
	}

	timer := time.NewTimer(r.readyTimeout)
	defer timer.Stop()

	select {
	case <-r.ready:
	case <-r.failed:
		return nil
	case <-timer.C:
		// Startup stalled: nothing was loaded, nothing to flush.
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}

	snap, err := scheduler.Submit(r.sched, func(st *state) (snapshot, error) {
		if st.saveTimer != nil && st.saveTimer.Stop() {
			st.saveTimer = nil
		}
		st.closed = true
		return snapshot{data: st.data.Clone(), version: st.version}, nil
	}).Wait(ctx)
	if err != nil {
		return err
	}

	return r.write(ctx, snap)
}
