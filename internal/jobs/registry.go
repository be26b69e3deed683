package jobs

import (
	"context"
	"log/slog"
	"sync"

	"notecast/internal/logging"
	"notecast/internal/store"
)

// Store is the episode persistence the registry writes through.
type Store interface {
	CreateEpisode(ctx context.Context, in store.NewEpisode) (*store.Episode, error)
	GetEpisode(ctx context.Context, id string) (*store.Episode, error)
	ListEpisodes(ctx context.Context, notebookID string) ([]*store.Episode, error)
	StartEpisode(ctx context.Context, id, stage string) (*store.Episode, error)
	UpdateEpisodeStage(ctx context.Context, id, stage string) (*store.Episode, error)
	CompleteEpisode(ctx context.Context, id, audioRef string, durationSeconds float64) (*store.Episode, error)
	FailEpisode(ctx context.Context, id, reason string) (*store.Episode, error)
	FailActiveEpisodes(ctx context.Context, reason string) ([]string, error)
	DeleteEpisode(ctx context.Context, id string) (*store.Episode, error)
}

// Listener receives every published episode snapshot.
type Listener func(store.Episode)

const watchBuffer = 8

type watcher struct {
	ch   chan store.Episode
	done chan struct{}
}

// Registry persists episode state changes and fans them out.
type Registry struct {
	store  Store
	logger *slog.Logger

	mu        sync.Mutex
	watchers  map[string]map[*watcher]struct{}
	listeners []Listener
}

// NewRegistry returns a registry writing through st.
func NewRegistry(st Store, logger *slog.Logger) *Registry {
	return &Registry{
		store:    st,
		logger:   logging.NewComponentLogger(logger, "jobs"),
		watchers: make(map[string]map[*watcher]struct{}),
	}
}

// Subscribe registers fn for every published snapshot. Listeners run on the
// publishing goroutine and must not block.
func (r *Registry) Subscribe(fn Listener) {
	if fn == nil {
		return
	}
	r.mu.Lock()
	r.listeners = append(r.listeners, fn)
	r.mu.Unlock()
}

// List returns a notebook's episodes straight from the store, newest first.
func (r *Registry) List(ctx context.Context, notebookID string) ([]*store.Episode, error) {
	return r.store.ListEpisodes(ctx, notebookID)
}

// Get returns an episode straight from the store.
func (r *Registry) Get(ctx context.Context, id string) (*store.Episode, error) {
	return r.store.GetEpisode(ctx, id)
}

// Create persists a pending episode and publishes it.
func (r *Registry) Create(ctx context.Context, in store.NewEpisode) (*store.Episode, error) {
	return r.publishResult(r.store.CreateEpisode(ctx, in))
}

// Start moves an episode from pending to generating.
func (r *Registry) Start(ctx context.Context, id, stage string) (*store.Episode, error) {
	return r.publishResult(r.store.StartEpisode(ctx, id, stage))
}

// Progress records the pipeline stage of a generating episode.
func (r *Registry) Progress(ctx context.Context, id, stage string) (*store.Episode, error) {
	return r.publishResult(r.store.UpdateEpisodeStage(ctx, id, stage))
}

// Complete marks an episode completed with its audio reference and duration.
func (r *Registry) Complete(ctx context.Context, id, audioRef string, durationSeconds float64) (*store.Episode, error) {
	return r.publishResult(r.store.CompleteEpisode(ctx, id, audioRef, durationSeconds))
}

// Fail marks an episode failed with reason.
func (r *Registry) Fail(ctx context.Context, id, reason string) (*store.Episode, error) {
	return r.publishResult(r.store.FailEpisode(ctx, id, reason))
}

// Recover fails every episode a previous process left active.
func (r *Registry) Recover(ctx context.Context, reason string) ([]string, error) {
	ids, err := r.store.FailActiveEpisodes(ctx, reason)
	if len(ids) > 0 {
		r.logger.Info("failed orphaned episodes",
			logging.Int("count", len(ids)),
			logging.String("reason", reason),
		)
	}
	return ids, err
}

// Remove deletes a terminal episode and returns the removed record.
func (r *Registry) Remove(ctx context.Context, id string) (*store.Episode, error) {
	return r.store.DeleteEpisode(ctx, id)
}

func (r *Registry) publishResult(ep *store.Episode, err error) (*store.Episode, error) {
	if err != nil {
		return nil, err
	}
	r.publish(*ep)
	return ep, nil
}

func (r *Registry) publish(ep store.Episode) {
	r.mu.Lock()
	for w := range r.watchers[ep.ID] {
		deliver(w, ep)
		if ep.Status.IsTerminal() {
			r.removeLocked(ep.ID, w)
		}
	}
	listeners := append([]Listener(nil), r.listeners...)
	r.mu.Unlock()

	for _, fn := range listeners {
		fn(ep)
	}
}

// deliver sends ep, replacing the oldest queued snapshot when the consumer
// lags. Only the publisher sends, under r.mu, so the second send cannot block.
func deliver(w *watcher, ep store.Episode) {
	select {
	case w.ch <- ep:
		return
	default:
	}
	select {
	case <-w.ch:
	default:
	}
	w.ch <- ep
}

func (r *Registry) removeLocked(id string, w *watcher) {
	set, ok := r.watchers[id]
	if !ok {
		return
	}
	if _, ok := set[w]; !ok {
		return
	}
	delete(set, w)
	if len(set) == 0 {
		delete(r.watchers, id)
	}
	close(w.done)
	close(w.ch)
}

// Watch streams snapshots of one episode, starting with its current state.
// The channel closes after a terminal snapshot or when ctx ends.
func (r *Registry) Watch(ctx context.Context, id string) (<-chan store.Episode, error) {
	w := &watcher{ch: make(chan store.Episode, watchBuffer), done: make(chan struct{})}

	r.mu.Lock()
	current, err := r.store.GetEpisode(ctx, id)
	if err != nil {
		r.mu.Unlock()
		return nil, err
	}
	w.ch <- *current
	if current.Status.IsTerminal() {
		close(w.done)
		close(w.ch)
		r.mu.Unlock()
		return w.ch, nil
	}
	set := r.watchers[id]
	if set == nil {
		set = make(map[*watcher]struct{})
		r.watchers[id] = set
	}
	set[w] = struct{}{}
	r.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
			r.mu.Lock()
			r.removeLocked(id, w)
			r.mu.Unlock()
		case <-w.done:
		}
	}()
	return w.ch, nil
}

// Wait blocks until the episode is terminal and returns it. When ctx ends
// first, the latest snapshot is returned with ctx's error.
func (r *Registry) Wait(ctx context.Context, id string) (*store.Episode, error) {
	ch, err := r.Watch(ctx, id)
	if err != nil {
		return nil, err
	}
	var latest store.Episode
	for ep := range ch {
		latest = ep
		if ep.Status.IsTerminal() {
			return &latest, nil
		}
	}
	return &latest, ctx.Err()
}

// WatcherCount reports the number of active watchers, for diagnostics.
func (r *Registry) WatcherCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	total := 0
	for _, set := range r.watchers {
		total += len(set)
	}
	return total
}
