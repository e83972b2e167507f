// Package syncer orchestrates populate cycles: one remote photo search
// for a pinned location, the download of every returned image and their
// persistence in the album store. At most one cycle is in flight per
// location, guarded by an in-memory set; the persisted busy flag is
// only a projection of that guard for display purposes.
package syncer

import (
	"context"
	"fmt"
	"math/rand"
	"sync"

	"bitbucket.org/kleinnic74/pinboard/album"
	"bitbucket.org/kleinnic74/pinboard/domain"
	"bitbucket.org/kleinnic74/pinboard/events"
	"bitbucket.org/kleinnic74/pinboard/logging"

	"github.com/alitto/pond/v2"
	"go.uber.org/zap"
)

// SearchClient returns one page of photo references for a coordinate
type SearchClient interface {
	Search(ctx context.Context, lat, lon float64, page int) (*domain.PhotoPage, error)
}

// ImageFetcher resolves a photo reference to its binary payload
type ImageFetcher interface {
	Fetch(ctx context.Context, ref domain.PhotoRef) ([]byte, error)
}

// FailurePolicy decides what a failed image download does to the rest
// of the cycle
type FailurePolicy string

const (
	// SkipFailed drops the failed item and continues with the rest of
	// the page
	SkipFailed = FailurePolicy("skip")
	// AbortOnFailure cancels the remaining downloads on the first
	// failure and ends the cycle in the failed state
	AbortOnFailure = FailurePolicy("abort")
)

// AlreadyInProgressError signals that a populate cycle is already in
// flight for the location. Callers should treat it as a no-op.
type AlreadyInProgressError domain.LocationID

func (err AlreadyInProgressError) Error() string {
	return fmt.Sprintf("populate already in progress for location '%s'", string(err))
}

func IsAlreadyInProgress(err error) bool {
	_, ok := err.(AlreadyInProgressError)
	return ok
}

type Config struct {
	// FetchParallelism bounds the concurrent image downloads of one
	// cycle
	FetchParallelism int
	OnFetchFailure   FailurePolicy
}

func (c Config) withDefaults() Config {
	if c.FetchParallelism <= 0 {
		c.FetchParallelism = 3
	}
	if c.OnFetchFailure == "" {
		c.OnFetchFailure = SkipFailed
	}
	return c
}

type Engine struct {
	store   album.Store
	search  SearchClient
	fetcher ImageFetcher
	bus     *events.Stream
	cfg     Config

	lock     sync.Mutex
	inflight map[domain.LocationID]struct{}

	// base context for background cycles, set by Start
	baseCtx context.Context
	wg      sync.WaitGroup

	randomPage func(totalPages int) int
}

func NewEngine(store album.Store, search SearchClient, fetcher ImageFetcher, bus *events.Stream, cfg Config) *Engine {
	return &Engine{
		store:      store,
		search:     search,
		fetcher:    fetcher,
		bus:        bus,
		cfg:        cfg.withDefaults(),
		inflight:   make(map[domain.LocationID]struct{}),
		baseCtx:    context.Background(),
		randomPage: func(totalPages int) int { return 1 + rand.Intn(totalPages) },
	}
}

// Start attaches the engine to its lifecycle context and runs the
// reconciliation pass: any location still marked busy from a previous
// crashed run has no in-flight cycle and is reset.
func (e *Engine) Start(ctx context.Context) error {
	logger, ctx := logging.SubFrom(ctx, "syncer")
	e.baseCtx = ctx
	stuck, err := e.store.ResetBusy(ctx)
	if err != nil {
		return fmt.Errorf("busy flag reconciliation failed: %w", err)
	}
	for _, id := range stuck {
		logger.Warn("Reset stuck busy flag", zap.String("location", string(id)))
	}
	return nil
}

// Wait blocks until all in-flight cycles have terminated
func (e *Engine) Wait() {
	e.wg.Wait()
}

// Populate runs one search+fetch+persist cycle for the location at the
// given page. It returns immediately, completion is delivered through
// the change event stream. A second call while a cycle is in flight is
// rejected with AlreadyInProgress.
func (e *Engine) Populate(ctx context.Context, id domain.LocationID, page int) error {
	loc, err := e.store.GetLocation(ctx, id)
	if err != nil {
		return err
	}
	if !e.tryAcquire(id) {
		return AlreadyInProgressError(id)
	}
	return e.launch(ctx, loc, page)
}

// ReplaceCollection deletes all photos of the location and populates it
// afresh with a randomly chosen page
func (e *Engine) ReplaceCollection(ctx context.Context, id domain.LocationID) error {
	loc, err := e.store.GetLocation(ctx, id)
	if err != nil {
		return err
	}
	if !e.tryAcquire(id) {
		return AlreadyInProgressError(id)
	}
	if err := e.store.DeleteAllPhotos(ctx, id); err != nil {
		e.release(id)
		return err
	}
	page := 1
	if loc.TotalPages >= 1 {
		page = e.randomPage(loc.TotalPages)
	}
	return e.launch(ctx, loc, page)
}

// launch persists the busy flag and spawns the background cycle, with
// the guard for loc already held
func (e *Engine) launch(ctx context.Context, loc *domain.Location, page int) error {
	if err := e.store.SetBusy(ctx, loc.ID, true); err != nil {
		e.release(loc.ID)
		return err
	}
	cyclesStarted.Inc()
	e.wg.Add(1)
	go e.cycle(loc, page)
	return nil
}

func (e *Engine) tryAcquire(id domain.LocationID) bool {
	e.lock.Lock()
	defer e.lock.Unlock()
	if _, busy := e.inflight[id]; busy {
		return false
	}
	e.inflight[id] = struct{}{}
	return true
}

func (e *Engine) release(id domain.LocationID) {
	e.lock.Lock()
	defer e.lock.Unlock()
	delete(e.inflight, id)
}

// cycle is the background part of a populate: search, download,
// persist. Whatever happens, the busy flag is cleared and the guard
// released at the end.
func (e *Engine) cycle(loc *domain.Location, page int) {
	defer e.wg.Done()
	defer e.release(loc.ID)
	logger, ctx := logging.FromWithNameAndFields(e.baseCtx, "cycle",
		zap.String("location", string(loc.ID)), zap.Int("page", page))

	result, err := e.search.Search(ctx, loc.Latitude, loc.Longitude, page)
	if err != nil {
		logger.Warn("Search failed", zap.Error(err))
		e.endCycle(ctx, loc.ID, domain.OpFailed, err)
		return
	}

	totalPages := result.TotalPages
	if totalPages < 1 && len(result.Items) > 0 {
		// malformed but non-empty result, there is at least this page
		totalPages = 1
	}
	if err := e.store.SetTotalPages(ctx, loc.ID, totalPages); err != nil {
		logger.Warn("Location gone before download started", zap.Error(err))
		e.endCycle(ctx, loc.ID, domain.OpFailed, err)
		return
	}

	if len(result.Items) == 0 {
		logger.Info("No photos for this location", zap.Int("totalPages", totalPages))
		e.endCycle(ctx, loc.ID, domain.OpEmpty, nil)
		return
	}

	stored, err := e.downloadAll(ctx, loc.ID, result.Items)
	if err != nil {
		logger.Warn("Cycle aborted", zap.Error(err), zap.Int("stored", stored))
		e.endCycle(ctx, loc.ID, domain.OpFailed, err)
		return
	}
	logger.Info("Cycle completed", zap.Int("stored", stored), zap.Int("items", len(result.Items)))
	e.endCycle(ctx, loc.ID, domain.OpCompleted, nil)
}

// downloadAll fetches every referenced image and persists each one as
// soon as its bytes are complete. Photos appear incrementally, each
// independently committed and notified.
func (e *Engine) downloadAll(ctx context.Context, id domain.LocationID, refs []domain.PhotoRef) (int, error) {
	logger := logging.From(ctx)
	cycleCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var lock sync.Mutex
	var stored int
	var fatal error
	abort := func(err error) {
		lock.Lock()
		if fatal == nil {
			fatal = err
		}
		lock.Unlock()
		cancel()
	}

	pool := pond.NewPool(e.cfg.FetchParallelism, pond.WithContext(cycleCtx))
	for _, ref := range refs {
		ref := ref
		pool.Submit(func() {
			data, err := e.fetcher.Fetch(cycleCtx, ref)
			if err != nil {
				fetchFailures.Inc()
				if e.cfg.OnFetchFailure == AbortOnFailure {
					abort(err)
					return
				}
				logger.Warn("Skipping failed download", zap.String("remoteID", ref.RemoteID), zap.Error(err))
				return
			}
			switch _, err := e.store.AddPhoto(cycleCtx, id, data); {
			case err == nil:
				photosStored.Inc()
				lock.Lock()
				stored++
				lock.Unlock()
			case album.IsPhotoAlreadyExists(err):
				duplicatesSkipped.Inc()
				logger.Debug("Duplicate payload skipped", zap.String("remoteID", ref.RemoteID))
			default:
				// the location vanished mid-cycle or the store failed,
				// either way this cycle cannot make progress
				abort(err)
			}
		})
	}
	_ = pool.Stop().Wait()

	lock.Lock()
	defer lock.Unlock()
	return stored, fatal
}

// endCycle clears the busy flag and publishes the terminal sync event.
// A NotFound while clearing means the location was deleted mid-cycle,
// which is fine, there is nothing left to mark idle.
func (e *Engine) endCycle(ctx context.Context, id domain.LocationID, op domain.Operation, cause error) {
	if err := e.store.SetBusy(ctx, id, false); err != nil && !album.IsNotFound(err) {
		logging.From(ctx).Error("Failed to clear busy flag", zap.Error(err))
	}
	if op == domain.OpFailed {
		cyclesFailed.Inc()
	}
	event := domain.Change{Entity: domain.EntitySync, Op: op, ID: string(id), Location: id}
	if cause != nil {
		event.Error = cause.Error()
	}
	if e.bus != nil {
		e.bus.Publish(event)
	}
}
