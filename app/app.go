// Package app wires the store, the sync engine, the event stream and
// the REST surface into one runnable service.
package app

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"bitbucket.org/kleinnic74/pinboard/album"
	"bitbucket.org/kleinnic74/pinboard/album/boltstore"
	"bitbucket.org/kleinnic74/pinboard/events"
	"bitbucket.org/kleinnic74/pinboard/flickr"
	"bitbucket.org/kleinnic74/pinboard/logging"
	"bitbucket.org/kleinnic74/pinboard/rest"
	"bitbucket.org/kleinnic74/pinboard/syncer"
	"github.com/gorilla/mux"
	"github.com/kleinnic74/fflags"
	bolt "go.etcd.io/bbolt"
	"go.uber.org/zap"
)

const dbName = "pinboard.db"

type Options struct {
	DataDir string
	Port    uint

	Flickr flickr.Config
	Sync   syncer.Config
}

type App struct {
	dir string

	db     *bolt.DB
	store  album.ClosableStore
	bus    *events.Stream
	engine *syncer.Engine
	router *mux.Router

	addr string

	shutdownHandlers shutdownHandlers
}

type shutdownHandler func(context.Context, *App)

type shutdownHandlers struct {
	h []shutdownHandler
}

func (hdls *shutdownHandlers) Add(h shutdownHandler) {
	hdls.h = append(hdls.h, h)
}

func (hdls shutdownHandlers) Execute(ctx context.Context, a *App) {
	for i := len(hdls.h) - 1; i >= 0; i-- {
		hdls.h[i](ctx, a)
	}
}

func NewApp(ctx context.Context, o Options) (a *App, err error) {
	logger, ctx := logging.SubFrom(ctx, "app")

	logger.Info("Data directory", zap.String("dir", o.DataDir))
	if err = os.MkdirAll(o.DataDir, os.ModePerm); err != nil {
		return nil, err
	}

	a = &App{
		dir:    o.DataDir,
		addr:   fmt.Sprintf(":%d", o.Port),
		router: mux.NewRouter(),
		bus:    events.NewStream(),
	}
	defer func() {
		if err != nil {
			a.shutdownHandlers.Execute(ctx, a)
		}
	}()

	a.db, err = bolt.Open(filepath.Join(o.DataDir, dbName), 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize data store: %w", err)
	}
	a.shutdownHandlers.Add(func(ctx context.Context, a *App) {
		a.db.Close()
		logging.From(ctx).Info("Closed data store")
	})

	if a.store, err = boltstore.NewBoltStore(a.db); err != nil {
		return nil, fmt.Errorf("failed to initialize album store: %w", err)
	}
	a.store.OnChange(a.bus.Publish)

	client := flickr.NewClient(o.Flickr)
	fetcher := flickr.NewImageFetcher(o.Flickr)
	a.engine = syncer.NewEngine(a.store, client, fetcher, a.bus, o.Sync)

	// REST Handlers

	if err = fflags.IfEnabled(fflags.Define("metrics"), func() error {
		metrics := rest.NewMetricsHandler()
		metrics.InitRoutes(a.router)
		return nil
	}); err != nil {
		return nil, fmt.Errorf("failed to initialize metrics: %w", err)
	}

	sse := rest.NewSSEHandler(a.bus)
	sse.InitRoutes(a.router)

	locations := rest.NewLocationsHandler(a.store, a.engine)
	locations.InitRoutes(a.router)

	photos := rest.NewPhotosHandler(a.store)
	photos.InitRoutes(a.router)

	return a, nil
}

func (a *App) Run(ctx context.Context) {
	logger, ctx := logging.SubFrom(ctx, "app")

	var wg sync.WaitGroup
	// the bus must outlive the lifecycle context: cycles still in
	// flight during shutdown publish their terminal events through it
	busCtx, stopBus := context.WithCancel(context.Background())
	wg.Add(1)
	go func() {
		logger, busCtx := logging.SubFrom(logging.Context(busCtx, logging.From(ctx)), "eventbus")
		a.bus.Dispatch(busCtx)
		logger.Info("DONE")
		wg.Done()
	}()
	// the engine must be attached before the first request comes in,
	// and its reconciliation pass publishes through the running bus
	if err := a.engine.Start(ctx); err != nil {
		logger.Error("Sync engine start failed", zap.Error(err))
	}

	server := http.Server{
		Addr:        a.addr,
		Handler:     rest.WithMiddleWares(a.router, "rest"),
		BaseContext: func(l net.Listener) context.Context { return ctx },
	}
	wg.Add(1)
	go func() {
		logger, _ := logging.SubFrom(ctx, "http")
		logger.Info("Starting HTTP server...", zap.String("bindAddr", a.addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server failed", zap.Error(err))
		}
		logger.Info("DONE")
		wg.Done()
	}()

	<-ctx.Done()

	logger.Info("Stopping...")

	ctxShutdown, cancelServerShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelServerShutdown()
	if err := server.Shutdown(ctxShutdown); err != nil {
		logger.Error("Failed to shutdown HTTP server", zap.Error(err))
	}

	// let in-flight populate cycles finish their writes before the bus
	// goes away
	a.engine.Wait()
	stopBus()

	wg.Wait()

	a.shutdownHandlers.Execute(ctx, a)

	logger.Info("Terminated gracefully")
}
