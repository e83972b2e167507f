// pinboard project main.go
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"bitbucket.org/kleinnic74/pinboard/app"
	"bitbucket.org/kleinnic74/pinboard/flickr"
	"bitbucket.org/kleinnic74/pinboard/logging"
	"bitbucket.org/kleinnic74/pinboard/syncer"
	"github.com/adampresley/configinator"
	"go.uber.org/zap"
)

type Config struct {
	DataDir          string `flag:"data" env:"PINBOARD_DATA" default:"pinboard" description:"Path to the data directory"`
	Port             int    `flag:"port" env:"PINBOARD_PORT" default:"8080" description:"The port to bind the HTTP server to"`
	FlickrAPIKey     string `flag:"apikey" env:"FLICKR_API_KEY" default:"" description:"Flickr API key"`
	FlickrBaseURL    string `flag:"flickrurl" env:"FLICKR_BASE_URL" default:"" description:"Override for the Flickr REST endpoint"`
	ImageBaseURL     string `flag:"imageurl" env:"FLICKR_IMAGE_BASE_URL" default:"" description:"Override for the static image endpoint"`
	SearchRadius     int    `flag:"radius" env:"SEARCH_RADIUS" default:"5" description:"Search radius around a pinned coordinate, in km"`
	PageSize         int    `flag:"pagesize" env:"SEARCH_PAGE_SIZE" default:"30" description:"Number of photos requested per result page"`
	FetchParallelism int    `flag:"parallelism" env:"FETCH_PARALLELISM" default:"3" description:"Maximum concurrent image downloads per populate cycle"`
	OnFetchFailure   string `flag:"onfetchfailure" env:"ON_FETCH_FAILURE" default:"skip" description:"What a failed image download does to the cycle: 'skip' or 'abort'"`
}

func main() {
	config := Config{}
	configinator.Behold(&config)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	logger, ctx := logging.SubFrom(ctx, "main")

	a, err := app.NewApp(ctx, app.Options{
		DataDir: config.DataDir,
		Port:    uint(config.Port),
		Flickr: flickr.Config{
			APIKey:       config.FlickrAPIKey,
			BaseURL:      config.FlickrBaseURL,
			ImageBaseURL: config.ImageBaseURL,
			Radius:       config.SearchRadius,
			PerPage:      config.PageSize,
		},
		Sync: syncer.Config{
			FetchParallelism: config.FetchParallelism,
			OnFetchFailure:   syncer.FailurePolicy(config.OnFetchFailure),
		},
	})
	if err != nil {
		logger.Fatal("Failed to initialize application", zap.Error(err))
	}
	a.Run(ctx)
}
