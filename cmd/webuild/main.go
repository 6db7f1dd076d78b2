package main

import (
	"context"
	"flag"
	"net"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"webuild/internal/capture"
	"webuild/internal/config"
	"webuild/internal/countdown"
	"webuild/internal/events"
	"webuild/internal/ics"
	appLog "webuild/internal/log"
	"webuild/internal/podcast"
	"webuild/internal/repos"
	"webuild/internal/scheduler"
	"webuild/internal/web"
)

const version = "0.1.0"

// flagConfig holds CLI flag values.
type flagConfig struct {
	configPath string
	listen     string
	once       bool
}

func main() {
	appLog.Info("webuild starting", "version", version)

	flags := parseFlags()

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}

	// CLI --listen overrides config file and PORT.
	if flags.listen != "" {
		conf.Listen = flags.listen
	}
	appLog.SetLevel(appLog.ParseLevel(conf.LogLevel))

	appLog.Info("effective config",
		"listen", conf.Listen,
		"domain", conf.Domain,
		"city", conf.City,
		"timezone_offset", conf.TimezoneOffset,
		"refresh", conf.RefreshCron,
		"ics_count", len(conf.Events.Sources),
		"repos_location", conf.Repos.Location,
		"preview", conf.PreviewPath != "",
		"once", flags.once,
	)
	if conf.APISecret == "" {
		appLog.Warn("no API secret configured; update endpoints are disabled")
	}

	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	eventsSvc := events.NewService(conf, ics.NewFetcher(nil))
	reposSvc := repos.NewService(conf, repos.NewClient(conf.Repos.APIURL, conf.Repos.Token, nil))
	podcastClient := podcast.NewClient(conf.PodcastAPIURL, nil)
	countdownSvc := countdown.NewService(conf, podcastClient)

	sched, err := scheduler.New(conf.RefreshCron,
		scheduler.Job{Name: "events", Run: eventsSvc.Refresh},
		scheduler.Job{Name: "repos", Run: reposSvc.Refresh},
		scheduler.Job{Name: "countdown", Run: countdownSvc.Update},
	)
	if err != nil {
		appLog.Error("failed to create scheduler", err)
		os.Exit(1)
	}

	if flags.once {
		if err := sched.RunNow(ctx); err != nil {
			os.Exit(1)
		}
		appLog.Info("refresh complete",
			"events", len(eventsSvc.Feed().Events),
			"repos", len(reposSvc.Feed().Repos),
		)
		return
	}

	preview := previewCapturer(conf)
	sched.After(preview)

	srv := web.NewServer(ctx, conf, web.Deps{
		Events:       eventsSvc,
		Repos:        reposSvc,
		Countdown:    countdownSvc,
		Podcast:      podcastClient,
		AfterRefresh: preview,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.ListenAndServe(gctx, conf.Listen)
	})
	g.Go(func() error {
		// Initial refresh; failures are logged and the feeds stay empty
		// until the next tick or update call.
		_ = sched.RunNow(gctx)
		return nil
	})
	g.Go(func() error {
		if err := sched.Start(gctx); err != nil {
			return err
		}
		<-gctx.Done()
		sched.Stop()
		return nil
	})

	if err := g.Wait(); err != nil {
		appLog.Error("webuild stopped with error", err)
		os.Exit(1)
	}
	appLog.Info("webuild exiting")
}

// previewCapturer returns the hook that re-captures the homepage after a
// refresh, or nil when no preview path is configured.
func previewCapturer(conf *config.Config) func(ctx context.Context) {
	if conf.PreviewPath == "" {
		return nil
	}
	url := "http://" + localAddr(conf.Listen) + "/"
	return func(ctx context.Context) {
		err := capture.CaptureHomepagePNG(ctx, capture.Options{
			URL:        url,
			OutputPath: conf.PreviewPath,
		})
		if err != nil {
			appLog.Error("homepage capture failed", err, "url", url)
			return
		}
		appLog.Info("homepage captured", "path", conf.PreviewPath)
	}
}

// localAddr turns a listen address into one the local browser can dial.
func localAddr(listen string) string {
	host, port, err := net.SplitHostPort(listen)
	if err != nil {
		return listen
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return net.JoinHostPort(host, port)
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "config.yaml", "Path to config file")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.BoolVar(&cfg.once, "once", false, "Refresh every feed once and exit")

	flag.Parse()

	return cfg
}
