package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"
	"voice-agent-go/internal/logger"
	"voice-agent-go/internal/mockapi"
	"voice-agent-go/internal/seed"
)

type Options struct {
	Port        string `long:"port" env:"PORT" default:"3000" description:"listen port"`
	Seed        string `long:"seed" env:"SEED_PATH" description:"xlsx workbook with knowledge entries and an optional help_requests sheet"`
	DemoSeed    bool   `long:"demo" env:"DEMO_SEED" description:"also seed one help request in each state"`
	AutoTimeout bool   `long:"auto-timeout" env:"AUTO_TIMEOUT" description:"time out stale help requests every minute"`
}

func main() {
	_ = godotenv.Load() // loads .env

	log := logger.New()

	opts := &Options{}
	if _, err := flags.NewParser(opts, flags.HelpFlag|flags.PassDoubleDash).Parse(); err != nil {
		var ferr *flags.Error
		if errors.As(err, &ferr) && ferr.Type == flags.ErrHelp {
			os.Stdout.WriteString(err.Error() + "\n")
			os.Exit(0)
		}
		log.WithError(err).Fatal("invalid arguments")
	}
	log.WithField("service", "voice-agent-mockapi").Info("starting service")

	store := mockapi.NewStore(nil)
	if err := seedStore(store, opts, log); err != nil {
		log.WithError(err).Fatal("failed to seed store")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if opts.AutoTimeout {
		go timeoutLoop(ctx, store, log)
	}

	addr := ":" + opts.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      mockapi.NewServer(store, log).Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.WithField("addr", addr).WithField("base_path", mockapi.Prefix).Info("listening")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.WithError(err).Fatal("server terminated")
	}
}

func seedStore(store *mockapi.Store, opts *Options, log *logger.Logger) error {
	if opts.Seed == "" {
		store.Seed(seed.DefaultKnowledge(), nil)
		log.WithField("entries", len(seed.DefaultKnowledge())).Info("seeded default knowledge")
	} else {
		knowledge, err := seed.LoadKnowledge(opts.Seed, log)
		if err != nil {
			return err
		}
		requests, err := seed.LoadHelpRequests(opts.Seed, log)
		if err != nil {
			return err
		}
		store.Seed(knowledge, requests)
	}
	if opts.DemoSeed {
		store.Seed(nil, seed.DefaultHelpRequests(time.Now()))
	}
	return nil
}

func timeoutLoop(ctx context.Context, store *mockapi.Store, log *logger.Logger) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if ids := store.TimeoutPending(mockapi.PendingTimeout); len(ids) > 0 {
				log.WithField("count", len(ids)).Info("timed out stale help requests")
			}
		}
	}
}
