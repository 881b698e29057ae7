package main

import (
	"bufio"
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/jessevdk/go-flags"
	"voice-agent-go/internal/agent"
	"voice-agent-go/internal/agent/scripted"
	"voice-agent-go/internal/calllog"
	"voice-agent-go/internal/config"
	"voice-agent-go/internal/escalation"
	"voice-agent-go/internal/knowledge"
	"voice-agent-go/internal/logger"
	"voice-agent-go/internal/room"
	"voice-agent-go/internal/room/wsroom"
	"voice-agent-go/internal/session"
)

func main() {
	log := logger.New()

	opts := &Options{}
	parser := flags.NewParser(opts, flags.HelpFlag|flags.PassDoubleDash)
	if _, err := parser.Parse(); err != nil {
		var ferr *flags.Error
		if errors.As(err, &ferr) && ferr.Type == flags.ErrHelp {
			os.Stdout.WriteString(err.Error() + "\n")
			os.Exit(0)
		}
		log.WithError(err).Fatal("invalid arguments")
	}

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("failed to load config")
	}
	if err := opts.Apply(&cfg); err != nil {
		log.WithError(err).Fatal("invalid config")
	}
	log.WithField("service", "voice-agent-go").WithField("api", cfg.APIBaseURL).Info("starting agent")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rm, agents, err := setupRoom(ctx, cfg, opts, log)
	if err != nil {
		log.WithError(err).Fatal("failed to set up room")
	}

	orch, err := session.New(cfg, session.Deps{
		Room:       rm,
		Agents:     agents,
		Pipeline:   session.DefaultPipeline(),
		Knowledge:  knowledge.New(cfg, log),
		Escalation: escalation.New(cfg, log),
		CallLog:    calllog.New(cfg, log),
	}, log)
	if err != nil {
		log.WithError(err).Fatal("failed to create session")
	}

	res, err := orch.Run(ctx)
	if err != nil {
		log.WithError(err).Fatal("session failed")
	}
	log.WithField("session_id", res.SessionID).
		WithField("state", res.State.String()).
		WithField("logged", res.Logged).
		WithField("summary", res.Summary).
		Info("session finished")
}

// setupRoom picks the transport: a websocket room when a URL is configured,
// otherwise a console room fed from stdin.
func setupRoom(ctx context.Context, cfg config.Config, opts *Options, log *logger.Logger) (room.Room, agent.Factory, error) {
	if cfg.RoomURL != "" {
		ws, err := wsroom.New(cfg.RoomURL, nil, log)
		if err != nil {
			return nil, nil, err
		}
		return ws, scripted.New(ws.Transcripts(), ws, log), nil
	}

	rm := room.NewMemory(opts.RoomName, opts.Metadata())
	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(os.Stdin)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	build := scripted.New(lines, scripted.WriterSpeaker{W: os.Stdout, Prefix: "agent> "}, log)
	factory := func(o agent.Options) (agent.Agent, error) {
		a, err := build(o)
		if err != nil {
			return nil, err
		}
		// end of input is the caller hanging up
		go func() {
			<-a.(*scripted.Agent).Done()
			rm.Hangup()
		}()
		return a, nil
	}
	log.WithField("room", rm.Name()).Info("console mode: type caller questions, end with Ctrl-D")
	return rm, factory, nil
}
