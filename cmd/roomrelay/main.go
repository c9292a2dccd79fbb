package main

import (
	"flag"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/roomrelay/roomrelay/internal/config"
	"github.com/roomrelay/roomrelay/internal/session"
	"github.com/roomrelay/roomrelay/internal/tui/app"
	"github.com/roomrelay/roomrelay/internal/wsrelay"
)

func main() {
	configPath := flag.String("config", "", "Path to config file")
	wsURL := flag.String("url", "", "Override relay websocket URL")
	user := flag.String("user", "", "Override player name")
	logPath := flag.String("log", "roomrelay.log", "Log file (the terminal is taken by the UI)")
	debug := flag.Bool("debug", false, "Debug logging")
	flag.Parse()

	if err := run(*configPath, *wsURL, *user, *logPath, *debug); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, wsURL, user, logPath string, debug bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if wsURL != "" {
		cfg.Relay.URL = wsURL
	}
	if user != "" {
		cfg.Demo.UserName = user
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	log, err := newLogger(logPath, debug)
	if err != nil {
		return err
	}
	defer log.Sync()

	inbox := app.NewInbox()
	transport := wsrelay.New(cfg.WSRelay(), log.Named("wsrelay"))
	sess, err := session.New(transport, cfg.App.ID, cfg.App.Version,
		session.WithLogger(log.Named("session")),
		session.WithMasterPolicy(cfg.MasterPolicy()),
		session.WithHandlers(inbox.Handlers()),
	)
	if err != nil {
		return err
	}

	m := app.New(sess, inbox, app.Options{
		UserName:   cfg.Demo.UserName,
		RoomName:   cfg.Demo.RoomName,
		MaxPlayers: cfg.Demo.MaxPlayers,
	})
	p := tea.NewProgram(m, tea.WithAltScreen())
	_, err = p.Run()
	return err
}

func newLogger(path string, debug bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if debug {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.OutputPaths = []string{path}
	cfg.ErrorOutputPaths = []string{path}
	return cfg.Build()
}
