package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/vovakirdan/wirechat-rooms/internal/chat"
	"github.com/vovakirdan/wirechat-rooms/internal/config"
	"github.com/vovakirdan/wirechat-rooms/internal/log"
	"github.com/vovakirdan/wirechat-rooms/internal/remote"
)

type options struct {
	configPath  string
	serverURL   string
	logFile     string
	logLevel    string
	username    string
	password    string
	displayName string
	register    bool
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use:          "wirechat",
		Short:        "Terminal client for wirechat rooms",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), opts)
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&opts.configPath, "config", "", "path to config.yaml")
	flags.StringVar(&opts.serverURL, "server", "", "server base URL")
	flags.StringVar(&opts.logFile, "log-file", "", "file receiving client logs")
	flags.StringVar(&opts.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	flags.StringVarP(&opts.username, "user", "u", os.Getenv("WIRECHAT_USER"), "username")
	flags.StringVarP(&opts.password, "password", "p", os.Getenv("WIRECHAT_PASSWORD"), "password")
	flags.StringVar(&opts.displayName, "display-name", "", "display name used with --register")
	flags.BoolVar(&opts.register, "register", false, "create the account before signing in")
	return cmd
}

func run(ctx context.Context, opts options) error {
	// A missing .env is fine; it only supplements the environment.
	_ = godotenv.Load()
	if opts.username == "" {
		opts.username = os.Getenv("WIRECHAT_USER")
	}
	if opts.password == "" {
		opts.password = os.Getenv("WIRECHAT_PASSWORD")
	}
	if opts.username == "" || opts.password == "" {
		return errors.New("--user and --password are required")
	}

	cfg, _, err := config.Load(nil, opts.configPath)
	if err != nil {
		return err
	}
	cfg.UpdateFrom(config.Config{
		LogLevel: opts.logLevel,
		Client:   config.ClientConfig{ServerURL: opts.serverURL, LogFile: opts.logFile},
	})

	logOut, err := os.OpenFile(cfg.Client.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer logOut.Close()
	logger := log.NewWithWriter(cfg.LogLevel, logOut)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := remote.New(cfg.Client.ServerURL, nil, logger)
	if err != nil {
		return err
	}
	if opts.register {
		err = client.Register(ctx, opts.username, opts.password, opts.displayName)
	} else {
		err = client.Login(ctx, opts.username, opts.password)
	}
	if err != nil {
		return err
	}
	self, _ := client.Identity()
	logger.Info().Int64("user_id", self.UserID).Str("server", cfg.Client.ServerURL).Msg("signed in")

	controller := chat.NewController(chat.Deps{
		Directory: client,
		Store:     client,
		Profiles:  client,
		Transport: client,
		Identity:  client,
	}, chat.Options{
		HistoryLimit:  cfg.Client.HistoryLimit,
		TypingTTL:     cfg.Client.TypingTTL,
		FetchTimeout:  cfg.Client.FetchTimeout,
		LookupTimeout: cfg.Client.LookupTimeout,
		SendTimeout:   cfg.Client.SendTimeout,
	}, logger)
	defer func() {
		if err := controller.Teardown(); err != nil {
			logger.Warn().Err(err).Msg("teardown")
		}
	}()

	if err := controller.Start(ctx); err != nil {
		// The UI shows a failed or degraded room; only a missing directory
		// is fatal.
		var transportErr *chat.TransportError
		if errors.As(err, &transportErr) && transportErr.Op == "list rooms" {
			return err
		}
		logger.Warn().Err(err).Msg("initial room activation incomplete")
	}

	program := tea.NewProgram(
		newModel(ctx, controller, self, cfg.Client.TypingThrottle, cfg.Client.SendTimeout),
		tea.WithAltScreen(),
		tea.WithContext(ctx),
	)
	if _, err := program.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return err
	}
	return nil
}
