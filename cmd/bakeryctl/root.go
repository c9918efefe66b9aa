package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/alicebob/miniredis/v2"
	authclient "github.com/cronos-bakery/authclient"
	"github.com/cronos-bakery/authclient/config"
	"github.com/cronos-bakery/authclient/internal/logging"
	"github.com/cronos-bakery/authclient/notify"
	"github.com/cronos-bakery/authclient/session"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	configFile    string
	baseURL       string
	sessionFile   string
	redisEmbedded bool
	logLevel      string
	pretty        bool
}

// app is built once per invocation by the root PersistentPreRunE.
type app struct {
	cfg    authclient.Config
	log    zerolog.Logger
	client *authclient.Client
	close  []func()
}

func (a *app) shutdown() {
	if a.client != nil {
		_ = a.client.Close()
		a.client = nil
	}
	for i := len(a.close) - 1; i >= 0; i-- {
		a.close[i]()
	}
	a.close = nil
}

// restore resumes the stored session and fails when there is none.
func (a *app) restore(ctx context.Context) error {
	if !a.client.RestoreSession(ctx) {
		return errors.New("not signed in; run bakeryctl login")
	}
	return nil
}

// newRootCmd wires every command to a. The caller owns a.shutdown.
func newRootCmd(a *app) *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "bakeryctl",
		Short:         "bakeryctl manages a bakery admin session",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd, opts)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.configFile, "config", "", "YAML config file")
	flags.StringVar(&opts.baseURL, "base-url", "", "API base URL, overrides the config")
	flags.StringVar(&opts.sessionFile, "session-file", defaultSessionFile(), "where tokens are kept between runs")
	flags.BoolVar(&opts.redisEmbedded, "redis-embedded", false, "keep tokens in an in-process Redis (nothing survives the run)")
	flags.StringVar(&opts.logLevel, "log-level", "", "log level, overrides the config")
	flags.BoolVar(&opts.pretty, "pretty", true, "human-readable logs")

	root.AddCommand(
		newLoginCmd(a),
		newLogoutCmd(a),
		newWhoamiCmd(a),
		newRefreshCmd(a),
		newStatusCmd(a),
		newGetCmd(a),
		newRegisterCmd(a),
		newForgotPasswordCmd(a),
		newResetPasswordCmd(a),
	)
	return root
}

func (a *app) init(cmd *cobra.Command, opts *rootOptions) error {
	cfg, err := config.Load(opts.configFile)
	if err != nil {
		return err
	}
	if opts.baseURL != "" {
		cfg.API.BaseURL = opts.baseURL
	}
	if opts.logLevel != "" {
		cfg.Logging.Level = opts.logLevel
	}
	a.log = logging.New(cfg.Logging.Level, opts.pretty)

	b := authclient.New().WithLogger(a.log)
	switch {
	case opts.redisEmbedded:
		mr, err := miniredis.Run()
		if err != nil {
			return fmt.Errorf("start embedded redis: %w", err)
		}
		rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		a.close = append(a.close, mr.Close, func() { _ = rdb.Close() })
		cfg.Storage.Medium = authclient.MediumRedis
		b = b.WithRedis(rdb)
		a.log.Debug().Str("addr", mr.Addr()).Msg("using embedded redis")
	case cfg.Storage.Medium == authclient.MediumMemory:
		// a memory medium forgets everything between runs
		cfg.Storage.Medium = authclient.MediumFile
		cfg.Storage.FilePath = opts.sessionFile
	case cfg.Storage.Medium == authclient.MediumFile && cfg.Storage.FilePath == "":
		cfg.Storage.FilePath = opts.sessionFile
	}
	if cfg.Storage.Medium == authclient.MediumFile {
		// each run is a new process, so the access token must be durable too
		cfg.Storage.Durability = session.DurabilityPersistent
	}

	for _, w := range cfg.Lint() {
		a.log.Debug().Str("code", w.Code).Msg(w.Message)
	}

	out := cmd.ErrOrStderr()
	client, err := b.
		WithConfig(cfg).
		WithNotifier(notify.Func(func(_ context.Context, n notify.Notification) {
			if n.Field != "" {
				fmt.Fprintf(out, "%s: %s: %s\n", n.Level, n.Field, n.Message)
				return
			}
			fmt.Fprintf(out, "%s: %s\n", n.Level, n.Message)
		})).
		Build()
	if err != nil {
		return err
	}

	a.cfg = cfg
	a.client = client
	return nil
}

func defaultSessionFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".bakeryctl-session.yaml"
	}
	return filepath.Join(dir, "bakeryctl", "session.yaml")
}
