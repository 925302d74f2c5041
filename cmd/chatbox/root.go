package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/zhouzirui/chatbox/internal/config"
	"github.com/zhouzirui/chatbox/internal/handler/chat"
	"github.com/zhouzirui/chatbox/internal/logging"
	chatmodel "github.com/zhouzirui/chatbox/internal/model/chat"
	"github.com/zhouzirui/chatbox/internal/remote"
	"github.com/zhouzirui/chatbox/internal/service/dispatch"
	"github.com/zhouzirui/chatbox/internal/service/transcript"
)

type flags struct {
	baseURL  string
	logLevel string
	logFile  string
}

// app holds what every subcommand shares once configuration is loaded.
type app struct {
	cfg        *config.Config
	logger     zerolog.Logger
	logCloser  io.Closer
	controller *dispatch.Controller
	client     *remote.Client
}

// annotationApp marks commands that need configuration, logging and a
// controller. cobra's own help and completion commands do not carry it.
const annotationApp = "chatbox.app"

func newRootCommand(a *app) *cobra.Command {
	f := &flags{}

	root := &cobra.Command{
		Use:           "chatbox",
		Short:         "Chat with a generative AI assistant from the terminal or the browser",
		SilenceUsage:  true,
		SilenceErrors: true,
		Annotations:   appAnnotations(),
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if _, ok := cmd.Annotations[annotationApp]; !ok {
				return nil
			}
			// tui owns the terminal, everything else may log to stderr.
			var console io.Writer = os.Stderr
			if cmd.Name() == "tui" || cmd.Name() == "chatbox" {
				console = nil
			}
			return a.init(cmd, f, console)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTUI(cmd.Context(), a)
		},
	}

	root.PersistentFlags().StringVar(&f.baseURL, "base-url", "", "conversational service base URL (overrides CHATBOX_BASE_URL)")
	root.PersistentFlags().StringVar(&f.logLevel, "log-level", "", "log level (overrides LOG_LEVEL)")
	root.PersistentFlags().StringVar(&f.logFile, "log-file", "", "write logs to this file (overrides LOG_FILE)")

	root.AddCommand(
		newTUICommand(a),
		newServeCommand(a),
		newSendCommand(a),
		newUploadCommand(a),
	)
	return root
}

func appAnnotations() map[string]string {
	return map[string]string{annotationApp: "true"}
}

// close flushes and releases the log file. It is safe to call more than once.
func (a *app) close() {
	if a.logCloser == nil {
		return
	}
	if err := a.logCloser.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "close log output: %v\n", err)
	}
	a.logCloser = nil
}

func (a *app) init(cmd *cobra.Command, f *flags, console io.Writer) error {
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return errors.Wrap(err, "load configuration")
	}
	if f.baseURL != "" {
		cfg.Remote.BaseURL = strings.TrimRight(strings.TrimSpace(f.baseURL), "/")
	}
	if f.logLevel != "" {
		cfg.Log.Level = f.logLevel
	}
	if f.logFile != "" {
		cfg.Log.File = f.logFile
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, closer, err := logging.Setup(cfg.Log, console)
	if err != nil {
		return errors.Wrap(err, "set up logging")
	}
	a.cfg, a.logger, a.logCloser = cfg, logger, closer

	if envErr != nil {
		logger.Debug().Err(envErr).Msg("no .env file loaded, using process environment only")
	}

	replier, err := a.newReplier(cmd)
	if err != nil {
		return err
	}

	a.controller = dispatch.New(transcript.NewStore(), replier,
		dispatch.WithLogger(logger),
		dispatch.WithSession(chatmodel.NewSession(cfg.Remote.ChatID)),
	)
	return nil
}

func (a *app) newReplier(cmd *cobra.Command) (dispatch.Replier, error) {
	switch a.cfg.Remote.Transport {
	case config.TransportArk:
		replier, err := remote.NewArkReplier(cmd.Context(), a.cfg.Ark, a.logger)
		if err != nil {
			return nil, errors.Wrap(err, "create ark replier")
		}
		a.logger.Info().Str("model", a.cfg.Ark.Model).Msg("using ark chat model")
		return replier, nil
	default:
		client, err := remote.NewClient(a.cfg.Remote, remote.WithClientLogger(a.logger))
		if err != nil {
			return nil, errors.Wrap(err, "create service client")
		}
		a.client = client
		a.logger.Info().Str("base_url", a.cfg.Remote.BaseURL).Msg("using conversational service")
		return client, nil
	}
}

// uploader returns nil when uploads have no service to go to.
func (a *app) uploader() chat.Uploader {
	if a.client == nil {
		return nil
	}
	return a.client
}
