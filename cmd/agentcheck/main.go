package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/automaxprocs/maxprocs"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/kagent-dev/agentcheck/internal/cli"
	"github.com/kagent-dev/agentcheck/internal/config"
	"github.com/kagent-dev/agentcheck/internal/metrics"
	"github.com/kagent-dev/agentcheck/pkg/validate"
)

func setupLogger(logLevel string) (logr.Logger, *zap.Logger) {
	var zapLevel zapcore.Level
	switch strings.ToLower(logLevel) {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "info":
		zapLevel = zapcore.InfoLevel
	case "warn", "warning":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	zapConfig := zap.NewProductionConfig()
	zapConfig.Level = zap.NewAtomicLevelAt(zapLevel)
	zapConfig.EncoderConfig.TimeKey = "timestamp"
	zapConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	zapLogger, err := zapConfig.Build()
	if err != nil {
		devConfig := zap.NewDevelopmentConfig()
		devConfig.Level = zap.NewAtomicLevelAt(zapLevel)
		zapLogger, _ = devConfig.Build()
	}
	return zapr.NewLogger(zapLogger), zapLogger
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var (
		cfg         = &config.Config{}
		configFile  string
		m           = metrics.New()
		zapLogger   *zap.Logger
		showSpinner bool
	)

	rootCmd := &cobra.Command{
		Use:           "agentcheck",
		Short:         "agentcheck invokes and validates agents over the A2A and API-server protocols",
		Long:          `agentcheck invokes and validates agents over the A2A and API-server protocols`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := config.Init(configFile); err != nil {
				return fmt.Errorf("error initializing config: %w", err)
			}
			loaded, err := config.Get()
			if err != nil {
				return err
			}
			*cfg = *loaded

			var logger logr.Logger
			logger, zapLogger = setupLogger(cfg.LogLevel)
			if _, err := maxprocs.Set(maxprocs.Logger(func(format string, args ...any) {
				logger.V(1).Info(fmt.Sprintf(format, args...))
			})); err != nil {
				logger.Error(err, "Failed to set GOMAXPROCS")
			}
			showSpinner = !cfg.Verbose && cfg.OutputFormat != string(cli.OutputFormatJSON)
			cmd.SetContext(logr.NewContext(cmd.Context(), logger))
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if cfg.MetricsFile != "" {
				return m.WriteTextfile(cfg.MetricsFile)
			}
			return nil
		},
	}

	rootCmd.SetGlobalNormalizationFunc(func(f *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configFile, "config", "", "config file (default is $HOME/.agentcheck/config.yaml)")
	flags.String("standalone-url", "http://127.0.0.1:8004", "Standalone (A2A) agent URL")
	flags.String("api-server-url", "http://127.0.0.1:8000", "API server URL")
	flags.String("app", "agents.coordinator", "App name on the API server")
	flags.String("user-id", "", "User id (generated when empty)")
	flags.Duration("timeout", 0, "Per-call timeout (default 30s)")
	flags.String("precedence", "function_response", "Message source when both exist: function_response|model_text")
	flags.StringP("output-format", "o", "table", "Output format (table|json)")
	flags.BoolP("verbose", "v", false, "Verbose output, including raw responses")
	flags.String("log-level", "info", "Log level (debug, info, warn, error)")
	flags.String("metrics-file", "", "Write call metrics to this file in Prometheus text format")
	for key, flag := range map[string]string{
		"standalone_url": "standalone-url",
		"api_server_url": "api-server-url",
		"app_name":       "app",
		"user_id":        "user-id",
		"timeout":        "timeout",
		"precedence":     "precedence",
		"output_format":  "output-format",
		"verbose":        "verbose",
		"log_level":      "log-level",
		"metrics_file":   "metrics-file",
	} {
		_ = viper.BindPFlag(key, flags.Lookup(flag))
	}

	var target cli.Target
	addTargetFlags := func(cmd *cobra.Command) {
		cmd.Flags().StringVar(&target.Mode, "mode", config.ModeStandalone, "Protocol: standalone|api-server")
		cmd.Flags().StringVar(&target.URL, "url", "", "Override the agent URL for the selected mode")
		cmd.Flags().BoolVar(&target.Stream, "stream", false, "Use the API server's SSE endpoint")
		cmd.Flags().BoolVar(&target.NoSession, "no-session", false, "Skip API-server session registration (behavior is undefined)")
		_ = cmd.RegisterFlagCompletionFunc("mode", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
			return []string{config.ModeStandalone, config.ModeAPIServer}, cobra.ShellCompDirectiveNoFileComp
		})
	}

	invokeCfg := &cli.InvokeCfg{Config: cfg, Metrics: m}
	invokeCmd := &cobra.Command{
		Use:   "invoke",
		Short: "Send one message to an agent and print the normalized response",
		RunE: func(cmd *cobra.Command, args []string) error {
			invokeCfg.Target = target
			invokeCfg.Spinner = showSpinner
			return cli.InvokeCmd(cmd.Context(), os.Stdout, invokeCfg)
		},
		Example: `agentcheck invoke --mode api-server --message "Read this aloud: hello"`,
	}
	addTargetFlags(invokeCmd)
	invokeCmd.Flags().StringVarP(&invokeCfg.Message, "message", "m", "", "Message")
	invokeCmd.Flags().StringVarP(&invokeCfg.File, "file", "f", "", "File to read the message from (- for stdin)")
	invokeCmd.Flags().StringVarP(&invokeCfg.Session, "session", "s", "", "Session id (generated when empty)")
	invokeCmd.Flags().UintVar(&invokeCfg.Retries, "retries", 0, "Retry transient failures this many times")

	validateCfg := &cli.ValidateCfg{Config: cfg, Metrics: m}
	validateCmd := &cobra.Command{
		Use:   "validate",
		Short: "Drive an agent and check its response against expectations",
		RunE: func(cmd *cobra.Command, args []string) error {
			validateCfg.Target = target
			validateCfg.Spinner = showSpinner
			return cli.ValidateCmd(cmd.Context(), os.Stdout, validateCfg)
		},
		Example: `agentcheck validate --kind sentiment --message "I'm feeling extremely happy today!"`,
	}
	addTargetFlags(validateCmd)
	validateCmd.Flags().StringVarP(&validateCfg.Kind, "kind", "k", validate.KindGeneric, "Built-in expectations: "+strings.Join(validate.Kinds(), "|"))
	validateCmd.Flags().StringVarP(&validateCfg.ExpectationsFile, "expectations", "e", "", "YAML or JSON expectations file (overrides --kind)")
	validateCmd.Flags().StringVarP(&validateCfg.Message, "message", "m", "", "Message")
	validateCmd.Flags().StringVarP(&validateCfg.File, "file", "f", "", "File to read the message from (- for stdin)")
	validateCmd.Flags().UintVar(&validateCfg.Retries, "retries", 0, "Retry transient failures this many times")
	_ = validateCmd.RegisterFlagCompletionFunc("kind", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return validate.Kinds(), cobra.ShellCompDirectiveNoFileComp
	})

	smokeCfg := &cli.SmokeCfg{Config: cfg, Metrics: m}
	smokeCmd := &cobra.Command{
		Use:   "smoke",
		Short: "Call every configured target in parallel and validate the answers",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.SmokeCmd(cmd.Context(), os.Stdout, smokeCfg)
		},
	}
	smokeCmd.Flags().IntVarP(&smokeCfg.Parallel, "parallel", "p", 4, "Maximum concurrent calls")

	sessionCfg := &cli.SessionCfg{Config: cfg}
	sessionCmd := &cobra.Command{
		Use:   "session",
		Short: "Manage API-server sessions",
	}
	sessionCmd.PersistentFlags().StringVar(&sessionCfg.App, "app-name", "", "App name (defaults to --app)")
	sessionCmd.PersistentFlags().StringVarP(&sessionCfg.User, "user", "u", "", "User id")
	sessionCmd.PersistentFlags().StringVarP(&sessionCfg.Session, "session", "s", "", "Session id")
	sessionCmd.AddCommand(
		&cobra.Command{
			Use:   "create",
			Short: "Register a session (idempotent)",
			RunE: func(cmd *cobra.Command, args []string) error {
				return cli.SessionCreateCmd(cmd.Context(), os.Stdout, sessionCfg)
			},
		},
		&cobra.Command{
			Use:   "delete",
			Short: "Delete a session",
			RunE: func(cmd *cobra.Command, args []string) error {
				return cli.SessionDeleteCmd(cmd.Context(), os.Stdout, sessionCfg)
			},
		},
	)

	pingCmd := &cobra.Command{
		Use:   "ping",
		Short: "Probe the standalone agent and the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.PingCmd(cmd.Context(), os.Stdout, &cli.PingCfg{Config: cfg})
		},
	}

	mockCfg := &cli.MockCfg{}
	mockCmd := &cobra.Command{
		Use:   "mock",
		Short: "Serve fake agents for local testing",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.MockCmd(cmd.Context(), mockCfg)
		},
	}
	mockCmd.Flags().StringVar(&mockCfg.StandaloneAddr, "standalone-addr", "127.0.0.1:8004", "Standalone agent listen address (empty to disable)")
	mockCmd.Flags().StringVar(&mockCfg.Kind, "kind", "sentiment", "Standalone agent kind: sentiment|speaker|summarizer")
	mockCmd.Flags().StringVar(&mockCfg.APIServerAddr, "api-server-addr", "127.0.0.1:8000", "API server listen address (empty to disable)")
	mockCmd.Flags().StringSliceVar(&mockCfg.Apps, "apps", []string{"agents.coordinator"}, "Apps the API server fronts")
	mockCmd.Flags().BoolVar(&mockCfg.Lenient, "lenient", false, "Accept runs against unregistered sessions")

	rulesCmd := &cobra.Command{
		Use:   "rules",
		Short: "List extraction rules and built-in expectation kinds",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.RulesCmd(os.Stdout, cfg)
		},
	}

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print the agentcheck version",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.VersionCmd(os.Stdout, cfg)
		},
	}

	rootCmd.AddCommand(invokeCmd, validateCmd, smokeCmd, sessionCmd, pingCmd, mockCmd, rulesCmd, versionCmd)

	err := rootCmd.ExecuteContext(ctx)
	if zapLogger != nil {
		_ = zapLogger.Sync()
	}
	if err != nil {
		if !errors.Is(err, cli.ErrValidationFailed) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}
