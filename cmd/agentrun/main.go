// agentrun serves and operates persisted agent runs.
//
// Usage:
//
//	agentrun serve [--config config.yaml]
//	agentrun runs [--status suspended] [--limit 20]
//	agentrun inspect <run-id> | --file state.json
//	agentrun approve --call <id> <run-id>
//	agentrun reject --call <id> --file state.json
//	agentrun health [--addr http://localhost:8080]
//	agentrun version
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/BaSui01/agentrun/config"
)

// Set through ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// errUsage marks command line errors; usage is printed for them.
var errUsage = errors.New("usage error")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdout)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "agentrun: %v\n", err)
		if errors.Is(err, errUsage) {
			printUsage(os.Stderr)
		}
		os.Exit(1)
	}
}

// run dispatches one command line.
func run(ctx context.Context, args []string, stdout io.Writer) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: no command given", errUsage)
	}

	switch args[0] {
	case "serve":
		return runServe(ctx, args[1:])
	case "runs":
		return runList(ctx, args[1:], stdout)
	case "inspect":
		return runInspect(ctx, args[1:], stdout)
	case "approve":
		return runDecide(ctx, args[1:], "approve", stdout)
	case "reject":
		return runDecide(ctx, args[1:], "reject", stdout)
	case "health":
		return runHealthCheck(ctx, args[1:], stdout)
	case "version":
		printVersion(stdout)
		return nil
	case "help", "-h", "--help":
		printUsage(stdout)
		return nil
	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, args[0])
	}
}

func runServe(ctx context.Context, args []string) error {
	fs := newFlagSet("serve")
	configPath := fs.String("config", "", "Path to config file")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}

	logger := initLogger(cfg.Log)
	defer func() { _ = logger.Sync() }()

	logger.Info("starting agentrun",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
		zap.String("git_commit", GitCommit),
	)

	srv, err := NewServer(ctx, cfg, logger)
	if err != nil {
		return err
	}
	if err := srv.Run(ctx); err != nil {
		return err
	}
	logger.Info("agentrun stopped")
	return nil
}

// loadConfig loads the file at path (if any) plus the environment, and
// validates the result.
func loadConfig(path string) (*config.Config, error) {
	loader := config.NewLoader().WithValidator((*config.Config).Validate)
	if path != "" {
		loader = loader.WithConfigPath(path)
	}
	cfg, err := loader.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func printVersion(w io.Writer) {
	fmt.Fprintf(w, "agentrun %s\n", Version)
	fmt.Fprintf(w, "  Build Time: %s\n", BuildTime)
	fmt.Fprintf(w, "  Git Commit: %s\n", GitCommit)
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, `agentrun - agent run service

Usage:
  agentrun <command> [options]

Commands:
  serve     Start the HTTP service
  runs      List stored runs
  inspect   Show the digest of a stored run or a state file
  approve   Approve pending tool calls of a suspended run
  reject    Reject pending tool calls of a suspended run
  health    Check service health
  version   Show version information
  help      Show this help message

Common options:
  --config <path>   Path to configuration file (YAML)
  --file <path>     Operate on a state file instead of the configured store

Examples:
  agentrun serve --config /etc/agentrun/config.yaml
  agentrun runs --status suspended
  agentrun inspect run-42
  agentrun approve --call call_1 run-42
  agentrun reject --call call_1 --file ./state.json
  agentrun health --addr http://localhost:8080`)
}

// initLogger builds the service logger from the log configuration.
func initLogger(cfg config.LogConfig) *zap.Logger {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}

	var encoderConfig zapcore.EncoderConfig
	encoding := "json"
	if cfg.Format == "console" {
		encoding = "console"
		encoderConfig = zap.NewDevelopmentEncoderConfig()
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		encoderConfig = zap.NewProductionEncoderConfig()
		encoderConfig.TimeKey = "timestamp"
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	outputs := cfg.OutputPaths
	if len(outputs) == 0 {
		outputs = []string{"stdout"}
	}

	zapConfig := zap.Config{
		Level:             zap.NewAtomicLevelAt(level),
		Development:       encoding == "console",
		Encoding:          encoding,
		EncoderConfig:     encoderConfig,
		OutputPaths:       outputs,
		ErrorOutputPaths:  []string{"stderr"},
		DisableCaller:     !cfg.EnableCaller,
		DisableStacktrace: !cfg.EnableStacktrace,
	}

	logger, err := zapConfig.Build()
	if err != nil {
		logger, _ = zap.NewProduction()
	}
	return logger
}

// cliLogger is the logger of the operator commands: warnings only, on stderr,
// so stdout stays machine readable.
func cliLogger(cfg config.LogConfig) *zap.Logger {
	cfg.OutputPaths = []string{"stderr"}
	if lvl, err := zapcore.ParseLevel(cfg.Level); err != nil || lvl < zapcore.WarnLevel {
		cfg.Level = "warn"
	}
	return initLogger(cfg)
}
