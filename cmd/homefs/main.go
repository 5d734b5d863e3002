package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"golang.org/x/term"

	"homefs/internal/config"
)

type options struct {
	configPath  string
	logLevel    string
	debug       bool
	logFile     string
	printSchema bool
	printConfig bool
}

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdout io.Writer) error {
	opts, err := parseFlags(args)
	if err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}

	if opts.printSchema {
		_, err := fmt.Fprintln(stdout, config.SchemaJSON())
		return err
	}
	if opts.printConfig {
		_, err := fmt.Fprintln(stdout, config.ExampleConfigJSON())
		return err
	}

	cfg, err := config.LoadConfig(opts.configPath)
	if err != nil {
		return err
	}

	level := cfg.LogLevel
	if opts.logLevel != "" {
		level = opts.logLevel
	}
	if opts.debug {
		level = "debug"
	}
	logger, closer, err := initLogger(level, opts.logFile)
	if err != nil {
		return err
	}
	if closer != nil {
		defer closer.Close()
	}

	for _, w := range cfg.Validate() {
		logger.Warn().Str("field", w.Field).Msg(w.Message)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return serve(ctx, cfg, opts.configPath, logger)
}

func parseFlags(args []string) (options, error) {
	var opts options
	defaultPath, err := config.DefaultConfigPath()
	if err != nil {
		defaultPath = "config.json"
	}

	flagSet := pflag.NewFlagSet("homefs", pflag.ContinueOnError)
	flagSet.StringVarP(&opts.configPath, "config", "c", defaultPath, "path to the JSON config file")
	flagSet.StringVar(&opts.logLevel, "log-level", "", "log level: trace, debug, info, warn, error (overrides config)")
	flagSet.BoolVarP(&opts.debug, "debug", "d", false, "enable debug logging")
	flagSet.StringVar(&opts.logFile, "log-file", "", "write logs to this file instead of stderr")
	flagSet.BoolVar(&opts.printSchema, "print-schema", false, "print the config JSON schema and exit")
	flagSet.BoolVar(&opts.printConfig, "print-example-config", false, "print an example config and exit")

	if err := flagSet.Parse(args); err != nil {
		return opts, err
	}
	if extra := flagSet.Args(); len(extra) > 0 {
		return opts, fmt.Errorf("unexpected argument: %s", extra[0])
	}
	return opts, nil
}

// initLogger writes JSON lines to logFilePath when set. Otherwise it logs to
// stderr, using the console writer when stderr is a terminal.
func initLogger(level, logFilePath string) (zerolog.Logger, io.Closer, error) {
	parsed, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || level == "" {
		parsed = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(parsed)

	var (
		output io.Writer
		closer io.Closer
	)
	switch {
	case logFilePath != "":
		file, err := os.OpenFile(logFilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return zerolog.Nop(), nil, fmt.Errorf("failed to open log file: %w", err)
		}
		output = file
		closer = file
	case term.IsTerminal(int(os.Stderr.Fd())):
		output = zerolog.ConsoleWriter{Out: os.Stderr}
	default:
		output = os.Stderr
	}

	return zerolog.New(output).With().Timestamp().Logger(), closer, nil
}
