package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/MitsuhaFe/Digest-AI/internal/ai"
	"github.com/MitsuhaFe/Digest-AI/internal/app"
	"github.com/MitsuhaFe/Digest-AI/internal/content"
)

const usage = `usage: digest <command> [flags] [args]

commands:
  save <url>...        extract, summarize and store pages
  list                 print saved articles, newest first
  tag <id> <tag>...    replace the tags of an article
  delete <id>          remove an article
  export <id>          write an article as Markdown or PDF
  serve                run the HTTP API for the browser extension
  version              print build information

Run "digest <command> -h" for the flags of a command.
`

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdout)
	stop()
	if err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			log.Error().Err(err).Msg("digest failed")
		}
		os.Exit(exitCode(err))
	}
}

// usageError marks bad invocations and invalid configuration.
type usageError struct {
	err error
}

func (e *usageError) Error() string { return e.err.Error() }
func (e *usageError) Unwrap() error { return e.err }

func usagef(format string, args ...any) error {
	return &usageError{err: fmt.Errorf(format, args...)}
}

// exitCode maps run errors to the process status: 1 for usage and
// configuration problems, 2 when extraction or summarization failed.
func exitCode(err error) int {
	if err == nil || errors.Is(err, flag.ErrHelp) {
		return 0
	}
	var (
		extractErr *content.ExtractionError
		apiErr     *ai.APIRequestError
		parseErr   *ai.ResponseParseError
	)
	if errors.As(err, &extractErr) || errors.As(err, &apiErr) || errors.As(err, &parseErr) {
		return 2
	}
	return 1
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	if len(args) == 0 {
		return usagef("missing command\n\n%s", usage)
	}
	name, rest := args[0], args[1:]
	switch name {
	case "version", "-version", "--version":
		fmt.Fprintf(stdout, "digest %s (commit %s, built %s)\n", app.BuildVersion, app.BuildCommit, app.BuildDate)
		return nil
	case "help", "-h", "--help":
		fmt.Fprint(stdout, usage)
		return nil
	}
	cmd, ok := commands[name]
	if !ok {
		return usagef("unknown command %q\n\n%s", name, usage)
	}

	fs := flag.NewFlagSet("digest "+name, flag.ContinueOnError)
	common := bindCommon(fs)
	local := cmd.flags(fs)
	if err := fs.Parse(rest); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return err
		}
		return &usageError{err: err}
	}
	cfg, err := common.load(fs)
	if err != nil {
		return err
	}
	applyLogLevel(cfg)

	a, err := app.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("init app: %w", err)
	}
	defer a.Close()
	if common.clearCache {
		if err := a.ClearCache(); err != nil {
			return err
		}
	}

	return cmd.run(ctx, &env{
		app:    a,
		args:   fs.Args(),
		flags:  local,
		common: common,
		fs:     fs,
		out:    stdout,
	})
}
