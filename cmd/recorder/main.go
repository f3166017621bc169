// Command recorder drives one DASH backlog+live recording to completion.
// Argument parsing here is intentionally thin: the full CLI surface (spec
// §6) is out of scope as a standalone collaborator, so this entrypoint
// only covers enough flags to exercise config.Config end to end and calls
// engine.Run with the result.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/qwer-lives/instarec/internal/config"
	"github.com/qwer-lives/instarec/internal/engine"
	"github.com/qwer-lives/instarec/internal/logging"
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		configPath = flag.String("c", "", "path to a YAML config file overlaying the defaults")
		logFile    = flag.String("log-file", "", "path to a file to write logs to")
		verbose    = flag.Bool("v", false, "verbose (debug) logging")
		quiet      = flag.Bool("q", false, "quiet (warnings only) logging")
		noPast     = flag.Bool("no-past", false, "skip the backlog, start with the live stream")
		keep       = flag.Bool("keep-segments", false, "do not delete the staging directory on success")
		proxyURL   = flag.String("proxy", "", "HTTP or SOCKS5 proxy URL")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	args := flag.Args()
	if len(args) >= 1 {
		cfg.MPDURL = args[0]
	}
	if len(args) >= 2 {
		cfg.OutputPath = withDefaultExtension(args[1])
	}
	cfg.LogFile = *logFile
	cfg.Verbose = *verbose
	cfg.Quiet = *quiet
	cfg.NoPast = *noPast
	cfg.KeepSegments = *keep
	cfg.ProxyURL = *proxyURL

	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	if err := logging.Configure(logging.Config{Level: cfg.LogLevel(), FilePath: cfg.LogFile}); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	log := logging.WithComponent("main")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := engine.Run(ctx, cfg); err != nil {
		log.Error().Err(err).Msg("recording ended with an error")
		// For any failure after the workers were set up, engine.Run has
		// already run the finaliser (spec §4.9); an engine error is logged
		// and the process still exits 0.
		return 0
	}
	return 0
}

// withDefaultExtension appends ".mkv" when path has no extension (spec
// §6).
func withDefaultExtension(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		switch path[i] {
		case '.':
			return path
		case '/':
			return path + ".mkv"
		}
	}
	return path + ".mkv"
}
