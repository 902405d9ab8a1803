// stickermirror mirrors the sticker assets listed in local manifests and
// bundles the result into a single zip archive.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/kilimcininkoroglu/stickermirror/internal/config"
	"github.com/kilimcininkoroglu/stickermirror/internal/hooks"
	"github.com/kilimcininkoroglu/stickermirror/internal/logging"
	"github.com/kilimcininkoroglu/stickermirror/internal/metrics"
	"github.com/kilimcininkoroglu/stickermirror/internal/mirror"
	"github.com/kilimcininkoroglu/stickermirror/internal/protocol"
	"github.com/kilimcininkoroglu/stickermirror/internal/tui"
	"github.com/kilimcininkoroglu/stickermirror/internal/ui"
	"github.com/kilimcininkoroglu/stickermirror/internal/version"
)

// Exit codes
const (
	ExitSuccess      = 0
	ExitGeneralError = 1
	ExitConfigError  = 2
	ExitArchiveError = 3
)

// CLIConfig holds command line flags
type CLIConfig struct {
	ConfigFile  string
	InitConfig  bool
	Progress    string
	Quiet       bool
	Verbose     bool
	ShowVersion bool
	ShowHelp    bool
}

func main() {
	os.Exit(run(parseFlags(), os.Stdout, os.Stderr))
}

func parseFlags() CLIConfig {
	cfg := CLIConfig{}

	flag.StringVar(&cfg.ConfigFile, "config", "", "Use custom config file")
	flag.BoolVar(&cfg.InitConfig, "init-config", false, "Generate default config file")
	flag.StringVar(&cfg.Progress, "progress", "", "Progress style: auto, line, bar, json, tui, none")
	flag.BoolVar(&cfg.Quiet, "q", false, "Quiet mode (no progress, warnings only)")
	flag.BoolVar(&cfg.Quiet, "quiet", false, "Quiet mode (no progress, warnings only)")
	flag.BoolVar(&cfg.Verbose, "v", false, "Verbose output (debug logging)")
	flag.BoolVar(&cfg.Verbose, "verbose", false, "Verbose output (debug logging)")
	flag.BoolVar(&cfg.ShowVersion, "V", false, "Show version")
	flag.BoolVar(&cfg.ShowVersion, "version", false, "Show version")
	flag.BoolVar(&cfg.ShowHelp, "h", false, "Show help")
	flag.BoolVar(&cfg.ShowHelp, "help", false, "Show help")

	flag.Usage = func() { printUsage(os.Stderr) }
	flag.Parse()

	return cfg
}

func run(cli CLIConfig, stdout, stderr io.Writer) int {
	if cli.ShowVersion {
		fmt.Fprintln(stdout, version.Full())
		return ExitSuccess
	}
	if cli.ShowHelp {
		printUsage(stdout)
		return ExitSuccess
	}
	if cli.InitConfig {
		return initConfig(cli.ConfigFile, stdout, stderr)
	}

	cfg, err := loadConfig(cli)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return ExitConfigError
	}

	style, err := ui.ParseStyle(cfg.Output.Progress)
	if err != nil {
		fmt.Fprintf(stderr, "Error: output.progress: %v\n", err)
		return ExitConfigError
	}
	style = ui.Resolve(style, stdout)

	logOutputs := []string{"stderr"}
	if cfg.Logging.File != "" {
		logOutputs = append(logOutputs, cfg.Logging.File)
	}
	logger, err := logging.New(logging.Options{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		OutputPaths: logOutputs,
	})
	if err != nil {
		fmt.Fprintf(stderr, "Error: logging: %v\n", err)
		return ExitConfigError
	}

	fetcher := buildFetcher(cfg, logger)
	defer fetcher.Close()

	opts := []mirror.Option{
		mirror.WithLogger(logger),
		mirror.WithHooks(buildHooks(cfg.Hooks)),
	}

	if style == ui.StyleTUI {
		runner := tui.NewRunner(cfg.Workers)
		runner.Start()
		defer runner.Stop()
		opts = append(opts, mirror.WithRenderer(runner))
	} else {
		renderer, err := ui.NewRenderer(style, stdout)
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return ExitConfigError
		}
		opts = append(opts, mirror.WithRenderer(renderer))
	}

	if cfg.Metrics.Addr != "" {
		mt := metrics.New()
		srv := metrics.NewServer(cfg.Metrics.Addr, mt, logger)
		if err := srv.Start(); err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return ExitConfigError
		}
		defer srv.Stop()
		logger.Info("metrics endpoint listening", "addr", srv.Addr())
		opts = append(opts, mirror.WithMetrics(mt))
	}

	m := mirror.New(mirror.Config{
		InputDir:    cfg.Input.Directory,
		Pattern:     cfg.Input.Pattern,
		OutputDir:   cfg.Output.Directory,
		ArchiveName: cfg.Output.Archive,
		BaseDomain:  cfg.Source.BaseDomain,
		Workers:     cfg.Workers,
	}, fetcher, opts...)

	report, err := m.Run(context.Background())
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		if errors.Is(err, mirror.ErrArchive) {
			return ExitArchiveError
		}
		return ExitGeneralError
	}

	switch style {
	case ui.StyleJSON, ui.StyleNone:
	default:
		fmt.Fprint(stdout, ui.Summary(report, ui.DefaultFailureRows))
	}

	return ExitSuccess
}

// loadConfig applies the config file (explicit or discovered) and then the flags
func loadConfig(cli CLIConfig) (*config.Config, error) {
	var cfg *config.Config
	if cli.ConfigFile != "" {
		cfg = config.DefaultConfig()
		if err := cfg.LoadFile(cli.ConfigFile); err != nil {
			return nil, fmt.Errorf("loading config from %s: %w", cli.ConfigFile, err)
		}
	} else {
		var err error
		if cfg, err = config.Load(); err != nil {
			return nil, err
		}
	}

	if cli.Progress != "" {
		cfg.Output.Progress = cli.Progress
	}
	if cli.Verbose {
		cfg.Logging.Level = "debug"
	}
	if cli.Quiet {
		cfg.Output.Progress = string(ui.StyleNone)
		cfg.Logging.Level = "warn"
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func buildFetcher(cfg *config.Config, logger *slog.Logger) *protocol.Mux {
	src := cfg.Source

	var creds protocol.CredentialFunc
	if src.Netrc {
		if n, err := config.LoadNetrc(); err != nil {
			logger.Warn("netrc unavailable", "error", err)
		} else {
			creds = n.Lookup
		}
	}

	mux := protocol.NewMux()
	if src.HTTP3 {
		mux.Register(protocol.NewHTTP3Client(
			protocol.WithHTTP3Timeout(src.Timeout),
			protocol.WithHTTP3UserAgent(src.UserAgent),
			protocol.WithHTTP3Referer(src.Referer),
			protocol.WithHTTP3InsecureSkipVerify(src.InsecureSkipVerify),
		))
	}
	mux.Register(protocol.NewHTTPClient(
		protocol.WithTimeout(src.Timeout),
		protocol.WithUserAgent(src.UserAgent),
		protocol.WithReferer(src.Referer),
		protocol.WithProxy(src.Proxy),
		protocol.WithInsecureSkipVerify(src.InsecureSkipVerify),
		protocol.WithMaxConnsPerHost(cfg.Workers),
	))

	ftpOpts := []protocol.FTPClientOption{
		protocol.WithFTPTimeout(src.Timeout),
		protocol.WithFTPSkipTLSVerify(src.InsecureSkipVerify),
	}
	sftpOpts := []protocol.SFTPClientOption{
		protocol.WithSFTPTimeout(src.Timeout),
		protocol.WithSFTPInsecure(src.InsecureSkipVerify),
	}
	if creds != nil {
		ftpOpts = append(ftpOpts, protocol.WithFTPCredentials(creds))
		sftpOpts = append(sftpOpts, protocol.WithSFTPCredentials(creds))
	}
	if src.SSHKey != "" {
		sftpOpts = append(sftpOpts, protocol.WithSFTPPrivateKey(src.SSHKey))
	}
	if src.KnownHosts != "" {
		sftpOpts = append(sftpOpts, protocol.WithSFTPKnownHosts(src.KnownHosts))
	}
	mux.Register(protocol.NewFTPClient(ftpOpts...))
	mux.Register(protocol.NewSFTPClient(sftpOpts...))

	return mux
}

func buildHooks(cfg config.HooksConfig) *hooks.Manager {
	hm := hooks.NewManager()
	if cfg.OnComplete != "" {
		hm.AddCommand(cfg.OnComplete, hooks.EventComplete)
	}
	if cfg.OnError != "" {
		hm.AddCommand(cfg.OnError, hooks.EventError)
	}
	if cfg.Webhook != "" {
		hm.AddWebhook(cfg.Webhook, hooks.EventComplete, hooks.EventError)
	}
	return hm
}

func initConfig(path string, stdout, stderr io.Writer) int {
	if path == "" {
		var err error
		if path, err = config.GetDefaultConfigPath(); err != nil {
			fmt.Fprintf(stderr, "Error: Cannot determine config path: %v\n", err)
			return ExitGeneralError
		}
	}

	if _, err := os.Stat(path); err == nil {
		fmt.Fprintf(stderr, "Config file already exists: %s\n", path)
		fmt.Fprintf(stderr, "Use -config to specify a different file.\n")
		return ExitGeneralError
	}

	if err := writeDefaultConfig(path); err != nil {
		fmt.Fprintf(stderr, "Error: Failed to save config: %v\n", err)
		return ExitGeneralError
	}

	fmt.Fprintf(stdout, "Created default config file: %s\n", path)
	return ExitSuccess
}

func writeDefaultConfig(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(config.GenerateDefaultConfig()), 0o644)
}

func printUsage(w io.Writer) {
	fmt.Fprintf(w, `%s

Usage:
  stickermirror [OPTIONS]

Reads element/e1.json, element/e2.json, ... in order, downloads every
referenced asset into Fotor_Mirror_Data/ (files already present are
skipped) and writes Fotor_Assets_Full.zip.

Options:
      -config FILE       Use custom config file
      -init-config       Generate default config file (at -config FILE if given)
      -progress STYLE    Progress display: auto, line, bar, json, tui, none (default: line)
  -q, -quiet             Quiet mode (no progress output)
  -v, -verbose           Verbose output (debug logging)
  -h, -help              Show this help message
  -V, -version           Show version information

Exit codes:
  0  success, including runs where some downloads failed
  1  general error (lock held, output directory unavailable)
  2  configuration error
  3  archive error
`, version.Short())
}
