// Command sortpipe is the CLI entrypoint for the spike-sorting pipeline.
//
// The root command runs the full batch: fetch the session sheet, group
// trials into sessions, concatenate recordings, and dispatch the sorter.
// Subcommands cover system diagnostics (check) and standalone Axona
// position extraction (pos).
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ephyslab/sortpipe/internal/axona"
	"github.com/ephyslab/sortpipe/internal/check"
	"github.com/ephyslab/sortpipe/internal/config"
	"github.com/ephyslab/sortpipe/internal/display"
	"github.com/ephyslab/sortpipe/internal/logging"
	"github.com/ephyslab/sortpipe/internal/pipeline"
	"github.com/ephyslab/sortpipe/internal/sheet"
)

// version and commit are injected at build time via -ldflags.
var (
	version = "1.0.0-dev"
	commit  = "unknown"
)

var (
	cfg     = config.DefaultConfig()
	cfgPath string

	// String shadows for the typed enum fields; cast after parsing.
	probeFlag   string
	keyModeFlag string
	colorFlag   string

	force bool
)

var rootCmd = &cobra.Command{
	Use:   "sortpipe",
	Short: "Batch spike-sorting pipeline for NP2 and Axona recordings",
	Long: `sortpipe fetches a session sheet, groups trials into sessions by
animal and date, concatenates the raw recordings of each session into a
single stream, and dispatches the probe-specific spike sorter. Work that
already exists on disk is reused, and one session's failure never stops
the rest of the batch.`,
	Version:       fmt.Sprintf("%s (%s)", version, commit),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return loadConfig(cmd)
	},
	RunE: runPipeline,
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Report sorter toolchain and data root availability",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate(true); err != nil {
			return err
		}
		log, err := logging.New(&cfg)
		if err != nil {
			return err
		}
		defer log.Close()
		check.RunCheck(&cfg, log)
		return nil
	},
}

var posCmd = &cobra.Command{
	Use:   "pos <trial-path>",
	Short: "Extract a .pos tracking file from a raw Axona recording",
	Long: `pos reads <trial-path>.bin and <trial-path>.set and writes
<trial-path>.pos plus a decoded <trial-path>_pos.csv, for trials where
the acquisition software never produced a position file.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return axona.ExtractPos(args[0])
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "sortpipe: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&cfgPath, "config", "c", "", "YAML config file")
	pf.StringVarP(&cfg.RootPath, "root", "r", cfg.RootPath, "recording root directory")
	pf.StringVar(&cfg.SheetURL, "sheet-url", cfg.SheetURL, "CSV export URL of the session sheet")
	pf.StringVar(&probeFlag, "probe", string(cfg.ProbeFilter), "probe type to process")
	pf.StringVar(&keyModeFlag, "key-mode", string(cfg.KeyMode), "session key mode (auto, by-animal-date, by-animal-date-area)")
	pf.StringVar(&cfg.SortingSuffix, "suffix", cfg.SortingSuffix, "sorter output directory suffix")
	pf.BoolVarP(&cfg.Verbose, "verbose", "v", cfg.Verbose, "verbose output, stream sorter stderr")
	pf.StringVar(&colorFlag, "color", string(cfg.ColorMode), "color output (auto, always, never)")
	pf.StringVar(&cfg.LogFile, "log-file", cfg.LogFile, "also write the log to this file")

	f := rootCmd.Flags()
	f.BoolVarP(&cfg.DryRun, "dry-run", "n", cfg.DryRun, "log the plan without writing or sorting")
	f.BoolVar(&cfg.SkipExisting, "skip-existing", cfg.SkipExisting, "reuse artifacts already on disk")
	f.BoolVarP(&force, "force", "f", false, "rebuild everything, ignoring existing artifacts")
	f.BoolVar(&cfg.StrictFingerprint, "strict-fingerprint", cfg.StrictFingerprint, "fail a session on a stale concatenated artifact")

	rootCmd.AddCommand(checkCmd, posCmd)
}

// loadConfig layers the config file under the parsed flags: file values
// apply only where the flag was left at its default.
func loadConfig(cmd *cobra.Command) error {
	cfg.ProbeFilter = config.ProbeType(probeFlag)
	cfg.KeyMode = config.KeyMode(keyModeFlag)
	cfg.ColorMode = config.ColorMode(colorFlag)
	if force {
		cfg.SkipExisting = false
	}

	if cfgPath == "" {
		return nil
	}
	fileCfg := config.DefaultConfig()
	if err := config.LoadFile(cfgPath, &fileCfg); err != nil {
		return err
	}

	flags := cmd.Flags()
	if !flags.Changed("root") {
		cfg.RootPath = fileCfg.RootPath
	}
	if !flags.Changed("sheet-url") {
		cfg.SheetURL = fileCfg.SheetURL
	}
	if !flags.Changed("probe") {
		cfg.ProbeFilter = fileCfg.ProbeFilter
	}
	if !flags.Changed("key-mode") {
		cfg.KeyMode = fileCfg.KeyMode
	}
	if !flags.Changed("suffix") {
		cfg.SortingSuffix = fileCfg.SortingSuffix
	}
	if !flags.Changed("verbose") {
		cfg.Verbose = fileCfg.Verbose
	}
	if !flags.Changed("color") {
		cfg.ColorMode = fileCfg.ColorMode
	}
	if !flags.Changed("log-file") {
		cfg.LogFile = fileCfg.LogFile
	}
	if !flags.Changed("dry-run") {
		cfg.DryRun = fileCfg.DryRun
	}
	if !flags.Changed("skip-existing") && !force {
		cfg.SkipExisting = fileCfg.SkipExisting
	}
	if !flags.Changed("strict-fingerprint") {
		cfg.StrictFingerprint = fileCfg.StrictFingerprint
	}
	cfg.NP2SorterCmd = fileCfg.NP2SorterCmd
	cfg.NP2SorterArgs = fileCfg.NP2SorterArgs
	cfg.AxonaSorterCmd = fileCfg.AxonaSorterCmd
	cfg.AxonaSorterArgs = fileCfg.AxonaSorterArgs
	return nil
}

func runPipeline(cmd *cobra.Command, args []string) error {
	if err := cfg.Validate(false); err != nil {
		return err
	}

	log, err := logging.New(&cfg)
	if err != nil {
		return err
	}
	defer log.Close()

	display.PrintBanner(logging.ColorEnabled(cfg.ColorMode))
	log.Info("=== sortpipe v%s ===", version)

	if !cfg.DryRun {
		if err := check.CheckDeps(&cfg); err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stats, err := pipeline.Run(ctx, &cfg, log, sheet.NewHTTPFetcher())
	if err != nil {
		return err
	}
	if failed := stats.FailedCount(); failed > 0 {
		return fmt.Errorf("%d of %d sessions failed", failed, stats.Total)
	}
	return nil
}
