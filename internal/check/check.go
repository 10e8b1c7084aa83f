// Package check provides system diagnostics (the check subcommand) and
// pre-run validation of the sorter toolchain and the data root.
package check

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/ephyslab/sortpipe/internal/config"
)

// Sentinel errors returned by CheckDeps when a prerequisite is missing.
var (
	ErrSorterNotFound  = errors.New("sorter command not found")
	ErrRootUnreachable = errors.New("data root not reachable")
)

// Logger is the minimal logging interface needed by RunCheck.
// Defined here (rather than importing the logging package) so that check
// remains dependency-light and testable with a mock logger.
type Logger interface {
	Info(string, ...interface{})
	Success(string, ...interface{})
	Warn(string, ...interface{})
	Error(string, ...interface{})
}

// RunCheck runs the interactive check flow: reports the data root, both
// sorter backends, and the configured sheet source. Informational only,
// it does not stop on failure.
func RunCheck(cfg *config.Config, log Logger) {
	log.Info("=== System Check ===")

	checkRoot(cfg.RootPath, log)
	checkSorter("NP2 sorter", cfg.NP2SorterCmd, log)
	checkSorter("Axona sorter", cfg.AxonaSorterCmd, log)
	log.Info("Sheet source: %s", cfg.SheetURL)
	log.Info("Sorting suffix: %q, probe filter: %s", cfg.SortingSuffix, cfg.ProbeFilter)
}

// checkRoot verifies the data root exists and is a directory.
func checkRoot(root string, log Logger) {
	fi, err := os.Stat(root)
	switch {
	case err != nil:
		log.Error("Data root %s: %v", root, err)
	case !fi.IsDir():
		log.Error("Data root %s is not a directory", root)
	default:
		log.Success("Data root: %s", root)
	}
}

// checkSorter verifies the command resolves and logs its version string
// when the tool reports one.
func checkSorter(label, command string, log Logger) {
	path, err := resolveCommand(command)
	if err != nil {
		log.Error("%s %q not found", label, command)
		return
	}
	out, err := exec.Command(path, "--version").Output()
	if err != nil {
		log.Success("%s: %s (version unknown)", label, path)
		return
	}
	version := strings.TrimSpace(string(out))
	if idx := strings.Index(version, "\n"); idx > 0 {
		version = version[:idx]
	}
	log.Success("%s: %s (%s)", label, path, version)
}

// CheckDeps is the pre-run validation: the data root must be a reachable
// directory and the sorter backend for the configured probe filter must
// resolve to an executable. Returns a wrapped sentinel error on failure.
func CheckDeps(cfg *config.Config) error {
	fi, err := os.Stat(cfg.RootPath)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrRootUnreachable, cfg.RootPath, err)
	}
	if !fi.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", ErrRootUnreachable, cfg.RootPath)
	}

	command, _, err := cfg.SorterCommand(cfg.ProbeFilter)
	if err != nil {
		return err
	}
	if _, err := resolveCommand(command); err != nil {
		return fmt.Errorf("%w: %q", ErrSorterNotFound, command)
	}
	return nil
}

// resolveCommand locates a sorter command: path-like values are stat'd
// directly, bare names are looked up on PATH.
func resolveCommand(command string) (string, error) {
	if strings.ContainsRune(command, os.PathSeparator) {
		if _, err := os.Stat(command); err != nil {
			return "", err
		}
		return command, nil
	}
	return exec.LookPath(command)
}
