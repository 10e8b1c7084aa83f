package sorter

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/ephyslab/sortpipe/internal/config"
	"github.com/ephyslab/sortpipe/internal/sheet"
)

// mockLog records formatted lines per level.
type mockLog struct {
	lines []string
}

func (m *mockLog) Info(f string, a ...interface{})    { m.lines = append(m.lines, fmt.Sprintf(f, a...)) }
func (m *mockLog) Success(f string, a ...interface{}) { m.lines = append(m.lines, fmt.Sprintf(f, a...)) }
func (m *mockLog) Warn(f string, a ...interface{})    { m.lines = append(m.lines, fmt.Sprintf(f, a...)) }
func (m *mockLog) Debug(f string, a ...interface{})   { m.lines = append(m.lines, fmt.Sprintf(f, a...)) }

func (m *mockLog) contains(sub string) bool {
	for _, l := range m.lines {
		if strings.Contains(l, sub) {
			return true
		}
	}
	return false
}

// fakeSorterScript writes an executable that records its argv into
// <dest>/invoked.txt and exits with the given code.
func fakeSorterScript(t *testing.T, exitCode int) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script fixture")
	}
	dir := t.TempDir()
	path := filepath.Join(dir, "fakesorter")
	// Finds the value following --results-dir or -out and drops a marker there.
	body := `#!/bin/sh
out=""
prev=""
for a in "$@"; do
  if [ "$prev" = "--results-dir" ] || [ "$prev" = "-out" ]; then out="$a"; fi
  prev="$a"
done
if [ -n "$out" ]; then echo "$@" > "$out/invoked.txt"; fi
`
	if exitCode != 0 {
		body += fmt.Sprintf("echo 'CUDA device not found' >&2\nexit %d\n", exitCode)
	}
	if err := os.WriteFile(path, []byte(body), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func testConfig(cmd string) config.Config {
	cfg := config.DefaultConfig()
	cfg.NP2SorterCmd = cmd
	cfg.AxonaSorterCmd = cmd
	return cfg
}

func TestSort_InvokesBackend(t *testing.T) {
	script := fakeSorterScript(t, 0)
	cfg := testConfig(script)
	log := &mockLog{}

	for _, probe := range []config.ProbeType{config.ProbeNP2, config.ProbeAxona} {
		t.Run(string(probe), func(t *testing.T) {
			dest := filepath.Join(t.TempDir(), "240315_sorted")
			s, err := ForProbe(&cfg, log, probe)
			if err != nil {
				t.Fatalf("ForProbe: %v", err)
			}

			ref, err := s.Sort(context.Background(), Request{
				StreamPath:  "/data/concat.dat",
				SessionName: "240315_r1503",
				DestDir:     dest,
				Suffix:      "sorted",
				Params:      Params{ProbeType: probe, NumChannels: 384},
			})
			if err != nil {
				t.Fatalf("Sort: %v", err)
			}
			if ref.Loaded {
				t.Error("fresh sort reported Loaded")
			}

			argv, err := os.ReadFile(filepath.Join(dest, "invoked.txt"))
			if err != nil {
				t.Fatalf("backend was not invoked: %v", err)
			}
			for _, want := range []string{"/data/concat.dat", "384", "240315_r1503"} {
				if !strings.Contains(string(argv), want) {
					t.Errorf("argv %q missing %q", argv, want)
				}
			}
		})
	}
}

func TestSort_LoadsExistingResult(t *testing.T) {
	script := fakeSorterScript(t, 0)
	cfg := testConfig(script)
	log := &mockLog{}

	dest := filepath.Join(t.TempDir(), "240315_sorted")
	if err := os.MkdirAll(dest, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dest, "spike_times.npy"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	s, err := ForProbe(&cfg, log, config.ProbeNP2)
	if err != nil {
		t.Fatalf("ForProbe: %v", err)
	}
	ref, err := s.Sort(context.Background(), Request{DestDir: dest, SessionName: "240315_r1503"})
	if err != nil {
		t.Fatalf("Sort: %v", err)
	}
	if !ref.Loaded {
		t.Error("existing result not reused")
	}
	if !log.contains("Sorting loaded from file") {
		t.Errorf("missing load log line, got %v", log.lines)
	}
	if _, err := os.Stat(filepath.Join(dest, "invoked.txt")); !os.IsNotExist(err) {
		t.Error("backend was invoked despite existing result")
	}
}

func TestSort_BackendFailure(t *testing.T) {
	script := fakeSorterScript(t, 3)
	cfg := testConfig(script)

	dest := filepath.Join(t.TempDir(), "out")
	s, err := ForProbe(&cfg, &mockLog{}, config.ProbeNP2)
	if err != nil {
		t.Fatalf("ForProbe: %v", err)
	}
	_, err = s.Sort(context.Background(), Request{DestDir: dest, SessionName: "x"})
	if err == nil {
		t.Fatal("Sort succeeded with failing backend")
	}
	var cmdErr *CommandError
	if !errors.As(err, &cmdErr) {
		t.Fatalf("err = %T, want *CommandError", err)
	}
	if !strings.Contains(cmdErr.Stderr, "CUDA device not found") {
		t.Errorf("stderr tail = %q", cmdErr.Stderr)
	}
}

func TestForProbe_Unknown(t *testing.T) {
	cfg := config.DefaultConfig()
	if _, err := ForProbe(&cfg, &mockLog{}, "tetrode32"); err == nil {
		t.Fatal("ForProbe accepted unknown probe type")
	}
}

func TestStderrTail(t *testing.T) {
	var lines []string
	for i := 0; i < 25; i++ {
		lines = append(lines, fmt.Sprintf("line %d", i))
	}
	got := stderrTail(strings.Join(lines, "\n"))
	if strings.Contains(got, "line 14") || !strings.Contains(got, "line 15") || !strings.Contains(got, "line 24") {
		t.Errorf("tail = %q", got)
	}
	if stderrTail("  \n ") != "" {
		t.Error("blank stderr should collapse to empty")
	}
}

func TestWriteManifest(t *testing.T) {
	dir := t.TempDir()
	records := []sheet.TrialRecord{
		{TrialName: "240315_r1503_sleep", RelPath: "r1503/240315", ProbeType: config.ProbeNP2,
			NumChannels: 384, Include: true},
		{TrialName: "240315_r1503_open-field_1", RelPath: "r1503/240315", ProbeType: config.ProbeNP2,
			NumChannels: 384, Include: true, Area: "RS-CA1"},
	}
	if err := WriteManifest(dir, records); err != nil {
		t.Fatalf("WriteManifest: %v", err)
	}

	f, err := os.Open(filepath.Join(dir, ManifestName))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 3 {
		t.Fatalf("got %d rows, want header + 2", len(rows))
	}
	if rows[0][0] != sheet.ColTrialName {
		t.Errorf("header = %v", rows[0])
	}
	if rows[1][0] != "240315_r1503_sleep" || rows[1][4] != "Y" {
		t.Errorf("row 1 = %v", rows[1])
	}
	if rows[2][5] != "RS-CA1" {
		t.Errorf("row 2 = %v", rows[2])
	}
}
