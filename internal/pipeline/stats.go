package pipeline

// Stage names the pipeline step a session failed in.
type Stage string

const (
	StageResolve  Stage = "resolve"
	StageConcat   Stage = "concat"
	StageSort     Stage = "sort"
	StageManifest Stage = "manifest"
)

// SessionFailure records one failed session for the end-of-run summary.
type SessionFailure struct {
	Session string
	Stage   Stage
	Err     error
}

// RunStats tracks aggregate counters across a batch run. A session counts
// as Sorted when it reached the end of its processing, whether or not the
// artifact or the sorting result came from a previous run.
type RunStats struct {
	Total         int
	Current       int
	Sorted        int
	ConcatSkipped int // Existing artifacts reused.
	SortLoaded    int // Existing sorting results reused.
	BytesWritten  int64
	Failures      []SessionFailure
}

// FailedCount is the number of sessions that did not complete.
func (s *RunStats) FailedCount() int {
	return len(s.Failures)
}
