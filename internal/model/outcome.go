package model

// Status is the result tag of a task.
type Status int

const (
	StatusSuccess Status = iota
	StatusSkipped
	StatusFailed
)

// String returns the lower-case name of the status.
func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusSkipped:
		return "skipped"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Outcome is the final result of one task, after all retries.
type Outcome struct {
	Task   Task
	Status Status

	// Bytes is the number of bytes written, for StatusSuccess.
	Bytes int64

	// Reason explains a skip, e.g. "exists".
	Reason string

	// Kind is the error kind of the last failure, for StatusFailed.
	Kind ErrorKind

	// Attempts is the number of downloader calls made for the task.
	Attempts int

	// Err is the last error, for StatusFailed.
	Err error
}

// Success builds a successful outcome.
func Success(t Task, bytes int64, attempts int) Outcome {
	return Outcome{Task: t, Status: StatusSuccess, Bytes: bytes, Attempts: attempts}
}

// Skipped builds a skipped outcome.
func Skipped(t Task, reason string) Outcome {
	return Outcome{Task: t, Status: StatusSkipped, Reason: reason}
}

// Failed builds a failed outcome from the last error.
func Failed(t Task, err error, attempts int) Outcome {
	return Outcome{Task: t, Status: StatusFailed, Kind: KindOf(err), Attempts: attempts, Err: err}
}

// Summary aggregates outcomes of a batch or of a whole run.
type Summary struct {
	Attempted int `json:"attempted"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`

	// Bytes is the total number of bytes written by successful tasks.
	Bytes int64 `json:"bytes"`

	// FailedNames lists the names of failed tasks in the order they were recorded.
	FailedNames []string `json:"failed_names,omitempty"`
}

// Record folds one outcome into the summary.
func (s *Summary) Record(o Outcome) {
	s.Attempted++
	switch o.Status {
	case StatusSuccess:
		s.Succeeded++
		s.Bytes += o.Bytes
	case StatusSkipped:
		s.Skipped++
	case StatusFailed:
		s.Failed++
		s.FailedNames = append(s.FailedNames, o.Task.Name)
	}
}

// Merge adds the counts of other and appends its failed names.
func (s *Summary) Merge(other Summary) {
	s.Attempted += other.Attempted
	s.Succeeded += other.Succeeded
	s.Failed += other.Failed
	s.Skipped += other.Skipped
	s.Bytes += other.Bytes
	s.FailedNames = append(s.FailedNames, other.FailedNames...)
}

// Clone returns a copy that shares no memory with s.
func (s Summary) Clone() Summary {
	c := s
	if s.FailedNames != nil {
		c.FailedNames = append([]string(nil), s.FailedNames...)
	}
	return c
}

// OK reports whether no task failed.
func (s Summary) OK() bool {
	return s.Failed == 0
}
