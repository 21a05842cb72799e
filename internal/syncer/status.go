package syncer

import "time"

type State string

const (
	StateIdle    State = "idle"
	StateRunning State = "running"
	StateDone    State = "done"
	StateFailed  State = "failed"
)

// Status is a progress snapshot of one sync run.
type Status struct {
	State    State      `json:"state"`
	Page     int        `json:"page"`
	Seen     int        `json:"seen"`
	Inserted int        `json:"inserted"`
	Updated  int        `json:"updated"`
	Skipped  int        `json:"skipped"`
	Failed   int        `json:"failed"`
	LastSync *time.Time `json:"lastSync,omitempty"`
	Error    string     `json:"error,omitempty"`
}

// Running reports whether the run has not reached a final state yet.
func (s Status) Running() bool { return s.State == StateRunning }

type Reporter interface {
	Report(Status)
}

type ReporterFunc func(Status)

func (f ReporterFunc) Report(s Status) { f(s) }

// Reporters fans a status out to every reporter in order.
type Reporters []Reporter

func (rs Reporters) Report(s Status) {
	for _, r := range rs {
		if r != nil {
			r.Report(s)
		}
	}
}
