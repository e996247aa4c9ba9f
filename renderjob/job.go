package renderjob

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// JobState is the coarse state of a queued render.
type JobState int

const (
	StatePending JobState = iota
	StateInProgress
	StateCompleted
	StateCancelled
	StateError
)

func (s JobState) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateInProgress:
		return "in_progress"
	case StateCompleted:
		return "completed"
	case StateCancelled:
		return "cancelled"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// MarshalJSON writes the state name.
func (s JobState) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON reads a state name. Unknown names become pending.
func (s *JobState) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	switch str {
	case "in_progress":
		*s = StateInProgress
	case "completed":
		*s = StateCompleted
	case "cancelled":
		*s = StateCancelled
	case "error":
		*s = StateError
	default:
		*s = StatePending
	}
	return nil
}

// MarshalText lets Phase appear by name in JSON.
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText is the inverse of MarshalText.
func (p *Phase) UnmarshalText(b []byte) error {
	for q := PhaseIdle; q <= PhaseFailed; q++ {
		if q.String() == string(b) {
			*p = q
			return nil
		}
	}
	return fmt.Errorf("unknown phase %q", b)
}

// Job is one export request and its outcome.
type Job struct {
	ID       string   `json:"id"`
	Input    string   `json:"input"`
	Spec     Spec     `json:"spec"`
	State    JobState `json:"state"`
	Phase    Phase    `json:"phase"`
	Progress int      `json:"progress"`
	Status   string   `json:"status"`

	Location string `json:"location,omitempty"`
	Width    int    `json:"width,omitempty"`
	Height   int    `json:"height,omitempty"`
	Frames   int    `json:"frames,omitempty"`
	Error    string `json:"error,omitempty"`

	CreatedAt  time.Time `json:"created_at"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	cancel context.CancelFunc
}

// Done reports whether the job reached a final state.
func (j Job) Done() bool {
	return j.State == StateCompleted || j.State == StateCancelled || j.State == StateError
}
