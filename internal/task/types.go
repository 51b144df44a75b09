package task

// State is the lifecycle status of a task.
type State string

const (
	StatePending     State = "pending"
	StateDownloading State = "downloading"
	StateCompleted   State = "completed"
	StatePaused      State = "paused"
	StateCanceled    State = "canceled"
	StateError       State = "error"
)

// IsActive reports whether a task in this state counts against the active cap.
func (s State) IsActive() bool {
	return s == StatePending || s == StateDownloading
}

// Category selects the worker that runs a task.
type Category string

const (
	CategoryVideo Category = "video"
	CategoryAudio Category = "audio"
	CategoryImage Category = "image"
)

// Control is the cooperative signal a worker reads at each checkpoint.
type Control int

const (
	ControlNone Control = iota
	ControlPause
	ControlCancel
)

func (c Control) String() string {
	switch c {
	case ControlPause:
		return "pause"
	case ControlCancel:
		return "cancel"
	default:
		return ""
	}
}

// Request is the immutable descriptor a task is created from.
type Request struct {
	URL      string   `json:"url"`
	Category Category `json:"category"`
	Format   string   `json:"fmt"`
	Quality  string   `json:"quality"`
}

// Status is a point-in-time copy of a task, safe to hand to other goroutines.
type Status struct {
	ID           string   `json:"id"`
	URL          string   `json:"url"`
	Title        *string  `json:"title"`
	Filename     *string  `json:"filename"`
	Status       State    `json:"status"`
	Progress     float64  `json:"progress"`
	Format       *string  `json:"fmt"`
	Quality      *string  `json:"quality"`
	Filepath     *string  `json:"filepath"`
	Message      *string  `json:"message"`
	Speed        *float64 `json:"speed"`
	ETA          *int     `json:"eta"`
	DownloadedAt *string  `json:"downloaded_at"`
	DownloadURL  *string  `json:"download_url"`
}

// TimestampLayout formats completion times on the wire.
const TimestampLayout = "2006-01-02 15:04:05"

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
