package server

// Status is the lifecycle state of a Server. States only move forward, in
// declaration order.
type Status int32

const (
	StatusNotStarted Status = iota
	StatusStarting
	StatusStarted
	StatusEnding
	StatusEnded
)

func (s Status) String() string {
	switch s {
	case StatusNotStarted:
		return "not-started"
	case StatusStarting:
		return "starting"
	case StatusStarted:
		return "started"
	case StatusEnding:
		return "ending"
	case StatusEnded:
		return "ended"
	default:
		return "unknown"
	}
}
