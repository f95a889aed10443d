package injection

// State is the lifecycle state an injection pipeline reports about itself.
type State int

const (
	// Unknown means no pipeline exists for the device.
	Unknown State = iota - 1
	// Starting means the pipeline was told to start but has not grabbed
	// its devices yet.
	Starting
	// Running means events are being read and forwarded.
	Running
	// Stopped means the pipeline was stopped or failed.
	Stopped
)

func (s State) String() string {
	switch s {
	case Starting:
		return "starting"
	case Running:
		return "running"
	case Stopped:
		return "stopped"
	default:
		return "unknown"
	}
}
