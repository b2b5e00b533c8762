package messages

// Status is the detector station's 4-state lifecycle machine (§4.1):
// Created -> Unreliable <-> Reliable, any state -> Deleted (terminal).
type Status int

const (
	Created Status = iota
	Unreliable
	Reliable
	Deleted
)

func (s Status) String() string {
	switch s {
	case Created:
		return "online"
	case Unreliable:
		return "unreliable"
	case Reliable:
		return "reliable"
	case Deleted:
		return "offline"
	default:
		return "invalid"
	}
}

// Reason names why a station transitioned away from Reliable, or why it was
// deleted. A non-empty Reason is appended to the outgoing trigger text after
// the status word (see DetectorTrigger.String).
type Reason string

const (
	ReasonNone                Reason = ""
	ReasonTimeAccuracyExtreme Reason = "time_accuracy_extreme"
	ReasonLocationPrecision   Reason = "location_precision"
	ReasonTimeAccuracy        Reason = "time_accuracy"
	ReasonRateInstability     Reason = "rate_instability"
	ReasonMissedLogInterval   Reason = "missed_log_interval"
)

// DetectorTrigger is the outgoing status-transition record (§6): "username
// station (offline|online|unreliable|reliable) [reason]".
type DetectorTrigger struct {
	UserInfo UserInfo
	Status   Status
	Reason   Reason
}

// DetectorSummary is the periodic per-station statistics record (§6),
// grounded on the original's detector_summary_t (include/messages/detectorsummary.h).
type DetectorSummary struct {
	Hash                  uint64
	UserInfo              UserInfo
	Deadtime              float64
	Active                bool
	MeanEventRate         float64
	StdDevEventRate       float64
	MeanPulseLength       float64
	UbloxCounterProgress  int64
	Incoming              uint64
	Change                bool
	MeanTimeAccuracy      float64
}

// ClusterLog is the state supervisor's periodic cluster-wide statistics
// record (§4.5, §6), grounded on the original's cluster_log_t
// (include/messages/clusterlog.h).
type ClusterLog struct {
	TimeoutMillis     int64
	TimebaseMillis    int64
	UptimeMinutes     int64
	FrequencyIn       float64
	FrequencyOut      float64
	Incoming          uint64
	Outgoing          map[int]uint64 // keyed by coincidence level
	BufferLength      uint64
	TotalDetectors    uint64
	ReliableDetectors uint64
	MaximumN          uint64
	ProcessCPULoad    float32
	SystemCPULoad     float32
	MemoryUsage       float32
}
