package model

// Result is the outcome of applying a ref update, locally or as a whole
type Result uint8

// Outcomes of a ref update
const (
	NotAttempted Result = iota
	New
	Forced
	FastForward
	NoChange
	Renamed
	// OK is the outcome reported for a successful command within a batch
	OK
	LockFailure
	IOFailure
	Rejected
	RejectedCurrentBranch
	RejectedMissingObject
	RejectedOtherReason
)

var resultNames = map[Result]string{
	NotAttempted:          "NOT_ATTEMPTED",
	New:                   "NEW",
	Forced:                "FORCED",
	FastForward:           "FAST_FORWARD",
	NoChange:              "NO_CHANGE",
	Renamed:               "RENAMED",
	OK:                    "OK",
	LockFailure:           "LOCK_FAILURE",
	IOFailure:             "IO_FAILURE",
	Rejected:              "REJECTED",
	RejectedCurrentBranch: "REJECTED_CURRENT_BRANCH",
	RejectedMissingObject: "REJECTED_MISSING_OBJECT",
	RejectedOtherReason:   "REJECTED_OTHER_REASON",
}

func (r Result) String() string {
	if name, ok := resultNames[r]; ok {
		return name
	}
	return "UNKNOWN"
}

// IsSuccessful tells if this outcome means the ref has been applied
func (r Result) IsSuccessful() bool {
	switch r {
	case New, Forced, FastForward, NoChange, Renamed, OK:
		return true
	default:
		return false
	}
}
