package tasks

import "fmt"

// ProgressUpdate represents a progress event during a sweep.
//
// Used to send real-time updates to the CLI for display.
type ProgressUpdate struct {
	Phase   Phase  // Sweep phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data
}

// Sweep phase enumeration
type Phase int

const (
	PruneStates Phase = iota
	ScanCredentials
	RefreshCredentials
)

func (p Phase) String() string {
	switch p {
	case PruneStates:
		return "prune_states"
	case ScanCredentials:
		return "scan_credentials"
	case RefreshCredentials:
		return "refresh_credentials"
	default:
		return ""
	}
}

func pruneUpdate(removed int64) ProgressUpdate {
	return ProgressUpdate{
		Phase:   PruneStates,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Removed %d expired link states", removed),
		Data:    removed,
	}
}

func scanUpdate(linked, due int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ScanCredentials,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("%d of %d credentials expire soon", due, linked),
	}
}

func refreshedUpdate(step, total int, userID string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   RefreshCredentials,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("Refreshed %s", userID),
		Data:    userID,
	}
}

func refreshFailedUpdate(step, total int, userID string, err error) ProgressUpdate {
	return ProgressUpdate{
		Phase:   RefreshCredentials,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("Refresh failed for %s: %v", userID, err),
		Data:    err,
	}
}
