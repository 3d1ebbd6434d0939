package model

// Classification is the state of a relative path across the pristine and
// modified trees.
type Classification int

const (
	Unchanged Classification = iota
	Added
	Deleted
	Modified
)

func (c Classification) String() string {
	switch c {
	case Unchanged:
		return "unchanged"
	case Added:
		return "added"
	case Deleted:
		return "deleted"
	case Modified:
		return "modified"
	default:
		return "unknown"
	}
}

// Action is what make mode does to a patch artifact.
type Action string

const (
	ActionNone   Action = "none"
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionKeep   Action = "unchanged"
	ActionRemove Action = "remove"
)

// PathChange records the outcome of reconciling one relative path.
type PathChange struct {
	Path           string
	Classification Classification
	Action         Action
}

// MakeReport holds the results of a make-mode run.
type MakeReport struct {
	Changes []PathChange
	// Kept maps every relative path of the run to whether its artifact
	// was kept. Paths absent from the map were not seen in either tree.
	Kept map[string]bool
	// Pruned lists artifacts removed because their path left both trees.
	Pruned []string
	// RemovedDirs lists patch-store directories removed once empty.
	RemovedDirs []string
}

// Count returns the number of changes with the given action.
func (r *MakeReport) Count(action Action) int {
	n := 0
	for _, c := range r.Changes {
		if c.Action == action {
			n++
		}
	}
	return n
}

// PatchOutcome is the result of applying one patch artifact.
type PatchOutcome struct {
	Path          string
	Target        string
	HunksApplied  int
	HunksRejected int
	// Malformed is set when the artifact could not be parsed at all.
	Malformed bool
	// Conflict names why a file patch failed as a whole, if one did.
	Conflict   string
	RejectPath string
	Deleted    bool
	Created    bool
}

// Clean reports whether the artifact applied without leftover hunks.
func (o PatchOutcome) Clean() bool {
	return !o.Malformed && o.HunksRejected == 0 && o.Conflict == ""
}

// ApplyReport holds the results of an apply-mode run.
type ApplyReport struct {
	Outcomes  []PatchOutcome
	RejectDir string
}

// Failed reports whether any artifact left rejected hunks.
func (r *ApplyReport) Failed() bool {
	for _, o := range r.Outcomes {
		if !o.Clean() {
			return true
		}
	}
	return false
}

// Rejected returns the outcomes that left reject artifacts.
func (r *ApplyReport) Rejected() []PatchOutcome {
	var out []PatchOutcome
	for _, o := range r.Outcomes {
		if !o.Clean() {
			out = append(out, o)
		}
	}
	return out
}

// Summary holds the results of an operation for display.
type Summary struct {
	Created  []string
	Modified []string
	Removed  []string
	Failed   []string
	Message  string
	// RejectDir is set when Failed is non-empty after an apply run.
	RejectDir string
}
