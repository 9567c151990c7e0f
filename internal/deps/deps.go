package deps

import (
	"fmt"
	"os/exec"
	"strings"
)

// Requirement names an external executable and what it is for.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status is a Requirement after PATH resolution.
type Status struct {
	Requirement
	Available bool
	Path      string
	Detail    string
}

// CheckBinaries resolves each requirement on PATH.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, len(requirements))
	for i, req := range requirements {
		results[i] = resolve(req)
	}
	return results
}

func resolve(req Requirement) Status {
	req.Command = strings.TrimSpace(req.Command)
	req.Description = strings.TrimSpace(req.Description)
	st := Status{Requirement: req}
	switch path, err := exec.LookPath(req.Command); {
	case req.Command == "":
		st.Detail = "command not configured"
	case err != nil:
		st.Detail = fmt.Sprintf("binary %q not found", req.Command)
	default:
		st.Available, st.Path = true, path
	}
	return st
}

// Missing filters statuses down to unavailable, non-optional requirements.
func Missing(statuses []Status) []Status {
	var out []Status
	for _, st := range statuses {
		if st.Optional || st.Available {
			continue
		}
		out = append(out, st)
	}
	return out
}
