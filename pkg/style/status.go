package style

import (
	"github.com/pterm/pterm"
)

// Status groups change actions by how they should look
type Status string

const (
	StatusSuccess Status = "success" // written or removed
	StatusQueue   Status = "queue"   // will be written or removed
	StatusAlert   Status = "alert"   // needs the user's attention
	StatusKept    Status = "kept"    // left as it is
)

// ActionStatus classifies an installer action or diff kind
func ActionStatus(action string, dryRun bool) Status {
	switch action {
	case "create", "update", "delete", "added", "removed", "modified":
		if dryRun {
			return StatusQueue
		}
		return StatusSuccess
	case "conflict", "retain":
		return StatusAlert
	default:
		return StatusKept
	}
}

// StatusStyle returns the appropriate pterm style for a status
func StatusStyle(status Status) *pterm.Style {
	switch status {
	case StatusSuccess:
		return pterm.NewStyle(pterm.FgGreen)
	case StatusQueue:
		return pterm.NewStyle(pterm.FgYellow)
	case StatusAlert:
		return pterm.NewStyle(pterm.FgRed, pterm.Bold)
	default:
		return pterm.NewStyle(pterm.FgGray)
	}
}
