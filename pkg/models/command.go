package models

import (
	"time"
)

type CommandType string

const (
	CommandCloseAll      CommandType = "close_all"
	CommandCloseAtTarget CommandType = "close_at_target"
	CommandReverse       CommandType = "reverse"
)

// PositionCommand is handed to the execution backend; this core never
// places orders itself.
type PositionCommand struct {
	Type          CommandType
	PositionID    string
	Symbol        string
	TargetPercent int // close_at_target only
	CreatedAt     time.Time
}

// CommandResult is the backend's acknowledgement; CommandID is the
// backend-assigned identifier for tracking the command's execution.
type CommandResult struct {
	CommandID string `json:"commandId"`
	Status    string `json:"status"`
	Message   string `json:"message"`
}
