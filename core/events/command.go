package events

import "time"

// CommandEvent is published after the commands of a step were applied.
type CommandEvent struct {
	RunID     string
	Step      int
	CommandsW map[string]float64
	Time      time.Time
}
