package sim

import "time"

// EventType Tick 产出的事件类型
type EventType string

const (
	EventPhaseChange EventType = "phase_change"
	EventGoal        EventType = "goal"
	EventKick        EventType = "kick"
)

// Score 比分
type Score struct {
	Home int `json:"home"`
	Away int `json:"away"`
}

func (s *Score) add(t Team) {
	switch t {
	case TeamHome:
		s.Home++
	case TeamAway:
		s.Away++
	}
}

// Event 由传输层负责广播；核心不持有任何连接
type Event struct {
	Type     EventType
	Phase    Phase
	Deadline time.Time
	Turn     int
	Team     Team
	PlayerID string
	Score    Score
}
