package sim

import "time"

// Phase 房间阶段
type Phase string

const (
	PhasePlan    Phase = "PLAN"
	PhaseResolve Phase = "RESOLVE"
)

// resolveContext 仅在 RESOLVE 阶段存在：路径游标与本阶段已踢球集合（定长）
type resolveContext struct {
	cursor [MaxEntities]int
	kicked [MaxEntities]bool
	scored bool
}

// advancePhase 检查阶段是否到期；同一 now 重复调用不会重复切换
func (r *Room) advancePhase(now time.Time) (Event, bool) {
	switch r.phase {
	case PhasePlan:
		if !now.Before(r.deadline) || r.plans.bothReady() {
			return r.beginResolve(now), true
		}
	case PhaseResolve:
		if !now.Before(r.deadline) {
			return r.beginPlan(now), true
		}
	}
	return Event{}, false
}

func (r *Room) beginResolve(now time.Time) Event {
	r.phase = PhaseResolve
	r.resolve = &resolveContext{}
	r.deadline = now.Add(r.tuning.ResolveDuration)
	return r.phaseEvent()
}

func (r *Room) beginPlan(now time.Time) Event {
	if r.resolve != nil && r.resolve.scored {
		kickoff(r.field, r.players)
		r.ball = kickoffBall(r.field)
	}
	r.phase = PhasePlan
	r.resolve = nil
	r.plans.reset()
	r.deadline = now.Add(r.tuning.PlanDuration)
	r.turn++
	return r.phaseEvent()
}

func (r *Room) phaseEvent() Event {
	return Event{Type: EventPhaseChange, Phase: r.phase, Deadline: r.deadline, Turn: r.turn, Score: r.score}
}
