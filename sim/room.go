// Package sim 是房间模拟引擎：阶段状态机、计划校验、移动积分、踢球判定与球的物理积分。
// 引擎是纯计算，不做 I/O，不持有连接，也不启动协程；并发与广播由调用方负责。
package sim

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrNotPlanPhase  = errors.New("sim: plan submitted outside PLAN phase")
	ErrNotController = errors.New("sim: submitter does not control a team")
)

// Room 单个房间的权威状态
type Room struct {
	field  Field
	tuning Tuning

	players []*Player      // 按 ID 升序，创建后不再增删
	index   map[string]int // ID -> players 下标
	ball    Ball

	plans       planStore
	controllers [2]string

	phase    Phase
	deadline time.Time
	turn     int
	resolve  *resolveContext
	score    Score
	steps    int64
}

// NewRoom 创建房间，初始处于 PLAN 阶段
func NewRoom(field Field, tuning Tuning, now time.Time) (*Room, error) {
	if !field.valid() {
		return nil, fmt.Errorf("sim: invalid field %+v", field)
	}
	r := &Room{
		field:  field,
		tuning: tuning.Sanitize(),
		ball:   kickoffBall(field),
		phase:  PhasePlan,
		turn:   1,
	}
	r.players = newPlayers(field)
	r.index = make(map[string]int, len(r.players))
	for i, p := range r.players {
		r.index[p.ID] = i
	}
	r.deadline = now.Add(r.tuning.PlanDuration)
	return r, nil
}

// Join 分配控制席位：先 home 后 away，已满则为观众。重复加入返回原队伍。
func (r *Room) Join(pid string) Team {
	if t := r.ControllerTeam(pid); t.Playing() {
		return t
	}
	for i, t := range teams {
		if r.controllers[i] == "" {
			r.controllers[i] = pid
			return t
		}
	}
	return TeamSpectator
}

// Leave 释放离开者持有的控制席位，并重置该队就绪状态
func (r *Room) Leave(pid string) Team {
	t := r.ControllerTeam(pid)
	if !t.Playing() {
		return TeamSpectator
	}
	r.controllers[t.index()] = ""
	r.plans.unready(t)
	return t
}

// ControllerTeam 返回 pid 控制的队伍，不是控制者时返回 spectator
func (r *Room) ControllerTeam(pid string) Team {
	if pid == "" {
		return TeamSpectator
	}
	for i, t := range teams {
		if r.controllers[i] == pid {
			return t
		}
	}
	return TeamSpectator
}

// SubmitPlan 校验并整体替换该队计划，标记就绪；双方就绪时下一 Tick 提前进入 RESOLVE。
// 非法条目逐条丢弃，不影响整次提交。
func (r *Room) SubmitPlan(pid string, raw map[string]RawPlan) (PlanAck, error) {
	if r.phase != PhasePlan {
		return PlanAck{}, ErrNotPlanPhase
	}
	team := r.ControllerTeam(pid)
	if !team.Playing() {
		return PlanAck{}, ErrNotController
	}
	plans := make(map[string]Plan, len(raw))
	for id, rp := range raw {
		i, ok := r.index[id]
		if !ok || r.players[i].Team != team {
			continue
		}
		plans[id] = sanitizePlan(r.field, rp)
	}
	r.plans.set(team, plans)
	return PlanAck{Accepted: true, Count: len(plans), Team: team}, nil
}

// Tick 推进房间：先检查阶段到期，RESOLVE 阶段再执行一步物理。
func (r *Room) Tick(now time.Time) []Event {
	var events []Event
	if ev, ok := r.advancePhase(now); ok {
		events = append(events, ev)
	}
	if r.phase == PhaseResolve {
		events = append(events, r.step()...)
	}
	return events
}

// step 固定步长：移动 -> 踢球 -> 球的积分 -> 进球判定
func (r *Room) step() []Event {
	if r.resolve == nil {
		panic("sim: RESOLVE step without resolve context")
	}
	dt := r.tuning.Dt
	var events []Event

	r.movePlayers(dt)
	if p := r.resolveKicks(); p != nil {
		events = append(events, Event{Type: EventKick, PlayerID: p.ID, Team: p.Team, Turn: r.turn})
	}
	// 只统计本步积分带过球门线的进球，踢球推出不算
	before := goalLine(r.ball, r.field)
	stepBall(&r.ball, r.field, r.tuning, dt)

	if !r.resolve.scored {
		if t := goalLine(r.ball, r.field); t.Playing() && t != before {
			r.resolve.scored = true
			r.score.add(t)
			events = append(events, Event{Type: EventGoal, Team: t, Score: r.score, Turn: r.turn})
		}
	}
	r.steps++
	return events
}

// Phase 当前阶段
func (r *Room) Phase() Phase { return r.phase }

// Deadline 当前阶段的截止时间
func (r *Room) Deadline() time.Time { return r.deadline }

// Turn 回合数，从 1 开始，每次 RESOLVE->PLAN 加一
func (r *Room) Turn() int { return r.turn }

// Field 房间场地，创建后不变
func (r *Room) Field() Field { return r.field }

// Tuning 当前生效的参数（已校正）
func (r *Room) Tuning() Tuning { return r.tuning }

// Score 当前比分
func (r *Room) Score() Score { return r.score }

// Ball 返回球的副本
func (r *Room) Ball() Ball { return r.ball }

// Steps 已执行的物理步数（仅 RESOLVE 阶段计数）
func (r *Room) Steps() int64 { return r.steps }

// Ready 该队本回合是否已提交计划
func (r *Room) Ready(t Team) bool { return t.Playing() && r.plans.ready[t.index()] }

// Controller 返回该队控制者 ID，无人控制时为空
func (r *Room) Controller(t Team) string {
	if !t.Playing() {
		return ""
	}
	return r.controllers[t.index()]
}

// SetTuning 更新参数；已设定的阶段截止时间不变，新时长从下一次切换起生效
func (r *Room) SetTuning(t Tuning) { r.tuning = t.Sanitize() }

// Player 按 ID 查找球员，返回副本
func (r *Room) Player(id string) (Player, bool) {
	i, ok := r.index[id]
	if !ok {
		return Player{}, false
	}
	return *r.players[i], true
}

// Players 返回按 ID 升序的球员副本
func (r *Room) Players() []Player {
	out := make([]Player, len(r.players))
	for i, p := range r.players {
		out[i] = *p
	}
	return out
}
