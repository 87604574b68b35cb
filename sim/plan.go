package sim

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// RawPoint / RawKick / RawPlan 为客户端提交的原始（不可信）计划
type RawPoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type RawKick struct {
	DX    float64  `json:"dx"`
	DY    float64  `json:"dy"`
	Power *float64 `json:"power,omitempty"` // 缺省为 1
}

type RawPlan struct {
	Path []RawPoint `json:"path"`
	Kick *RawKick   `json:"kick,omitempty"`
}

// Kick 经过校验的踢球意图
type Kick struct {
	Dir   mgl64.Vec2
	Power float64 // [0,1]
}

// Plan 经过校验的实体计划：路径点均已裁剪进场地
type Plan struct {
	Path []mgl64.Vec2
	Kick *Kick
}

// PlanAck 提交结果
type PlanAck struct {
	Accepted bool `json:"accepted"`
	Count    int  `json:"count"`
	Team     Team `json:"team,omitempty"`
}

// planStore 每队一份 实体ID -> 计划 映射，以及就绪标记
type planStore struct {
	plans [2]map[string]Plan
	ready [2]bool
}

func (s *planStore) set(team Team, plans map[string]Plan) {
	i := team.index()
	s.plans[i] = plans
	s.ready[i] = true
}

func (s *planStore) lookup(p *Player) (Plan, bool) {
	i := p.Team.index()
	if i < 0 || s.plans[i] == nil {
		return Plan{}, false
	}
	plan, ok := s.plans[i][p.ID]
	return plan, ok
}

func (s *planStore) unready(team Team) {
	if i := team.index(); i >= 0 {
		s.ready[i] = false
	}
}

func (s *planStore) bothReady() bool { return s.ready[0] && s.ready[1] }

func (s *planStore) reset() {
	s.plans = [2]map[string]Plan{}
	s.ready = [2]bool{}
}

// sanitizePlan 截断路径、丢弃非有限坐标并裁剪进场地；踢球意图单独校验
func sanitizePlan(f Field, raw RawPlan) Plan {
	path := raw.Path
	if len(path) > MaxWaypoints {
		path = path[:MaxWaypoints]
	}
	out := Plan{Path: make([]mgl64.Vec2, 0, len(path))}
	for _, pt := range path {
		if !finite(pt.X) || !finite(pt.Y) {
			continue
		}
		out.Path = append(out.Path, f.Clamp(mgl64.Vec2{pt.X, pt.Y}))
	}
	out.Kick = sanitizeKick(raw.Kick)
	return out
}

func sanitizeKick(raw *RawKick) *Kick {
	if raw == nil || !finite(raw.DX) || !finite(raw.DY) {
		return nil
	}
	power := 1.0
	if raw.Power != nil && !math.IsNaN(*raw.Power) {
		power = mgl64.Clamp(*raw.Power, 0, 1)
	}
	return &Kick{Dir: mgl64.Vec2{raw.DX, raw.DY}, Power: power}
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
