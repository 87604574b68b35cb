package sim

import "github.com/go-gl/mathgl/mgl64"

// movePlayers 每个 Tick 沿计划路径推进球员，预算为 PlayerSpeed*dt
func (r *Room) movePlayers(dt float64) {
	budget := r.tuning.PlayerSpeed * dt
	for i, p := range r.players {
		if !p.Alive {
			continue
		}
		plan, ok := r.plans.lookup(p)
		if !ok || len(plan.Path) == 0 {
			continue
		}
		p.Pos, r.resolve.cursor[i] = advanceAlongPath(p.Pos, plan.Path, r.resolve.cursor[i], budget)
		p.Pos = r.field.Clamp(p.Pos)
	}
}

// advanceAlongPath 从 cursor 指向的路径点开始消耗移动预算。
// 预算足够时吸附到路径点并继续下一个，同一 Tick 可经过多个点；
// 距离小于 epsilon 的点视为已到达且不消耗预算。
func advanceAlongPath(pos mgl64.Vec2, path []mgl64.Vec2, cursor int, budget float64) (mgl64.Vec2, int) {
	for budget > 0 && cursor < len(path) {
		target := path[cursor]
		delta := target.Sub(pos)
		dist := delta.Len()
		if dist < moveEpsilon {
			pos = target
			cursor++
			continue
		}
		if budget >= dist {
			pos = target
			cursor++
			budget -= dist
			continue
		}
		pos = pos.Add(delta.Mul(budget / dist))
		budget = 0
	}
	return pos, cursor
}
