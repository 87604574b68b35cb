package sim

import "github.com/go-gl/mathgl/mgl64"

// resolveKicks 检测球员与球的接触并执行踢球，每个 Tick 至多一次。
// 候选者为接触球、有踢球意图且本阶段尚未踢过的球员；
// 距球最近者胜出，距离相同时 ID 较小者胜出（players 按 ID 升序）。
func (r *Room) resolveKicks() *Player {
	winner := -1
	var best float64
	var kick Kick
	for i, p := range r.players {
		if !p.Alive || r.resolve.kicked[i] {
			continue
		}
		plan, ok := r.plans.lookup(p)
		if !ok || plan.Kick == nil {
			continue
		}
		d := r.ball.Pos.Sub(p.Pos).Len()
		if d > p.Radius+r.ball.Radius {
			continue
		}
		if winner < 0 || d < best {
			winner, best, kick = i, d, *plan.Kick
		}
	}
	if winner < 0 {
		return nil
	}
	p := r.players[winner]
	applyKick(&r.ball, p, kick, r.tuning)
	r.resolve.kicked[winner] = true
	return p
}

// KickSpeed 按力度在最小/最大速度之间线性插值
func KickSpeed(power float64, t Tuning) float64 {
	return t.KickMinSpeed + (t.KickMaxSpeed-t.KickMinSpeed)*mgl64.Clamp(power, 0, 1)
}

// applyKick 设置球速并把球沿 球员->球 方向推出到半径和之外
func applyKick(b *Ball, p *Player, k Kick, t Tuning) {
	dir := k.Dir
	if dir.Len() < moveEpsilon {
		dir = b.Pos.Sub(p.Pos)
	}
	if dir.Len() < moveEpsilon {
		dir = p.Team.attackDir()
	}
	dir = dir.Normalize()
	b.Vel = dir.Mul(KickSpeed(k.Power, t))

	away := b.Pos.Sub(p.Pos)
	if away.Len() < moveEpsilon {
		away = dir
	} else {
		away = away.Normalize()
	}
	b.Pos = p.Pos.Add(away.Mul(p.Radius + b.Radius + kickSeparation))
}
