package sim

import "math"

// stepBall 积分球的位置与速度，然后依次处理：上下边界、左右底线（球门口除外）、球网与门柱。
// 三项检查相互独立、每步都执行。
func stepBall(b *Ball, f Field, t Tuning, dt float64) {
	behindLeft := b.Pos[0] < 0 && f.InMouthSpan(b.Pos[1])
	behindRight := b.Pos[0] > f.Width && f.InMouthSpan(b.Pos[1])

	b.Pos = b.Pos.Add(b.Vel.Mul(dt))
	b.Vel = b.Vel.Mul(math.Pow(t.BallDampingPerSecond, dt))

	r := b.Radius
	bounce := t.WallBounce

	if b.Pos[1]-r < 0 {
		b.Pos[1] = r
		b.Vel[1] = -b.Vel[1] * bounce
	} else if b.Pos[1]+r > f.Height {
		b.Pos[1] = f.Height - r
		b.Vel[1] = -b.Vel[1] * bounce
	}

	inLeft := b.Pos[0]-r <= 0 && (behindLeft || f.InMouthSpan(b.Pos[1]))
	inRight := b.Pos[0]+r >= f.Width && (behindRight || f.InMouthSpan(b.Pos[1]))

	if !inLeft && b.Pos[0]-r < 0 {
		b.Pos[0] = r
		b.Vel[0] = -b.Vel[0] * bounce
	}
	if !inRight && b.Pos[0]+r > f.Width {
		b.Pos[0] = f.Width - r
		b.Vel[0] = -b.Vel[0] * bounce
	}

	if inLeft {
		if b.Pos[0]-r < -f.GoalDepth {
			b.Pos[0] = -f.GoalDepth + r
			b.Vel[0] = -b.Vel[0] * bounce
		}
		if b.Pos[0] < 0 {
			clampPosts(b, f, bounce)
		}
	}
	if inRight {
		if b.Pos[0]+r > f.Width+f.GoalDepth {
			b.Pos[0] = f.Width + f.GoalDepth - r
			b.Vel[0] = -b.Vel[0] * bounce
		}
		if b.Pos[0] > f.Width {
			clampPosts(b, f, bounce)
		}
	}
}

// clampPosts 球进入球门后，y 被上下门柱限制，防止从侧面穿出
func clampPosts(b *Ball, f Field, bounce float64) {
	top, bottom := f.MouthSpan()
	lo, hi := top+b.Radius, bottom-b.Radius
	if lo > hi {
		b.Pos[1] = (top + bottom) / 2
		b.Vel[1] = 0
		return
	}
	if b.Pos[1] < lo {
		b.Pos[1] = lo
		b.Vel[1] = -b.Vel[1] * bounce
	} else if b.Pos[1] > hi {
		b.Pos[1] = hi
		b.Vel[1] = -b.Vel[1] * bounce
	}
}

// goalLine 球整体越过球门线时返回得分方（防守方的对手）；未越线返回 TeamSpectator
func goalLine(b Ball, f Field) Team {
	if !f.InMouthSpan(b.Pos[1]) {
		return TeamSpectator
	}
	switch {
	case b.Pos[0]+b.Radius < 0:
		return TeamHome.Opponent()
	case b.Pos[0]-b.Radius > f.Width:
		return TeamAway.Opponent()
	}
	return TeamSpectator
}
