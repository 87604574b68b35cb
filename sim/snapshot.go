package sim

// PlayerState / BallState / State 为广播给客户端的完整快照
type PlayerState struct {
	ID     string  `json:"id"`
	Team   Team    `json:"team"`
	Role   Role    `json:"role"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Radius float64 `json:"r"`
	Alive  bool    `json:"alive"`
}

type BallState struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	VX     float64 `json:"vx"`
	VY     float64 `json:"vy"`
	Radius float64 `json:"r"`
}

type TeamSlots struct {
	Home string `json:"home"`
	Away string `json:"away"`
}

type TeamFlags struct {
	Home bool `json:"home"`
	Away bool `json:"away"`
}

type State struct {
	Phase       Phase         `json:"phase"`
	Deadline    int64         `json:"deadline"` // Unix 毫秒
	Turn        int           `json:"turn"`
	Field       Field         `json:"field"`
	Players     []PlayerState `json:"players"`
	Ball        BallState     `json:"ball"`
	Controllers TeamSlots     `json:"controllers"`
	Ready       TeamFlags     `json:"ready"`
	Score       Score         `json:"score"`
}

// Snapshot 生成当前完整快照
func (r *Room) Snapshot() State {
	s := State{
		Phase:    r.phase,
		Deadline: r.deadline.UnixMilli(),
		Turn:     r.turn,
		Field:    r.field,
		Players:  make([]PlayerState, 0, len(r.players)),
		Ball: BallState{
			X: r.ball.Pos.X(), Y: r.ball.Pos.Y(),
			VX: r.ball.Vel.X(), VY: r.ball.Vel.Y(),
			Radius: r.ball.Radius,
		},
		Controllers: TeamSlots{Home: r.controllers[0], Away: r.controllers[1]},
		Ready:       TeamFlags{Home: r.plans.ready[0], Away: r.plans.ready[1]},
		Score:       r.score,
	}
	for _, p := range r.players {
		s.Players = append(s.Players, PlayerState{
			ID: p.ID, Team: p.Team, Role: p.Role,
			X: p.Pos.X(), Y: p.Pos.Y(),
			Radius: p.Radius, Alive: p.Alive,
		})
	}
	return s
}
