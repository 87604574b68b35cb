package sim

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl64"
)

var t0 = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

func newTestRoom(t *testing.T) *Room {
	t.Helper()
	r, err := NewRoom(DefaultField(), DefaultTuning(), t0)
	if err != nil {
		t.Fatalf("NewRoom: %v", err)
	}
	return r
}

// startResolve 直接进入 RESOLVE，便于单独测试积分器
func startResolve(r *Room, plans map[Team]map[string]Plan) {
	for team, p := range plans {
		r.plans.set(team, p)
	}
	r.beginResolve(t0)
}

func placePlayer(t *testing.T, r *Room, id string, x, y float64) *Player {
	t.Helper()
	i, ok := r.index[id]
	if !ok {
		t.Fatalf("no player %q", id)
	}
	r.players[i].Pos = mgl64.Vec2{x, y}
	return r.players[i]
}

func TestNewRoomKickoffLayout(t *testing.T) {
	r := newTestRoom(t)
	if r.Phase() != PhasePlan || r.Turn() != 1 {
		t.Fatalf("phase=%s turn=%d, want PLAN 1", r.Phase(), r.Turn())
	}
	if want := t0.Add(DefaultTuning().PlanDuration); !r.Deadline().Equal(want) {
		t.Fatalf("deadline = %v, want %v", r.Deadline(), want)
	}
	players := r.Players()
	if len(players) != MaxEntities {
		t.Fatalf("players = %d, want %d", len(players), MaxEntities)
	}
	for i := 1; i < len(players); i++ {
		if players[i-1].ID >= players[i].ID {
			t.Fatalf("players not sorted by id: %s before %s", players[i-1].ID, players[i].ID)
		}
	}
	for _, p := range players {
		if !r.Field().Contains(p.Pos) {
			t.Fatalf("player %s spawned outside field at %v", p.ID, p.Pos)
		}
		if p.Team == TeamHome && p.Pos.X() > r.Field().Width/2 {
			t.Fatalf("home player %s spawned in away half", p.ID)
		}
	}
	if r.Ball().Pos != r.Field().Center() {
		t.Fatalf("ball at %v, want centre", r.Ball().Pos)
	}
}

func TestNewRoomRejectsBadField(t *testing.T) {
	_, err := NewRoom(Field{Width: 100, Height: 10, GoalWidth: 14, GoalDepth: 2}, DefaultTuning(), t0)
	if err == nil {
		t.Fatalf("expected error for goal wider than field")
	}
}

func TestJoinAssignsHomeAwayThenSpectator(t *testing.T) {
	r := newTestRoom(t)
	cases := []struct {
		pid  string
		want Team
	}{
		{"p1", TeamHome},
		{"p2", TeamAway},
		{"p3", TeamSpectator},
		{"p1", TeamHome},
	}
	for _, c := range cases {
		if got := r.Join(c.pid); got != c.want {
			t.Fatalf("Join(%s) = %s, want %s", c.pid, got, c.want)
		}
	}
	if r.Controller(TeamAway) != "p2" {
		t.Fatalf("away controller = %q", r.Controller(TeamAway))
	}

	r.Leave("p1")
	if got := r.Join("p3"); got != TeamHome {
		t.Fatalf("p3 should take the freed home slot, got %s", got)
	}
}

func TestLeaveResetsReadiness(t *testing.T) {
	r := newTestRoom(t)
	r.Join("p1")
	r.Join("p2")
	if _, err := r.SubmitPlan("p1", nil); err != nil {
		t.Fatalf("SubmitPlan: %v", err)
	}
	if !r.Ready(TeamHome) {
		t.Fatalf("home should be ready")
	}
	if got := r.Leave("p1"); got != TeamHome {
		t.Fatalf("Leave = %s, want home", got)
	}
	if r.Ready(TeamHome) || r.Controller(TeamHome) != "" {
		t.Fatalf("leave should clear slot and readiness")
	}
	if got := r.Leave("nobody"); got != TeamSpectator {
		t.Fatalf("Leave(nobody) = %s", got)
	}
}

func TestSubmitPlanRejections(t *testing.T) {
	r := newTestRoom(t)
	r.Join("p1")
	r.Join("p2")
	r.Join("watcher")

	ack, err := r.SubmitPlan("watcher", map[string]RawPlan{"h1": {}})
	if !errors.Is(err, ErrNotController) || ack.Accepted || ack.Count != 0 {
		t.Fatalf("spectator submit: ack=%+v err=%v", ack, err)
	}

	startResolve(r, nil)
	ack, err = r.SubmitPlan("p1", map[string]RawPlan{"h1": {}})
	if !errors.Is(err, ErrNotPlanPhase) || ack.Accepted {
		t.Fatalf("resolve submit: ack=%+v err=%v", ack, err)
	}
}

func TestSubmitPlanSanitizesEntries(t *testing.T) {
	r := newTestRoom(t)
	r.Join("p1")
	f := r.Field()

	long := make([]RawPoint, 200)
	for i := range long {
		long[i] = RawPoint{X: float64(i), Y: 10}
	}
	half := 0.5
	over := 3.0
	raw := map[string]RawPlan{
		"h1":      {Path: long},
		"h2":      {Path: []RawPoint{{X: -5, Y: 500}}, Kick: &RawKick{DX: 1, DY: 0, Power: &over}},
		"h3":      {Kick: &RawKick{DX: 0, DY: 1}},
		"h4":      {Kick: &RawKick{DX: nan(), DY: 1, Power: &half}},
		"h5":      {Path: []RawPoint{{X: nan(), Y: 1}, {X: 3, Y: 4}}},
		"a1":      {Path: []RawPoint{{X: 1, Y: 1}}},
		"missing": {},
	}
	ack, err := r.SubmitPlan("p1", raw)
	if err != nil {
		t.Fatalf("SubmitPlan: %v", err)
	}
	if !ack.Accepted || ack.Count != 5 || ack.Team != TeamHome {
		t.Fatalf("ack = %+v, want accepted 5 home", ack)
	}

	plans := r.plans.plans[TeamHome.index()]
	if got := len(plans["h1"].Path); got != MaxWaypoints {
		t.Fatalf("h1 path len = %d, want %d", got, MaxWaypoints)
	}
	if got := plans["h2"].Path[0]; got != (mgl64.Vec2{0, f.Height}) {
		t.Fatalf("h2 waypoint = %v, want clamped (0,%v)", got, f.Height)
	}
	if k := plans["h2"].Kick; k == nil || k.Power != 1 {
		t.Fatalf("h2 kick = %+v, want power clamped to 1", k)
	}
	if k := plans["h3"].Kick; k == nil || k.Power != 1 {
		t.Fatalf("h3 kick = %+v, want default power 1", k)
	}
	if plans["h4"].Kick != nil {
		t.Fatalf("h4 kick with NaN direction should be dropped")
	}
	if got := plans["h5"].Path; len(got) != 1 || got[0] != (mgl64.Vec2{3, 4}) {
		t.Fatalf("h5 path = %v, want only finite point", got)
	}
	if _, ok := plans["a1"]; ok {
		t.Fatalf("away entity accepted in home plan")
	}
	if !r.Ready(TeamHome) || r.Ready(TeamAway) {
		t.Fatalf("readiness = home %v away %v", r.Ready(TeamHome), r.Ready(TeamAway))
	}
}

func TestSubmitPlanReplacesWholesale(t *testing.T) {
	r := newTestRoom(t)
	r.Join("p1")
	r.SubmitPlan("p1", map[string]RawPlan{"h1": {}, "h2": {}})
	r.SubmitPlan("p1", map[string]RawPlan{"h3": {}})
	plans := r.plans.plans[TeamHome.index()]
	if len(plans) != 1 {
		t.Fatalf("plans = %v, want only h3", plans)
	}
	if _, ok := plans["h3"]; !ok {
		t.Fatalf("h3 missing after resubmit")
	}
}

func TestSnapshotReflectsRoom(t *testing.T) {
	r := newTestRoom(t)
	r.Join("p1")
	r.SubmitPlan("p1", nil)
	s := r.Snapshot()
	if s.Phase != PhasePlan || s.Turn != 1 || s.Deadline != r.Deadline().UnixMilli() {
		t.Fatalf("snapshot header = %+v", s)
	}
	if s.Controllers.Home != "p1" || s.Controllers.Away != "" {
		t.Fatalf("controllers = %+v", s.Controllers)
	}
	if !s.Ready.Home || s.Ready.Away {
		t.Fatalf("ready = %+v", s.Ready)
	}
	if len(s.Players) != MaxEntities || s.Ball.Radius != BallRadius {
		t.Fatalf("snapshot players=%d ball=%+v", len(s.Players), s.Ball)
	}
}

func nan() float64 { return math.NaN() }
