package server

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"turnball/sim"
)

var t0 = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

type rawEnvelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type fakeConn struct {
	mu          sync.Mutex
	frames      [][]byte
	closed      bool
	panicOnSend bool
}

func (f *fakeConn) Enqueue(b []byte) {
	if f.panicOnSend {
		panic("fake send failure")
	}
	cp := make([]byte, len(b))
	copy(cp, b)
	f.mu.Lock()
	f.frames = append(f.frames, cp)
	f.mu.Unlock()
}

func (f *fakeConn) Close() {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
}

func (f *fakeConn) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// envelopes 解码所有已收到的 JSON 帧
func (f *fakeConn) envelopes(t *testing.T) []rawEnvelope {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]rawEnvelope, 0, len(f.frames))
	for _, b := range f.frames {
		var env rawEnvelope
		if err := json.Unmarshal(b, &env); err != nil {
			t.Fatalf("decode envelope %s: %v", b, err)
		}
		out = append(out, env)
	}
	return out
}

func (f *fakeConn) count(t *testing.T, msgType string) int {
	t.Helper()
	n := 0
	for _, env := range f.envelopes(t) {
		if env.Type == msgType {
			n++
		}
	}
	return n
}

// last 解码最后一条指定类型的消息
func (f *fakeConn) last(t *testing.T, msgType string, out any) {
	t.Helper()
	envs := f.envelopes(t)
	for i := len(envs) - 1; i >= 0; i-- {
		if envs[i].Type == msgType {
			if err := json.Unmarshal(envs[i].Payload, out); err != nil {
				t.Fatalf("decode %s payload: %v", msgType, err)
			}
			return
		}
	}
	t.Fatalf("no %s message received", msgType)
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.PlanDuration = 10 * time.Second
	cfg.ResolveDuration = 2 * time.Second
	return cfg
}

func newTestServerRoom(t *testing.T) *Room {
	t.Helper()
	r, err := NewRoom("test", testConfig(), t0)
	if err != nil {
		t.Fatalf("NewRoom: %v", err)
	}
	return r
}

func joinFake(r *Room, name string) *fakeConn {
	fc := &fakeConn{}
	p := &Participant{ID: ParticipantID(name), Name: name, Codec: JSONCodec, Conn: fc}
	r.pendingJoins.Add(1)
	r.RequestJoin(p)
	return fc
}

func walkTo(x, y float64) sim.RawPlan {
	return sim.RawPlan{Path: []sim.RawPoint{{X: x, Y: y}}}
}

func TestRoomJoinAssignsTeamsAndAcks(t *testing.T) {
	r := newTestServerRoom(t)
	alice := joinFake(r, "alice")
	bob := joinFake(r, "bob")
	carol := joinFake(r, "carol")
	r.Step(t0)

	want := map[*fakeConn]sim.Team{alice: sim.TeamHome, bob: sim.TeamAway, carol: sim.TeamSpectator}
	for fc, team := range want {
		var joined JoinedPayload
		fc.last(t, MsgJoined, &joined)
		if joined.Team != team || joined.Field != sim.DefaultField() {
			t.Fatalf("joined = %+v, want team %s", joined, team)
		}
		if n := fc.count(t, MsgRoomState); n != 1 {
			t.Fatalf("room_state count = %d, want 1", n)
		}
	}
	if n := alice.count(t, MsgJoined); n != 1 {
		t.Fatalf("join ack must go to the joiner only once, got %d", n)
	}

	var state sim.State
	alice.last(t, MsgRoomState, &state)
	if state.Controllers.Home != "alice" || state.Controllers.Away != "bob" {
		t.Fatalf("controllers = %+v", state.Controllers)
	}
	if r.pendingJoins.Load() != 0 || r.Status().Participants != 3 {
		t.Fatalf("pending=%d participants=%d", r.pendingJoins.Load(), r.Status().Participants)
	}
}

func TestRoomBroadcastGate(t *testing.T) {
	r := newTestServerRoom(t)
	alice := joinFake(r, "alice")
	r.Step(t0)
	r.Step(t0.Add(20 * time.Millisecond))
	r.Step(t0.Add(40 * time.Millisecond))
	if n := alice.count(t, MsgRoomState); n != 1 {
		t.Fatalf("room_state within gate = %d, want 1", n)
	}
	r.Step(t0.Add(60 * time.Millisecond))
	if n := alice.count(t, MsgRoomState); n != 2 {
		t.Fatalf("room_state after gate = %d, want 2", n)
	}
	if st := r.Status(); st.Tick != 4 {
		t.Fatalf("tick = %d, want 4 (physics runs every tick)", st.Tick)
	}
}

func TestRoomPlansTriggerEarlyResolution(t *testing.T) {
	r := newTestServerRoom(t)
	alice := joinFake(r, "alice")
	bob := joinFake(r, "bob")
	r.Step(t0)

	r.OnPlan("alice", 1, map[string]sim.RawPlan{"h5": walkTo(60, 30), "a1": walkTo(1, 1)})
	r.OnPlan("bob", 1, map[string]sim.RawPlan{"a5": walkTo(40, 30)})
	r.Step(t0.Add(20 * time.Millisecond))

	var ack PlanAckPayload
	alice.last(t, MsgPlanAck, &ack)
	if !ack.Accepted || ack.Count != 1 || ack.Code != "" || ack.Seq != 1 {
		t.Fatalf("alice ack = %+v", ack)
	}
	if got := r.Metrics().Snapshot()["entries_dropped"]; got != int64(1) {
		t.Fatalf("entries_dropped = %v, want 1", got)
	}

	for _, fc := range []*fakeConn{alice, bob} {
		var pc PhaseChangePayload
		fc.last(t, MsgPhaseChange, &pc)
		if pc.Phase != sim.PhaseResolve || pc.Turn != 1 {
			t.Fatalf("phase_change = %+v", pc)
		}
		envs := fc.envelopes(t)
		if envs[len(envs)-1].Type != MsgRoomState {
			t.Fatalf("phase change must be followed by a full snapshot, last=%s", envs[len(envs)-1].Type)
		}
		var state sim.State
		fc.last(t, MsgRoomState, &state)
		if state.Phase != sim.PhaseResolve {
			t.Fatalf("snapshot phase = %s", state.Phase)
		}
	}
	if n := alice.count(t, MsgPhaseChange); n != 1 {
		t.Fatalf("phase_change count = %d", n)
	}
}

func TestRoomRejectsPlans(t *testing.T) {
	r := newTestServerRoom(t)
	alice := joinFake(r, "alice")
	joinFake(r, "bob")
	carol := joinFake(r, "carol")
	r.Step(t0)

	r.OnPlan("bob", 0, nil)
	r.OnPlan("carol", 0, map[string]sim.RawPlan{"h1": walkTo(1, 1)})
	r.OnPlan("alice", 5, nil)
	r.Step(t0.Add(20 * time.Millisecond))

	var ack PlanAckPayload
	carol.last(t, MsgPlanAck, &ack)
	if ack.Accepted || ack.Code != CodeNotController {
		t.Fatalf("spectator ack = %+v", ack)
	}

	// 双方就绪后已进入 RESOLVE
	r.OnPlan("alice", 6, nil)
	r.Step(t0.Add(40 * time.Millisecond))
	alice.last(t, MsgPlanAck, &ack)
	if ack.Accepted || ack.Code != CodeNotPlanPhase || ack.Seq != 6 {
		t.Fatalf("resolve-phase ack = %+v", ack)
	}

	r.OnPlan("alice", 6, nil)
	r.Step(t0.Add(60 * time.Millisecond))
	alice.last(t, MsgPlanAck, &ack)
	if ack.Code != CodeStaleSeq {
		t.Fatalf("duplicate seq ack = %+v", ack)
	}

	r.Reject("alice", 9, CodeRateLimited)
	r.Step(t0.Add(80 * time.Millisecond))
	alice.last(t, MsgPlanAck, &ack)
	if ack.Code != CodeRateLimited || ack.Seq != 9 {
		t.Fatalf("reject ack = %+v", ack)
	}

	m := r.Metrics().Snapshot()
	if m["plans_rejected"] != int64(2) || m["old_seq_ignored"] != int64(1) || m["plans_accepted"] != int64(2) {
		t.Fatalf("metrics = %v", m)
	}
}

func TestRoomLeaveFreesSlotAndCloses(t *testing.T) {
	r := newTestServerRoom(t)
	alice := joinFake(r, "alice")
	joinFake(r, "bob")
	r.Step(t0)

	r.OnPlan("alice", 0, nil)
	r.Step(t0.Add(20 * time.Millisecond))
	r.RequestLeave("alice")
	r.Step(t0.Add(40 * time.Millisecond))

	if !alice.isClosed() {
		t.Fatalf("leaving participant's connection should be closed")
	}
	state := r.Snapshot()
	if state.Controllers.Home != "" || state.Ready.Home {
		t.Fatalf("home slot not freed: %+v %+v", state.Controllers, state.Ready)
	}
	if r.idle() {
		t.Fatalf("room with bob should not be idle")
	}
	r.RequestLeave("bob")
	r.RequestLeave("bob")
	r.Step(t0.Add(60 * time.Millisecond))
	if !r.idle() {
		t.Fatalf("empty room should be idle")
	}
}

func TestRoomTuneAppliesOnNextTick(t *testing.T) {
	r := newTestServerRoom(t)
	speed := 3.5
	plan := 30.0
	r.RequestTune(TuningPatch{PlayerSpeed: &speed, PlanSeconds: &plan})
	if r.Tuning().PlayerSpeed == speed {
		t.Fatalf("tuning applied before tick")
	}
	r.Step(t0)
	tun := r.Tuning()
	if tun.PlayerSpeed != speed || tun.PlanDuration != 30*time.Second {
		t.Fatalf("tuning = %+v", tun)
	}
}

func TestRoomFaultIsContained(t *testing.T) {
	bad := newTestServerRoom(t)
	bad.pendingJoins.Add(1)
	bad.RequestJoin(&Participant{ID: "x", Codec: JSONCodec, Conn: &fakeConn{panicOnSend: true}})
	good := newTestServerRoom(t)
	alice := joinFake(good, "alice")

	bad.Step(t0)
	good.Step(t0)

	if got := bad.Metrics().Snapshot()["faults"]; got != int64(1) {
		t.Fatalf("faults = %v, want 1", got)
	}
	if alice.count(t, MsgJoined) != 1 {
		t.Fatalf("healthy room affected by faulty room")
	}
	// 锁已释放，房间仍可访问
	_ = bad.Status()
}

func TestRoomStateBroadcastKeepsMinimumInterval(t *testing.T) {
	r := newTestServerRoom(t)
	alice := joinFake(r, "alice")
	joinFake(r, "bob")

	var sentAt []time.Time
	for i := 0; i < 10; i++ {
		now := t0.Add(time.Duration(i) * 20 * time.Millisecond)
		if i > 0 {
			// 只有 home 提交，不会提前进入 RESOLVE
			r.OnPlan("alice", int64(i), map[string]sim.RawPlan{"h1": walkTo(float64(i), 1)})
			if i == 4 {
				joinFake(r, "carol")
			}
		}
		before := alice.count(t, MsgRoomState)
		r.Step(now)
		if alice.count(t, MsgRoomState) > before {
			sentAt = append(sentAt, now)
		}
	}
	if r.Snapshot().Phase != sim.PhasePlan {
		t.Fatalf("room left PLAN unexpectedly")
	}
	if len(sentAt) != 4 {
		t.Fatalf("room_state frames = %d at %v, want 4 over 180ms", len(sentAt), sentAt)
	}
	for i := 1; i < len(sentAt); i++ {
		if gap := sentAt[i].Sub(sentAt[i-1]); gap < testConfig().BroadcastInterval {
			t.Fatalf("room_state gap %v below the broadcast interval", gap)
		}
	}
}

func TestRateLimitedFloodDoesNotStarveOtherPlans(t *testing.T) {
	r := newTestServerRoom(t)
	alice := joinFake(r, "alice")
	bob := joinFake(r, "bob")
	r.Step(t0)

	cfg := testConfig()
	limiter := newRateLimiter(cfg.MaxMsgsPerSecond, time.Second)
	for i := 0; i < 1000; i++ {
		handleInbound(r, "alice", JSONCodec, limiter, t0.Add(time.Millisecond), []byte(`{"type":"shout"}`))
	}
	r.OnPlan("bob", 1, map[string]sim.RawPlan{"a5": walkTo(40, 30)})
	r.Step(t0.Add(20 * time.Millisecond))

	var ack PlanAckPayload
	bob.last(t, MsgPlanAck, &ack)
	if !ack.Accepted || ack.Count != 1 {
		t.Fatalf("bob ack = %+v", ack)
	}
	if !r.Snapshot().Ready.Away {
		t.Fatalf("away plan lost behind the flood")
	}

	codes := map[string]int{}
	for _, env := range alice.envelopes(t) {
		if env.Type != MsgPlanAck {
			continue
		}
		var a PlanAckPayload
		if err := json.Unmarshal(env.Payload, &a); err != nil {
			t.Fatal(err)
		}
		codes[a.Code]++
	}
	if codes[CodeRateLimited] != 1 || codes[CodeBadMessage] != cfg.MaxMsgsPerSecond {
		t.Fatalf("alice acks by code = %v", codes)
	}
	m := r.Metrics().Snapshot()
	if m["chan_full_discarded"] != int64(0) || m["rate_limited"] != int64(1000-cfg.MaxMsgsPerSecond) {
		t.Fatalf("metrics = %v", m)
	}
}
