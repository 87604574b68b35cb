package server

import (
	"errors"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"turnball/sim"
)

// Room 服务端房间：模拟引擎 + 参与者 + 收件箱。
// 入站命令只入队，由调度线程在 Step 开头统一处理，保证不与物理步进并发。
type Room struct {
	ID string

	mu           sync.Mutex // 保护以下状态；Step 与 HTTP 读取之间互斥
	sim          *sim.Room
	participants map[ParticipantID]*Participant
	lastSeq      map[ParticipantID]int64

	controlChan chan any // join/leave/tune，阻塞写入保证生效
	inputChan   chan any // plan/reject，满则丢弃

	pendingJoins atomic.Int32 // 已入队但尚未处理的加入请求，防止被当作空房间回收

	broadcastEvery time.Duration
	lastBroadcast  time.Time
	stateDirty     bool // 阶段切换或进球后须在本 Tick 立即广播完整快照；其余变化走 50ms 间隔

	tickSeq int64
	metrics *RoomMetrics
}

// NewRoom 创建房间，初始化数据结构
func NewRoom(id string, cfg Config, now time.Time) (*Room, error) {
	s, err := sim.NewRoom(sim.DefaultField(), cfg.Tuning(), now)
	if err != nil {
		return nil, err
	}
	return &Room{
		ID:             id,
		sim:            s,
		participants:   make(map[ParticipantID]*Participant),
		lastSeq:        make(map[ParticipantID]int64),
		controlChan:    make(chan any, 64),
		inputChan:      make(chan any, cfg.InboxSize), // 足够缓冲，避免网络读阻塞影响 Tick
		broadcastEvery: cfg.BroadcastInterval,
		metrics:        &RoomMetrics{},
	}, nil
}

// RequestJoin 请求在 Tick 线程中加入参与者
func (r *Room) RequestJoin(p *Participant) {
	r.controlChan <- joinCmd{p: p}
}

// RequestLeave 请求在 Tick 线程中移除参与者（阻塞式写入，保证移除一定生效）
func (r *Room) RequestLeave(id ParticipantID) {
	r.controlChan <- leaveCmd{id: id}
}

// RequestTune 参数热更新，下一 Tick 生效
func (r *Room) RequestTune(patch TuningPatch) {
	r.controlChan <- tuneCmd{patch: patch}
}

// OnPlan 入站计划（不立即生效），满则丢弃以保证 Tick 准时
func (r *Room) OnPlan(id ParticipantID, seq int64, plans map[string]sim.RawPlan) {
	r.offer(planCmd{id: id, seq: seq, plans: plans})
}

// Reject 传输层拒绝，回执在 Tick 线程中发出
func (r *Room) Reject(id ParticipantID, seq int64, code string) {
	r.offer(rejectCmd{id: id, seq: seq, code: code})
}

func (r *Room) offer(cmd any) {
	select {
	case r.inputChan <- cmd:
	default:
		r.metrics.IncChanFullDiscarded()
	}
}

// Step 一个调度 Tick：处理命令 -> 推进模拟 -> 广播结果
func (r *Room) Step(now time.Time) {
	start := time.Now()
	r.mu.Lock()
	defer r.mu.Unlock()
	defer r.recoverFault()

	r.tickSeq++
	r.ProcessCommands()
	r.handleEvents(r.sim.Tick(now))
	if r.stateDirty || now.Sub(r.lastBroadcast) >= r.broadcastEvery {
		r.broadcastState(now)
	}
	r.metrics.AddTick(time.Since(start).Nanoseconds())
}

// recoverFault 单个房间的程序错误不影响其他房间
func (r *Room) recoverFault() {
	if rec := recover(); rec != nil {
		r.metrics.IncFaults()
		Log.Errorw("room step fault", "room", r.ID, "tick", r.tickSeq, "panic", rec, "stack", string(debug.Stack()))
	}
}

// ProcessCommands 处理本 Tick 之前到达的命令（控制命令优先），数量以进入时的队列长度为界
func (r *Room) ProcessCommands() {
	for n := len(r.controlChan); n > 0; n-- {
		r.handleCommand(<-r.controlChan)
	}
	for n := len(r.inputChan); n > 0; n-- {
		r.handleCommand(<-r.inputChan)
	}
}

func (r *Room) handleCommand(cmd any) {
	switch c := cmd.(type) {
	case joinCmd:
		r.pendingJoins.Add(-1)
		r.join(c.p)
	case leaveCmd:
		r.leave(c.id)
	case planCmd:
		r.submitPlan(c)
	case rejectCmd:
		if p, ok := r.participants[c.id]; ok {
			p.send(MsgPlanAck, PlanAckPayload{Seq: c.seq, Code: c.code})
		}
	case tuneCmd:
		t := c.patch.apply(r.sim.Tuning())
		r.sim.SetTuning(t)
		t = r.sim.Tuning()
		Log.Infof("config updated: room=%s plan=%s resolve=%s speed=%.2f kick=[%.2f,%.2f] damping=%.3f bounce=%.2f",
			r.ID, t.PlanDuration, t.ResolveDuration, t.PlayerSpeed, t.KickMinSpeed, t.KickMaxSpeed, t.BallDampingPerSecond, t.WallBounce)
	}
}

func (r *Room) join(p *Participant) {
	p.Team = r.sim.Join(string(p.ID))
	r.participants[p.ID] = p
	p.send(MsgJoined, JoinedPayload{ParticipantID: p.ID, Name: p.Name, Team: p.Team, Field: r.sim.Field()})
	Log.Infof("join: room=%s participant=%s name=%q team=%s", r.ID, p.ID, p.Name, p.Team)
}

func (r *Room) leave(id ParticipantID) {
	p, ok := r.participants[id]
	if !ok {
		return
	}
	team := r.sim.Leave(string(id))
	delete(r.participants, id)
	delete(r.lastSeq, id)
	p.Conn.Close()
	Log.Infof("leave: room=%s participant=%s team=%s remaining=%d", r.ID, id, team, len(r.participants))
}

func (r *Room) submitPlan(c planCmd) {
	p, ok := r.participants[c.id]
	if !ok {
		return
	}
	if c.seq > 0 {
		if c.seq <= r.lastSeq[c.id] {
			r.metrics.IncOldSeqIgnored()
			p.send(MsgPlanAck, PlanAckPayload{Seq: c.seq, Code: CodeStaleSeq})
			return
		}
		r.lastSeq[c.id] = c.seq
	}

	ack, err := r.sim.SubmitPlan(string(c.id), c.plans)
	reply := PlanAckPayload{Accepted: ack.Accepted, Count: ack.Count, Seq: c.seq}
	if err != nil {
		reply.Code = planErrorCode(err)
		r.metrics.IncRejected()
		Log.Debugf("plan rejected: room=%s participant=%s err=%v", r.ID, c.id, err)
	} else {
		r.metrics.IncAccepted()
		r.metrics.AddDropped(len(c.plans) - ack.Count)
		Log.Debugf("plan accepted: room=%s team=%s entries=%d/%d", r.ID, ack.Team, ack.Count, len(c.plans))
	}
	p.send(MsgPlanAck, reply)
}

func planErrorCode(err error) string {
	switch {
	case errors.Is(err, sim.ErrNotPlanPhase):
		return CodeNotPlanPhase
	case errors.Is(err, sim.ErrNotController):
		return CodeNotController
	default:
		return CodeBadMessage
	}
}

// handleEvents 阶段切换与进球广播给所有参与者，并在同一 Tick 追加完整快照
func (r *Room) handleEvents(events []sim.Event) {
	for _, ev := range events {
		switch ev.Type {
		case sim.EventPhaseChange:
			r.metrics.IncPhaseChanges()
			r.broadcast(MsgPhaseChange, PhaseChangePayload{Phase: ev.Phase, Deadline: ev.Deadline.UnixMilli(), Turn: ev.Turn})
			r.stateDirty = true
			Log.Infof("phase: room=%s phase=%s turn=%d deadline=%s", r.ID, ev.Phase, ev.Turn, ev.Deadline.Format(time.RFC3339Nano))
		case sim.EventGoal:
			r.metrics.IncGoals()
			r.broadcast(MsgGoal, GoalPayload{Team: ev.Team, Score: ev.Score})
			r.stateDirty = true
			Log.Infof("goal: room=%s team=%s score=%d-%d", r.ID, ev.Team, ev.Score.Home, ev.Score.Away)
		case sim.EventKick:
			r.metrics.IncKicks()
			Log.Debugf("kick: room=%s player=%s turn=%d", r.ID, ev.PlayerID, ev.Turn)
		}
	}
}

// broadcastState 将当前完整快照广播给所有参与者
func (r *Room) broadcastState(now time.Time) {
	r.lastBroadcast = now
	r.stateDirty = false
	if len(r.participants) == 0 {
		return
	}
	r.broadcast(MsgRoomState, r.sim.Snapshot())
}

// broadcast 每种编码只序列化一次
func (r *Room) broadcast(msgType string, payload any) {
	if len(r.participants) == 0 {
		return
	}
	frames := make(map[string][]byte, 2)
	for _, p := range r.participants {
		name := p.Codec.Name()
		b, ok := frames[name]
		if !ok {
			var err error
			b, err = p.Codec.Encode(msgType, payload)
			if err != nil {
				Log.Errorf("encode %s: room=%s codec=%s: %v", msgType, r.ID, name, err)
				continue
			}
			frames[name] = b
		}
		p.Conn.Enqueue(b)
	}
	r.metrics.IncBroadcasts()
}

// idle 无参与者且没有待处理的加入请求
func (r *Room) idle() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.participants) == 0 && r.pendingJoins.Load() == 0
}

// RoomStatus 供管理接口读取
type RoomStatus struct {
	Tick         int64     `json:"tick"`
	Phase        sim.Phase `json:"phase"`
	Turn         int       `json:"turn"`
	Participants int       `json:"participants"`
	Score        sim.Score `json:"score"`
}

// Status 房间概况
func (r *Room) Status() RoomStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return RoomStatus{
		Tick:         r.tickSeq,
		Phase:        r.sim.Phase(),
		Turn:         r.sim.Turn(),
		Participants: len(r.participants),
		Score:        r.sim.Score(),
	}
}

// Snapshot 加锁读取完整快照
func (r *Room) Snapshot() sim.State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sim.Snapshot()
}

// Tuning 当前生效的房间参数
func (r *Room) Tuning() sim.Tuning {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sim.Tuning()
}

// Metrics 房间指标（原子计数，无需加锁）
func (r *Room) Metrics() *RoomMetrics { return r.metrics }
