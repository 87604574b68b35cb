package server

import "turnball/sim"

// InboundMessage 客户端入站消息
// 示例：{"type":"plan","seq":3,"plans":{"h1":{"path":[{"x":40,"y":30}],"kick":{"dx":1,"dy":0,"power":0.8}}}}
type InboundMessage struct {
	Type  string                 `json:"type"`
	Seq   int64                  `json:"seq,omitempty"` // 客户端本地序列号，用于去重与确认
	Plans map[string]sim.RawPlan `json:"plans,omitempty"`
}

// 房间收件箱中的命令，在 Tick 线程中统一处理
type joinCmd struct {
	p *Participant
}

type leaveCmd struct {
	id ParticipantID
}

type planCmd struct {
	id    ParticipantID
	seq   int64
	plans map[string]sim.RawPlan
}

// rejectCmd 传输层拒绝（限流、格式错误），回执也经由 Tick 线程发出
type rejectCmd struct {
	id   ParticipantID
	seq  int64
	code string
}

type tuneCmd struct {
	patch TuningPatch
}

// 回执错误码
const (
	CodeNotPlanPhase  = "not_plan_phase"
	CodeNotController = "not_controller"
	CodeRateLimited   = "rate_limited"
	CodeBadMessage    = "bad_message"
	CodeStaleSeq      = "stale_seq"
)
