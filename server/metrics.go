package server

import (
	"sync/atomic"
)

// RoomMetrics 记录房间运行期的关键指标（用于监控与调试）
type RoomMetrics struct {
	TickCount         int64 // 统计的 Tick 次数
	PlansAccepted     int64 // 被接受的计划提交
	PlansRejected     int64 // 被拒绝的计划提交（非 PLAN 阶段、非控制者）
	EntriesDropped    int64 // 提交中被逐条丢弃的非法条目
	RateLimited       int64 // 因限流被拒绝的消息数
	OldSeqIgnored     int64 // 因旧序列被忽略的提交数
	ChanFullDiscarded int64 // 因收件箱满被丢弃的消息数
	Kicks             int64
	Goals             int64
	PhaseChanges      int64
	Broadcasts        int64
	Faults            int64 // Tick 中恢复的异常
	TotalTickNs       int64 // Tick 累计耗时（纳秒）
}

func (m *RoomMetrics) IncAccepted() { atomic.AddInt64(&m.PlansAccepted, 1) }
func (m *RoomMetrics) IncRejected() { atomic.AddInt64(&m.PlansRejected, 1) }
func (m *RoomMetrics) AddDropped(n int) { atomic.AddInt64(&m.EntriesDropped, int64(n)) }
func (m *RoomMetrics) IncRateLimited() { atomic.AddInt64(&m.RateLimited, 1) }
func (m *RoomMetrics) IncOldSeqIgnored() { atomic.AddInt64(&m.OldSeqIgnored, 1) }
func (m *RoomMetrics) IncChanFullDiscarded() { atomic.AddInt64(&m.ChanFullDiscarded, 1) }
func (m *RoomMetrics) IncKicks() { atomic.AddInt64(&m.Kicks, 1) }
func (m *RoomMetrics) IncGoals() { atomic.AddInt64(&m.Goals, 1) }
func (m *RoomMetrics) IncPhaseChanges() { atomic.AddInt64(&m.PhaseChanges, 1) }
func (m *RoomMetrics) IncBroadcasts() { atomic.AddInt64(&m.Broadcasts, 1) }
func (m *RoomMetrics) IncFaults() { atomic.AddInt64(&m.Faults, 1) }
func (m *RoomMetrics) AddTick(ns int64) {
	atomic.AddInt64(&m.TickCount, 1)
	atomic.AddInt64(&m.TotalTickNs, ns)
}

// Snapshot 返回只读副本，便于 HTTP 输出
func (m *RoomMetrics) Snapshot() map[string]any {
	tick := atomic.LoadInt64(&m.TickCount)
	total := atomic.LoadInt64(&m.TotalTickNs)
	var avgMs float64
	if tick > 0 {
		avgMs = float64(total) / float64(tick) / 1e6
	}
	return map[string]any{
		"tick_count":          tick,
		"plans_accepted":      atomic.LoadInt64(&m.PlansAccepted),
		"plans_rejected":      atomic.LoadInt64(&m.PlansRejected),
		"entries_dropped":     atomic.LoadInt64(&m.EntriesDropped),
		"rate_limited":        atomic.LoadInt64(&m.RateLimited),
		"old_seq_ignored":     atomic.LoadInt64(&m.OldSeqIgnored),
		"chan_full_discarded": atomic.LoadInt64(&m.ChanFullDiscarded),
		"kicks":               atomic.LoadInt64(&m.Kicks),
		"goals":               atomic.LoadInt64(&m.Goals),
		"phase_changes":       atomic.LoadInt64(&m.PhaseChanges),
		"broadcasts":          atomic.LoadInt64(&m.Broadcasts),
		"faults":              atomic.LoadInt64(&m.Faults),
		"avg_tick_ms":         avgMs,
	}
}
