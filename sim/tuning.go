package sim

import "time"

const (
	// TicksPerSecond 物理步进频率（50 TPS，即 20ms 一步）
	TicksPerSecond = 50

	// MaxWaypoints 每个实体单次计划的最大路径点数，限制模拟开销
	MaxWaypoints = 120

	// PlayersPerTeam 每队球员数；MaxEntities 为房间实体上限
	PlayersPerTeam = 5
	MaxEntities    = 2 * PlayersPerTeam

	PlayerRadius = 1.2
	BallRadius   = 0.6

	moveEpsilon    = 1e-6
	kickSeparation = 0.01
)

// Tuning 房间可调参数，管理接口可热更新（下一 Tick 生效）
type Tuning struct {
	PlanDuration    time.Duration `json:"-"`
	ResolveDuration time.Duration `json:"-"`

	Dt                   float64 `json:"dt"`          // 每步秒数
	PlayerSpeed          float64 `json:"playerSpeed"` // 单位/秒
	KickMinSpeed         float64 `json:"kickMinSpeed"`
	KickMaxSpeed         float64 `json:"kickMaxSpeed"`
	BallDampingPerSecond float64 `json:"ballDamping"` // 每秒速度保留比例
	WallBounce           float64 `json:"wallBounce"`
}

// DefaultTuning 默认参数
func DefaultTuning() Tuning {
	return Tuning{
		PlanDuration:         15 * time.Second,
		ResolveDuration:      4 * time.Second,
		Dt:                   1.0 / TicksPerSecond,
		PlayerSpeed:          14,
		KickMinSpeed:         8,
		KickMaxSpeed:         35,
		BallDampingPerSecond: 0.35,
		WallBounce:           0.8,
	}
}

// Sanitize 将非法取值回退为默认值，保证积分器输入有界
func (t Tuning) Sanitize() Tuning {
	def := DefaultTuning()
	if t.PlanDuration <= 0 {
		t.PlanDuration = def.PlanDuration
	}
	if t.ResolveDuration <= 0 {
		t.ResolveDuration = def.ResolveDuration
	}
	if !(t.Dt > 0 && t.Dt <= 1) {
		t.Dt = def.Dt
	}
	if !(t.PlayerSpeed >= 0) || !finite(t.PlayerSpeed) {
		t.PlayerSpeed = def.PlayerSpeed
	}
	if !(t.KickMinSpeed >= 0) || !finite(t.KickMinSpeed) {
		t.KickMinSpeed = def.KickMinSpeed
	}
	if !(t.KickMaxSpeed >= t.KickMinSpeed) || !finite(t.KickMaxSpeed) {
		t.KickMaxSpeed = t.KickMinSpeed
	}
	if !(t.BallDampingPerSecond > 0 && t.BallDampingPerSecond <= 1) {
		t.BallDampingPerSecond = def.BallDampingPerSecond
	}
	if !(t.WallBounce >= 0 && t.WallBounce <= 1) {
		t.WallBounce = def.WallBounce
	}
	return t
}
