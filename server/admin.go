package server

import (
	"encoding/json"
	"net/http"
	"time"

	"turnball/sim"
)

// TuningPatch 部分更新：指针为 nil 的字段保持不变
type TuningPatch struct {
	PlanSeconds    *float64 `json:"planSeconds,omitempty"`
	ResolveSeconds *float64 `json:"resolveSeconds,omitempty"`
	PlayerSpeed    *float64 `json:"playerSpeed,omitempty"`
	KickMinSpeed   *float64 `json:"kickMinSpeed,omitempty"`
	KickMaxSpeed   *float64 `json:"kickMaxSpeed,omitempty"`
	BallDamping    *float64 `json:"ballDamping,omitempty"`
	WallBounce     *float64 `json:"wallBounce,omitempty"`
}

func (p TuningPatch) apply(t sim.Tuning) sim.Tuning {
	if p.PlanSeconds != nil {
		t.PlanDuration = seconds(*p.PlanSeconds)
	}
	if p.ResolveSeconds != nil {
		t.ResolveDuration = seconds(*p.ResolveSeconds)
	}
	if p.PlayerSpeed != nil {
		t.PlayerSpeed = *p.PlayerSpeed
	}
	if p.KickMinSpeed != nil {
		t.KickMinSpeed = *p.KickMinSpeed
	}
	if p.KickMaxSpeed != nil {
		t.KickMaxSpeed = *p.KickMaxSpeed
	}
	if p.BallDamping != nil {
		t.BallDampingPerSecond = *p.BallDamping
	}
	if p.WallBounce != nil {
		t.WallBounce = *p.WallBounce
	}
	return t
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

type tuningView struct {
	PlanSeconds    float64 `json:"planSeconds"`
	ResolveSeconds float64 `json:"resolveSeconds"`
	sim.Tuning
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (m *RoomManager) roomFromQuery(w http.ResponseWriter, r *http.Request) (*Room, bool) {
	id, err := ValidateRoomID(r.URL.Query().Get("room"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return nil, false
	}
	room, ok := m.Lookup(id)
	if !ok {
		http.Error(w, "room not found", http.StatusNotFound)
		return nil, false
	}
	return room, true
}

// HandleAdminConfig 提供房间参数的读取与热更新
// GET /admin/config?room=room-1  返回当前参数
// POST /admin/config?room=room-1 以 JSON 载荷更新部分字段，下一 Tick 生效
func (m *RoomManager) HandleAdminConfig(w http.ResponseWriter, r *http.Request) {
	room, ok := m.roomFromQuery(w, r)
	if !ok {
		return
	}
	switch r.Method {
	case http.MethodGet:
		t := room.Tuning()
		writeJSON(w, http.StatusOK, tuningView{
			PlanSeconds:    t.PlanDuration.Seconds(),
			ResolveSeconds: t.ResolveDuration.Seconds(),
			Tuning:         t,
		})
	case http.MethodPost:
		var body TuningPatch
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4<<10)).Decode(&body); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		room.RequestTune(body)
		writeJSON(w, http.StatusAccepted, map[string]any{"ok": true})
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// HandleMetrics 输出指定房间的运行指标
// GET /metrics?room=room-1
func (m *RoomManager) HandleMetrics(w http.ResponseWriter, r *http.Request) {
	room, ok := m.roomFromQuery(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"room":    room.ID,
		"status":  room.Status(),
		"metrics": room.Metrics().Snapshot(),
	})
}

// HandleRooms GET /rooms 列出所有房间
func (m *RoomManager) HandleRooms(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, m.ListRooms())
}
