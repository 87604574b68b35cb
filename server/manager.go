package server

import (
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strings"
	"sync"
	"time"
	"unicode"
	"unicode/utf8"
)

var (
	ErrBadRoomID = errors.New("invalid room id")
	ErrBadName   = errors.New("invalid display name")
)

const (
	DefaultRoomID  = "room-1"
	maxNameRunes   = 24
	defaultGuestID = "guest"
)

var roomIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,32}$`)

// RoomManager 房间注册表：加入时按需创建，最后一名参与者离开后回收
type RoomManager struct {
	mu    sync.RWMutex
	rooms map[string]*Room
	cfg   Config
	now   func() time.Time
}

// NewRoomManager 创建空注册表，房间使用 cfg 生成初始参数
func NewRoomManager(cfg Config) *RoomManager {
	return &RoomManager{
		rooms: make(map[string]*Room),
		cfg:   cfg,
		now:   time.Now,
	}
}

// GetOrCreateRoom 获取或创建房间
func (m *RoomManager) GetOrCreateRoom(id string) (*Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getOrCreateLocked(id)
}

func (m *RoomManager) getOrCreateLocked(id string) (*Room, error) {
	if r, ok := m.rooms[id]; ok {
		return r, nil
	}
	r, err := NewRoom(id, m.cfg, m.now())
	if err != nil {
		return nil, fmt.Errorf("create room %s: %w", id, err)
	}
	m.rooms[id] = r
	Log.Infof("room created: %s", id)
	return r, nil
}

// Join 在注册表锁内预留加入名额，避免新房间在加入命令处理前被回收
func (m *RoomManager) Join(id string, p *Participant) (*Room, error) {
	m.mu.Lock()
	r, err := m.getOrCreateLocked(id)
	if err != nil {
		m.mu.Unlock()
		return nil, err
	}
	r.pendingJoins.Add(1)
	m.mu.Unlock()

	r.RequestJoin(p)
	return r, nil
}

// Lookup 按 ID 查找房间，不创建
func (m *RoomManager) Lookup(id string) (*Room, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.rooms[id]
	return r, ok
}

// RoomInfo 房间列表项
type RoomInfo struct {
	ID           string `json:"id"`
	Participants int    `json:"participants"`
	Phase        string `json:"phase"`
	Turn         int    `json:"turn"`
}

// ListRooms 按 ID 排序返回所有房间
func (m *RoomManager) ListRooms() []RoomInfo {
	rooms := m.snapshotRooms()
	out := make([]RoomInfo, 0, len(rooms))
	for _, r := range rooms {
		st := r.Status()
		out = append(out, RoomInfo{ID: r.ID, Participants: st.Participants, Phase: string(st.Phase), Turn: st.Turn})
	}
	return out
}

func (m *RoomManager) snapshotRooms() []*Room {
	m.mu.RLock()
	out := make([]*Room, 0, len(m.rooms))
	for _, r := range m.rooms {
		out = append(out, r)
	}
	m.mu.RUnlock()
	slices.SortFunc(out, func(a, b *Room) int { return strings.Compare(a.ID, b.ID) })
	return out
}

// disposeIdle 回收空房间；只在调度线程中、所有房间步进结束后调用
func (m *RoomManager) disposeIdle() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, r := range m.rooms {
		if r.idle() {
			delete(m.rooms, id)
			Log.Infof("room disposed: %s", id)
		}
	}
}

// ValidateRoomID 空值回退到默认房间
func ValidateRoomID(id string) (string, error) {
	if id == "" {
		return DefaultRoomID, nil
	}
	if !roomIDPattern.MatchString(id) {
		return "", fmt.Errorf("%w: %q", ErrBadRoomID, id)
	}
	return id, nil
}

// ValidateName 去除首尾空白，长度 1-24 且全部为可打印字符
func ValidateName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return defaultGuestID, nil
	}
	if utf8.RuneCountInString(name) > maxNameRunes || !utf8.ValidString(name) {
		return "", fmt.Errorf("%w: too long", ErrBadName)
	}
	for _, c := range name {
		if !unicode.IsPrint(c) {
			return "", fmt.Errorf("%w: non-printable character", ErrBadName)
		}
	}
	return name, nil
}
