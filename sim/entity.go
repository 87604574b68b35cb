package sim

import (
	"fmt"
	"slices"
	"strings"

	"github.com/go-gl/mathgl/mgl64"
)

// Team 队伍标识；spectator 仅作为 Join 结果出现
type Team string

const (
	TeamHome      Team = "home"
	TeamAway      Team = "away"
	TeamSpectator Team = "spectator"
)

// index 返回队伍在双队数组中的下标，非控制队伍返回 -1
func (t Team) index() int {
	switch t {
	case TeamHome:
		return 0
	case TeamAway:
		return 1
	default:
		return -1
	}
}

// Playing 是否为参赛队伍（home/away）
func (t Team) Playing() bool { return t.index() >= 0 }

// Opponent 对方队伍；观众没有对手
func (t Team) Opponent() Team {
	switch t {
	case TeamHome:
		return TeamAway
	case TeamAway:
		return TeamHome
	default:
		return TeamSpectator
	}
}

// attackDir 进攻方向：home 攻右侧球门，away 攻左侧球门
func (t Team) attackDir() mgl64.Vec2 {
	if t == TeamAway {
		return mgl64.Vec2{-1, 0}
	}
	return mgl64.Vec2{1, 0}
}

var teams = [2]Team{TeamHome, TeamAway}

// Role 球员角色，仅用于展示
type Role string

const (
	RoleGK Role = "GK"
	RoleDF Role = "DF"
	RoleMF Role = "MF"
	RoleFW Role = "FW"
)

// Player 房间内的球员实体（服务端权威状态）
type Player struct {
	ID     string
	Team   Team
	Role   Role
	Pos    mgl64.Vec2
	Radius float64
	Alive  bool
}

// Ball 房间唯一的球
type Ball struct {
	Pos    mgl64.Vec2
	Vel    mgl64.Vec2
	Radius float64
}

// 开球阵型（home 半场，按场地比例）；away 沿中线镜像
var formation = []struct {
	role Role
	x, y float64
}{
	{RoleGK, 0.05, 0.50},
	{RoleDF, 0.20, 0.30},
	{RoleDF, 0.20, 0.70},
	{RoleMF, 0.32, 0.50},
	{RoleFW, 0.44, 0.50},
}

// newPlayers 按开球阵型创建双方球员，结果按 ID 升序
func newPlayers(f Field) []*Player {
	players := make([]*Player, 0, MaxEntities)
	for _, team := range teams {
		prefix := strings.ToLower(string(team[0]))
		for i, slot := range formation {
			players = append(players, &Player{
				ID:     fmt.Sprintf("%s%d", prefix, i+1),
				Team:   team,
				Role:   slot.role,
				Radius: PlayerRadius,
				Alive:  true,
			})
		}
	}
	slices.SortFunc(players, func(a, b *Player) int { return strings.Compare(a.ID, b.ID) })
	kickoff(f, players)
	return players
}

// kickoff 将球员放回开球位置
func kickoff(f Field, players []*Player) {
	slot := map[Team]int{}
	for _, p := range players {
		s := formation[slot[p.Team]%len(formation)]
		slot[p.Team]++
		x := s.x
		if p.Team == TeamAway {
			x = 1 - x
		}
		p.Pos = f.Clamp(mgl64.Vec2{x * f.Width, s.y * f.Height})
	}
}

func kickoffBall(f Field) Ball {
	return Ball{Pos: f.Center(), Radius: BallRadius}
}
