package server

import (
	"github.com/google/uuid"

	"turnball/sim"
)

// ParticipantID 连接级唯一标识，核心只认这个 ID，不认连接
type ParticipantID string

// NewParticipantID 随机 UUID
func NewParticipantID() ParticipantID {
	return ParticipantID(uuid.NewString())
}

// Conn 发送端抽象：非阻塞入队，Close 由房间 Tick 线程调用
type Conn interface {
	Enqueue(b []byte)
	Close()
}

// Participant 房间内的一个连接参与者（控制者或观众）
type Participant struct {
	ID    ParticipantID
	Name  string
	Team  sim.Team
	Codec Codec
	Conn  Conn
}

func (p *Participant) send(msgType string, payload any) {
	b, err := p.Codec.Encode(msgType, payload)
	if err != nil {
		Log.Errorf("encode %s for %s: %v", msgType, p.ID, err)
		return
	}
	p.Conn.Enqueue(b)
}
