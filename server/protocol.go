package server

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/gorilla/websocket"
	"github.com/vmihailenco/msgpack/v5"

	"turnball/sim"
)

// 出站/入站消息类型
const (
	MsgJoined      = "joined"
	MsgPlan        = "plan"
	MsgPlanAck     = "plan_ack"
	MsgRoomState   = "room_state"
	MsgPhaseChange = "phase_change"
	MsgGoal        = "goal"
)

// Envelope 统一外层结构：{"type":"room_state","payload":{...}}
type Envelope struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// JoinedPayload 仅发送给加入者
type JoinedPayload struct {
	ParticipantID ParticipantID `json:"participantId"`
	Name          string        `json:"name"`
	Team          sim.Team      `json:"team"`
	Field         sim.Field     `json:"field"`
}

// PlanAckPayload 仅发送给提交者；Code 非空表示被拒绝
type PlanAckPayload struct {
	Accepted bool   `json:"accepted"`
	Count    int    `json:"count"`
	Seq      int64  `json:"seq,omitempty"`
	Code     string `json:"code,omitempty"`
}

type PhaseChangePayload struct {
	Phase    sim.Phase `json:"phase"`
	Deadline int64     `json:"deadline"`
	Turn     int       `json:"turn"`
}

type GoalPayload struct {
	Team  sim.Team  `json:"team"`
	Score sim.Score `json:"score"`
}

// Codec 每个连接按 ?codec= 选择：json 文本帧或 msgpack 二进制帧
type Codec interface {
	Name() string
	FrameType() int
	Encode(msgType string, payload any) ([]byte, error)
	Decode(b []byte, v any) error
}

type jsonCodec struct{}

func (jsonCodec) Name() string { return "json" }
func (jsonCodec) FrameType() int { return websocket.TextMessage }

func (jsonCodec) Encode(msgType string, payload any) ([]byte, error) {
	if msgType == "" {
		return nil, fmt.Errorf("encode: empty message type")
	}
	return json.Marshal(Envelope{Type: msgType, Payload: payload})
}

func (jsonCodec) Decode(b []byte, v any) error {
	return json.Unmarshal(b, v)
}

// msgpackCodec 复用 json 标签，两种编码字段名一致
type msgpackCodec struct{}

func (msgpackCodec) Name() string { return "msgpack" }
func (msgpackCodec) FrameType() int { return websocket.BinaryMessage }

func (msgpackCodec) Encode(msgType string, payload any) ([]byte, error) {
	if msgType == "" {
		return nil, fmt.Errorf("encode: empty message type")
	}
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetCustomStructTag("json")
	if err := enc.Encode(Envelope{Type: msgType, Payload: payload}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (msgpackCodec) Decode(b []byte, v any) error {
	dec := msgpack.NewDecoder(bytes.NewReader(b))
	dec.SetCustomStructTag("json")
	return dec.Decode(v)
}

var (
	JSONCodec    Codec = jsonCodec{}
	MsgpackCodec Codec = msgpackCodec{}
)

// CodecByName 空字符串默认 json
func CodecByName(name string) (Codec, bool) {
	switch name {
	case "", "json":
		return JSONCodec, true
	case "msgpack":
		return MsgpackCodec, true
	}
	return nil, false
}
