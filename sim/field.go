package sim

import "github.com/go-gl/mathgl/mgl64"

// Field 场地几何：矩形 [0,W]x[0,H]，左右两侧各有一个垂直居中的球门
type Field struct {
	Width     float64 `json:"width"`
	Height    float64 `json:"height"`
	GoalWidth float64 `json:"goalWidth"`
	GoalDepth float64 `json:"goalDepth"` // 球网深度（越过底线的距离）
}

// DefaultField 默认 100x60 场地
func DefaultField() Field {
	return Field{Width: 100, Height: 60, GoalWidth: 14, GoalDepth: 2.4}
}

// MouthSpan 返回球门口在 y 方向的区间
func (f Field) MouthSpan() (top, bottom float64) {
	mid := f.Height / 2
	return mid - f.GoalWidth/2, mid + f.GoalWidth/2
}

// InMouthSpan y 是否落在球门口区间内（含端点）
func (f Field) InMouthSpan(y float64) bool {
	top, bottom := f.MouthSpan()
	return y >= top && y <= bottom
}

// Clamp 将点裁剪进场地矩形
func (f Field) Clamp(p mgl64.Vec2) mgl64.Vec2 {
	return mgl64.Vec2{
		mgl64.Clamp(p.X(), 0, f.Width),
		mgl64.Clamp(p.Y(), 0, f.Height),
	}
}

// Contains 点是否在场地矩形内（含边界）
func (f Field) Contains(p mgl64.Vec2) bool {
	return p.X() >= 0 && p.X() <= f.Width && p.Y() >= 0 && p.Y() <= f.Height
}

// Center 中圈开球点
func (f Field) Center() mgl64.Vec2 {
	return mgl64.Vec2{f.Width / 2, f.Height / 2}
}

func (f Field) valid() bool {
	return f.Width > 0 && f.Height > 0 && f.GoalWidth > 0 && f.GoalWidth <= f.Height && f.GoalDepth > 0 &&
		finite(f.Width) && finite(f.Height) && finite(f.GoalDepth)
}
