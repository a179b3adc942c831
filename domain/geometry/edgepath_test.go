package geometry

import (
	"testing"

	"funnel-backend/domain/core/valueobjects"

	"github.com/stretchr/testify/assert"
)

func TestAnchorPoint_MapsToBoxSides(t *testing.T) {
	pos := valueobjects.Position{X: 100, Y: 200}

	assert.Equal(t, valueobjects.Position{X: 260, Y: 240}, AnchorPoint(pos, valueobjects.AnchorRight))
	assert.Equal(t, valueobjects.Position{X: 100, Y: 240}, AnchorPoint(pos, valueobjects.AnchorLeft))
	assert.Equal(t, valueobjects.Position{X: 180, Y: 200}, AnchorPoint(pos, valueobjects.AnchorTop))
	assert.Equal(t, valueobjects.Position{X: 180, Y: 280}, AnchorPoint(pos, valueobjects.AnchorBottom))
}

func TestSiblingOffset_SpreadsSymmetrically(t *testing.T) {
	assert.Equal(t, 0.0, SiblingOffset(0, 1))

	// Two siblings straddle the centerline
	assert.Equal(t, -7.5, SiblingOffset(0, 2))
	assert.Equal(t, 7.5, SiblingOffset(1, 2))

	// Odd counts keep the middle edge on the centerline
	assert.Equal(t, -15.0, SiblingOffset(0, 3))
	assert.Equal(t, 0.0, SiblingOffset(1, 3))
	assert.Equal(t, 15.0, SiblingOffset(2, 3))
}

func TestEdgePath_ControlOffsetScalesWithDistance(t *testing.T) {
	src := valueobjects.Position{X: 0, Y: 0}

	// Far target: offset is 40% of the horizontal anchor distance
	far := EdgePath(src, valueobjects.Position{X: 500, Y: 0}, valueobjects.AnchorRight, valueobjects.AnchorLeft, 0, 1)
	dx := far.End.X - far.Start.X
	assert.InDelta(t, far.Start.X+dx*0.4, far.C1.X, 1e-9)
	assert.InDelta(t, far.End.X-dx*0.4, far.C2.X, 1e-9)

	// Near target: the floor keeps the curve from collapsing
	near := EdgePath(src, valueobjects.Position{X: 180, Y: 0}, valueobjects.AnchorRight, valueobjects.AnchorLeft, 0, 1)
	assert.InDelta(t, near.Start.X+50, near.C1.X, 1e-9)
	assert.InDelta(t, near.End.X-50, near.C2.X, 1e-9)
}

func TestEdgePath_SiblingFanShiftsStartNotEnd(t *testing.T) {
	src := valueobjects.Position{X: 0, Y: 0}
	tgt := valueobjects.Position{X: 400, Y: 100}

	first := EdgePath(src, tgt, valueobjects.AnchorRight, valueobjects.AnchorLeft, 0, 2)
	second := EdgePath(src, tgt, valueobjects.AnchorRight, valueobjects.AnchorLeft, 1, 2)

	// Siblings diverge at the source
	assert.InDelta(t, 15.0, second.Start.Y-first.Start.Y, 1e-9)
	// And converge on the same target point
	assert.Equal(t, first.End, second.End)
}

func TestPath_MidpointLiesOnCurve(t *testing.T) {
	p := EdgePath(
		valueobjects.Position{X: 0, Y: 0},
		valueobjects.Position{X: 400, Y: 300},
		valueobjects.AnchorRight, valueobjects.AnchorLeft, 0, 1,
	)

	mid := p.Midpoint()
	assert.Equal(t, p.PointAt(0.5), mid)

	// Endpoints evaluate exactly
	assert.Equal(t, p.Start, p.PointAt(0))
	assert.Equal(t, p.End, p.PointAt(1))
}

func TestTemporaryPath_EndsAtFloatingPoint(t *testing.T) {
	floating := valueobjects.Position{X: 333, Y: 128}

	p := TemporaryPath(valueobjects.Position{X: 0, Y: 0}, valueobjects.AnchorRight, floating)

	assert.Equal(t, floating, p.End)
	assert.Equal(t, AnchorPoint(valueobjects.Position{X: 0, Y: 0}, valueobjects.AnchorRight), p.Start)
}

func TestPath_SVG(t *testing.T) {
	p := Path{
		Start: valueobjects.Position{X: 0, Y: 0},
		C1:    valueobjects.Position{X: 50, Y: 0},
		C2:    valueobjects.Position{X: 150, Y: 100},
		End:   valueobjects.Position{X: 200, Y: 100},
	}

	assert.Equal(t, "M 0 0 C 50 0, 150 100, 200 100", p.SVG())
}
