package geometry

import (
	"fmt"
	"math"

	"funnel-backend/domain/core/valueobjects"
)

// Node boxes are treated as fixed-size rectangles when computing where
// an edge meets a node. These match the rendered node dimensions in
// canvas units.
const (
	NodeBoxWidth  = 160.0
	NodeBoxHeight = 80.0
)

// Routing constants. The fan spacing separates parallel sibling edges;
// the control offset keeps curves smooth regardless of node distance.
const (
	siblingFanSpacing = 15.0
	controlOffsetRate = 0.4
	minControlOffset  = 50.0
)

// Path is a cubic bezier between two connection points. The same Path
// backs both rendering and affordance placement: the delete control is
// positioned at PointAt(0.5), so it always sits on the drawn line.
type Path struct {
	Start valueobjects.Position `json:"start"`
	C1    valueobjects.Position `json:"c1"`
	C2    valueobjects.Position `json:"c2"`
	End   valueobjects.Position `json:"end"`
}

// AnchorPoint computes the connection point on a node box edge for the
// given anchor side. Positions address the box's top-left corner.
func AnchorPoint(pos valueobjects.Position, anchor valueobjects.Anchor) valueobjects.Position {
	switch anchor {
	case valueobjects.AnchorRight:
		return valueobjects.Position{X: pos.X + NodeBoxWidth, Y: pos.Y + NodeBoxHeight/2}
	case valueobjects.AnchorLeft:
		return valueobjects.Position{X: pos.X, Y: pos.Y + NodeBoxHeight/2}
	case valueobjects.AnchorTop:
		return valueobjects.Position{X: pos.X + NodeBoxWidth/2, Y: pos.Y}
	case valueobjects.AnchorBottom:
		return valueobjects.Position{X: pos.X + NodeBoxWidth/2, Y: pos.Y + NodeBoxHeight}
	default:
		// Unset anchors fall back to the box center
		return valueobjects.Position{X: pos.X + NodeBoxWidth/2, Y: pos.Y + NodeBoxHeight/2}
	}
}

// SiblingOffset computes the deterministic vertical fan-out for an edge
// among siblings sharing the same source. Siblings spread symmetrically
// around the centerline: with two edges the offsets are -7.5 and +7.5.
func SiblingOffset(indexAmongSiblings, siblingCount int) float64 {
	if siblingCount <= 1 {
		return 0
	}
	return (float64(indexAmongSiblings) - float64(siblingCount-1)/2) * siblingFanSpacing
}

// EdgePath computes the cubic bezier for an edge between two node
// boxes. The fan offset shifts the start and both control points, so
// parallel edges diverge at the source and converge at the target.
func EdgePath(sourcePos, targetPos valueobjects.Position, sourceAnchor, targetAnchor valueobjects.Anchor, indexAmongSiblings, siblingCount int) Path {
	start := AnchorPoint(sourcePos, sourceAnchor)
	end := AnchorPoint(targetPos, targetAnchor)
	return buildPath(start, end, sourceAnchor, targetAnchor, SiblingOffset(indexAmongSiblings, siblingCount))
}

// TemporaryPath computes the in-progress connection curve while the
// user is still dragging: the floating pointer position stands in for
// the target and no sibling fan-out applies.
func TemporaryPath(sourcePos valueobjects.Position, sourceAnchor valueobjects.Anchor, floating valueobjects.Position) Path {
	start := AnchorPoint(sourcePos, sourceAnchor)
	return buildPath(start, floating, sourceAnchor, valueobjects.AnchorLeft, 0)
}

func buildPath(start, end valueobjects.Position, sourceAnchor, targetAnchor valueobjects.Anchor, fan float64) Path {
	offset := controlOffset(end.X - start.X)

	start.Y += fan

	c1 := valueobjects.Position{
		X: start.X + offset*controlDirection(sourceAnchor, end.X-start.X),
		Y: start.Y,
	}
	c2 := valueobjects.Position{
		X: end.X + offset*controlDirection(targetAnchor, start.X-end.X),
		Y: end.Y + fan,
	}

	return Path{Start: start, C1: c1, C2: c2, End: end}
}

// controlOffset is the horizontal reach of the control points
func controlOffset(dx float64) float64 {
	return math.Max(math.Abs(dx)*controlOffsetRate, minControlOffset)
}

// controlDirection picks which way a control point extends from its
// endpoint. Horizontal anchors extend away from the box side; vertical
// anchors extend toward the far endpoint.
func controlDirection(anchor valueobjects.Anchor, towardOther float64) float64 {
	switch anchor {
	case valueobjects.AnchorRight:
		return 1
	case valueobjects.AnchorLeft:
		return -1
	default:
		if towardOther < 0 {
			return -1
		}
		return 1
	}
}

// PointAt evaluates the curve at parameter t using the cubic Bernstein
// basis. Midpoint placement and rendering share this exact evaluation.
func (p Path) PointAt(t float64) valueobjects.Position {
	u := 1 - t
	b0 := u * u * u
	b1 := 3 * u * u * t
	b2 := 3 * u * t * t
	b3 := t * t * t
	return valueobjects.Position{
		X: b0*p.Start.X + b1*p.C1.X + b2*p.C2.X + b3*p.End.X,
		Y: b0*p.Start.Y + b1*p.C1.Y + b2*p.C2.Y + b3*p.End.Y,
	}
}

// Midpoint returns the curve's visual midpoint, where the delete
// affordance is placed
func (p Path) Midpoint() valueobjects.Position {
	return p.PointAt(0.5)
}

// SVG renders the path as an SVG cubic bezier path description
func (p Path) SVG() string {
	return fmt.Sprintf("M %g %g C %g %g, %g %g, %g %g",
		p.Start.X, p.Start.Y, p.C1.X, p.C1.Y, p.C2.X, p.C2.Y, p.End.X, p.End.Y)
}
