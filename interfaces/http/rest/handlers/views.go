package handlers

import (
	appsync "funnel-backend/application/sync"
	"funnel-backend/domain/core/entities"
	"funnel-backend/domain/core/valueobjects"
	"funnel-backend/domain/geometry"

	"funnel-backend/application/session"
)

// NodeView is a node as rendered by clients
type NodeView struct {
	ID       string                `json:"id"`
	Type     string                `json:"type"`
	Data     entities.NodeData     `json:"data"`
	Position valueobjects.Position `json:"position"`
	Dragging bool                  `json:"dragging,omitempty"`
}

// EdgeView is an edge with its routed path. The path and midpoint are
// computed server-side so every client renders identical geometry.
type EdgeView struct {
	ID           string                `json:"id"`
	Source       string                `json:"source"`
	Target       string                `json:"target"`
	SourceAnchor string                `json:"sourceAnchor"`
	TargetAnchor string                `json:"targetAnchor"`
	Path         string                `json:"path"`
	Midpoint     valueobjects.Position `json:"midpoint"`
}

// MemoView is a memo as rendered by clients. Temporary marks memos
// still waiting on a server-assigned id.
type MemoView struct {
	ID        string                `json:"id"`
	Content   string                `json:"content"`
	Position  valueobjects.Position `json:"position"`
	Size      *valueobjects.Size    `json:"size,omitempty"`
	Temporary bool                  `json:"temporary,omitempty"`
	Selected  bool                  `json:"selected,omitempty"`
}

// InteractionView reports the active gesture. TemporaryPath is the
// dangling connection curve while one is being drawn.
type InteractionView struct {
	Mode          string `json:"mode"`
	TemporaryPath string `json:"temporaryPath,omitempty"`
}

// GraphView is the complete render state of an open canvas
type GraphView struct {
	CanvasID    string            `json:"canvasId"`
	Viewport    geometry.Viewport `json:"viewport"`
	Nodes       []NodeView        `json:"nodes"`
	Edges       []EdgeView        `json:"edges"`
	Memos       []MemoView        `json:"memos"`
	Interaction InteractionView   `json:"interaction"`
	SaveStatus  appsync.Status    `json:"saveStatus"`
	ItemCount   int               `json:"itemCount"`
}

// BuildGraphView assembles the render state for one session. Edge
// paths use effective positions, so edges follow a node while it is
// dragged. Caller must hold the session lock.
func BuildGraphView(sess *session.Session) GraphView {
	canvas := sess.Canvas
	interaction := canvas.Interaction()

	view := GraphView{
		CanvasID:   canvas.ID().String(),
		Viewport:   canvas.Viewport(),
		Nodes:      make([]NodeView, 0, canvas.NodeCount()),
		Edges:      make([]EdgeView, 0, canvas.EdgeCount()),
		Memos:      make([]MemoView, 0, canvas.MemoCount()),
		SaveStatus: sess.Engine.CurrentStatus(),
		ItemCount:  canvas.ItemCount(),
	}

	for _, node := range canvas.Nodes() {
		pos, err := canvas.LivePosition(node.ID())
		if err != nil {
			pos = node.Position()
		}
		view.Nodes = append(view.Nodes, NodeView{
			ID:       node.ID().String(),
			Type:     node.Type(),
			Data:     node.Data(),
			Position: pos,
			Dragging: interaction.DraggedNodeID.Equals(node.ID()) && !node.ID().IsZero(),
		})
	}

	for _, edge := range canvas.Edges() {
		sourcePos, err := canvas.LivePosition(edge.SourceID)
		if err != nil {
			continue
		}
		targetPos, err := canvas.LivePosition(edge.TargetID)
		if err != nil {
			continue
		}
		index, count, err := canvas.SiblingPosition(edge.ID)
		if err != nil {
			index, count = 0, 1
		}
		path := geometry.EdgePath(sourcePos, targetPos, edge.SourceAnchor, edge.TargetAnchor, index, count)
		view.Edges = append(view.Edges, EdgeView{
			ID:           edge.ID.String(),
			Source:       edge.SourceID.String(),
			Target:       edge.TargetID.String(),
			SourceAnchor: edge.SourceAnchor.String(),
			TargetAnchor: edge.TargetAnchor.String(),
			Path:         path.SVG(),
			Midpoint:     path.Midpoint(),
		})
	}

	selected := canvas.SelectedMemo()
	for _, memo := range canvas.Memos() {
		view.Memos = append(view.Memos, MemoView{
			ID:        memo.ID().String(),
			Content:   memo.Content(),
			Position:  memo.Position(),
			Size:      memo.Size(),
			Temporary: memo.IsTemporary(),
			Selected:  memo.ID() == selected && selected != "",
		})
	}

	view.Interaction = InteractionView{Mode: sess.Controller.Mode()}
	if interaction.IsConnecting && interaction.TemporaryConnection != nil {
		if sourcePos, err := canvas.LivePosition(interaction.ConnectionStart); err == nil {
			temp := geometry.TemporaryPath(sourcePos, interaction.ConnectionStartAnchor, *interaction.TemporaryConnection)
			view.Interaction.TemporaryPath = temp.SVG()
		}
	}

	return view
}
