package session

import (
	"funnel-backend/application/ports"
	"funnel-backend/domain/core/aggregates"
	"funnel-backend/domain/core/entities"
	"funnel-backend/domain/core/valueobjects"
)

// BuildSnapshot serializes the canvas into its wire shape. Node
// positions use the effective render position, so a save firing
// mid-drag captures what the user currently sees. Memos still waiting
// on a server id are excluded; the reconciler persists them through
// their own create path.
//
// Caller must hold the session lock.
func BuildSnapshot(canvas *aggregates.Canvas) *ports.Snapshot {
	snap := &ports.Snapshot{
		Version: ports.SnapshotVersion,
		Nodes:   make([]ports.NodeRecord, 0, canvas.NodeCount()),
		Edges:   make([]ports.EdgeRecord, 0, canvas.EdgeCount()),
	}

	for _, node := range canvas.Nodes() {
		pos, err := canvas.LivePosition(node.ID())
		if err != nil {
			pos = node.Position()
		}
		data := node.Data()
		snap.Nodes = append(snap.Nodes, ports.NodeRecord{
			ID:   node.ID().String(),
			Type: node.Type(),
			Data: ports.NodeDataRecord{
				Title:    data.Title,
				Subtitle: data.Subtitle,
				Icon:     data.Icon,
				Color:    data.Color,
				Size:     data.Size,
			},
			Position: pos,
		})
	}

	for _, edge := range canvas.Edges() {
		snap.Edges = append(snap.Edges, ports.EdgeRecord{
			ID:           edge.ID.String(),
			Source:       edge.SourceID.String(),
			Target:       edge.TargetID.String(),
			SourceAnchor: edge.SourceAnchor.String(),
			TargetAnchor: edge.TargetAnchor.String(),
		})
	}

	for _, memo := range canvas.Memos() {
		if memo.IsTemporary() {
			continue
		}
		snap.Memos = append(snap.Memos, ports.MemoRecord{
			ID:       memo.ID().String(),
			Content:  memo.Content(),
			Position: memo.Position(),
			Size:     memo.Size(),
		})
	}

	return snap
}

// HydrateCanvas rebuilds a canvas aggregate from a loaded snapshot.
// Records that fail reconstruction are skipped with the error returned
// through the aggregate's own validation instead of aborting the whole
// load; a single bad edge should not make the canvas unopenable.
func HydrateCanvas(canvasID aggregates.CanvasID, userID, name string, snap *ports.Snapshot) (*aggregates.Canvas, error) {
	canvas, err := aggregates.ReconstructCanvas(canvasID, userID, name)
	if err != nil {
		return nil, err
	}
	if snap == nil {
		return canvas, nil
	}

	for _, rec := range snap.Nodes {
		nodeID, err := valueobjects.NewNodeIDFromString(rec.ID)
		if err != nil {
			continue
		}
		node, err := entities.ReconstructNode(nodeID, rec.Type, entities.NodeData{
			Title:    rec.Data.Title,
			Subtitle: rec.Data.Subtitle,
			Icon:     rec.Data.Icon,
			Color:    rec.Data.Color,
			Size:     rec.Data.Size,
		}, rec.Position)
		if err != nil {
			continue
		}
		if err := canvas.AddNode(node); err != nil {
			return nil, err
		}
	}

	for _, rec := range snap.Edges {
		sourceID, err := valueobjects.NewNodeIDFromString(rec.Source)
		if err != nil {
			continue
		}
		targetID, err := valueobjects.NewNodeIDFromString(rec.Target)
		if err != nil {
			continue
		}
		sourceAnchor, _ := valueobjects.ParseAnchor(rec.SourceAnchor)
		targetAnchor, _ := valueobjects.ParseAnchor(rec.TargetAnchor)
		edge := &aggregates.Edge{
			ID:           valueobjects.EdgeID(rec.ID),
			SourceID:     sourceID,
			TargetID:     targetID,
			SourceAnchor: sourceAnchor,
			TargetAnchor: targetAnchor,
		}
		if err := canvas.RestoreEdge(edge); err != nil {
			// Orphan or duplicate edges in a stored snapshot are
			// dropped on load
			continue
		}
	}

	for _, rec := range snap.Memos {
		memoID, err := valueobjects.NewMemoIDFromString(rec.ID)
		if err != nil {
			continue
		}
		memo, err := entities.ReconstructMemo(memoID, rec.Content, rec.Position, rec.Size)
		if err != nil {
			continue
		}
		if err := canvas.AddMemo(memo); err != nil {
			return nil, err
		}
	}

	canvas.MarkEventsAsCommitted()
	return canvas, nil
}
