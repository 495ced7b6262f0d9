package domain

import (
	"github.com/google/uuid"
)

// Action is the net classification of an entity over a change window.
type Action string

const (
	ActionCreated   Action = "created"
	ActionModified  Action = "modified"
	ActionDeleted   Action = "deleted"
	ActionMoved     Action = "moved"
	ActionUnchanged Action = "unchanged"
)

// Direction distinguishes the two appearances of a moved entity.
type Direction string

const (
	DirectionNone Direction = ""
	// DirectionIn marks the node reported under the entity's new parent.
	DirectionIn Direction = "in"
	// DirectionOut marks the bookkeeping node reported under the old parent.
	DirectionOut Direction = "out"
)

// ReportNode is one entity in the assembled report tree.
type ReportNode struct {
	EntityID         uuid.UUID      `json:"entity_id"`
	Kind             EntityKind     `json:"kind"`
	Action           Action         `json:"action"`
	Direction        Direction      `json:"direction,omitempty"`
	ParentID         *uuid.UUID     `json:"parent_id,omitempty"`
	PreviousParentID *uuid.UUID     `json:"previous_parent_id,omitempty"`
	Fields           map[string]any `json:"fields"`
	ChangedFields    []string       `json:"changed_fields,omitempty"`
	Children         []ReportNode   `json:"children"`
}

// UnresolvedEntity is a node dropped from the tree because no snapshot could be built.
type UnresolvedEntity struct {
	EntityID uuid.UUID  `json:"entity_id"`
	Kind     EntityKind `json:"kind"`
	ParentID *uuid.UUID `json:"parent_id,omitempty"`
	Reason   string     `json:"reason"`
}

// Report is a page of root nodes for one kind and window.
type Report struct {
	Kind       EntityKind         `json:"kind"`
	Window     ChangeWindow       `json:"window"`
	Roots      []ReportNode       `json:"roots"`
	Unresolved []UnresolvedEntity `json:"unresolved,omitempty"`
	NextCursor string             `json:"next_cursor,omitempty"`
}

// Walk visits n and every descendant depth-first.
func (n ReportNode) Walk(visit func(ReportNode)) {
	visit(n)
	for _, child := range n.Children {
		child.Walk(visit)
	}
}

// Find returns the first node (depth-first) with the given id.
func (r Report) Find(id uuid.UUID) (ReportNode, bool) {
	var (
		found ReportNode
		ok    bool
	)
	for _, root := range r.Roots {
		root.Walk(func(node ReportNode) {
			if !ok && node.EntityID == id {
				found, ok = node, true
			}
		})
	}
	return found, ok
}

// FindAll returns every appearance of id in the tree.
func (r Report) FindAll(id uuid.UUID) []ReportNode {
	var nodes []ReportNode
	for _, root := range r.Roots {
		root.Walk(func(node ReportNode) {
			if node.EntityID == id {
				nodes = append(nodes, node)
			}
		})
	}
	return nodes
}
