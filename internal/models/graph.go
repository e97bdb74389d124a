package models

// NodeType enumerates the three kinds of node in the document graph.
type NodeType string

const (
	NodeSection NodeType = "section"
	NodeChunk   NodeType = "chunk"
	NodeEntity  NodeType = "entity"
)

// GraphNode is one node in the section/chunk/entity graph. Children are
// stored as node-ID strings, never as embedded node references, so the
// graph has no ownership cycles.
type GraphNode struct {
	NodeID   string                 `json:"node_id"`
	NodeType NodeType               `json:"node_type"`
	Title    string                 `json:"title"`
	Content  string                 `json:"content,omitempty"`
	ParentID string                 `json:"parent_id,omitempty"`
	Children []string               `json:"children"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// NewGraphNode builds a node with an initialized, never-nil Children slice.
func NewGraphNode(id string, nodeType NodeType, title string) GraphNode {
	return GraphNode{NodeID: id, NodeType: nodeType, Title: title, Children: []string{}}
}

// EdgeType enumerates the recognised relationships between graph nodes.
type EdgeType string

const (
	EdgeContains      EdgeType = "contains"
	EdgeHierarchy     EdgeType = "hierarchy"
	EdgeReferences    EdgeType = "references"
	EdgeRelatesTo     EdgeType = "relates_to"
	EdgeSpellToClass  EdgeType = "spell_to_class"
	EdgeFeatToClass   EdgeType = "feat_to_class"
	EdgeRuleToClass   EdgeType = "rule_to_class"
)

// GraphEdge connects two graph nodes.
type GraphEdge struct {
	EdgeID   string                 `json:"edge_id"`
	SourceID string                 `json:"source_id"`
	TargetID string                 `json:"target_id"`
	EdgeType EdgeType               `json:"edge_type"`
	Weight   float64                `json:"weight"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// CrossReference is one detected relationship between two named game
// elements (e.g. a spell and the class that casts it), found by Pass E's
// regex sweeps.
type CrossReference struct {
	RefID          string  `json:"ref_id"`
	SourceElement  string  `json:"source_element"`
	TargetElement  string  `json:"target_element"`
	RefType        string  `json:"ref_type"`
	Confidence     float64 `json:"confidence"`
	Context        string  `json:"context"`
}

// GraphSnapshot is the full graph written atomically as graph_snapshot.json.
type GraphSnapshot struct {
	Nodes           []GraphNode       `json:"nodes"`
	Edges           []GraphEdge       `json:"edges"`
	CrossReferences []CrossReference  `json:"cross_references"`
}
