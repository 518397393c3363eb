package diagram

// Spec is the normalized diagram model handed to renderers.
// It is fully resolved: every id is unique and sanitized, edges reference
// existing nodes, and ordering is deterministic.
type Spec struct {
	Title string `json:"title"`
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// Node is one diagram node, usually a cluster. In detailed specs a node also
// carries its member files.
type Node struct {
	ID        string   `json:"id"`
	Label     string   `json:"label"`
	Summary   string   `json:"summary,omitempty"`
	FileCount int      `json:"file_count"`
	Members   []Member `json:"members,omitempty"`
}

// Member is a file shown inside a cluster subgraph.
type Member struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// Edge is a weighted dependency between two nodes.
type Edge struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Weight int    `json:"weight"`
}
