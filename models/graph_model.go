package models

// GraphNode is one user in the graph snapshot
type GraphNode struct {
	ID              string   `json:"id"`
	Username        string   `json:"username"`
	Age             int      `json:"age"`
	Hobbies         []string `json:"hobbies"`
	PopularityScore float64  `json:"popularity_score"`
}

// GraphEdge is one undirected friendship. Source and Target keep the order in
// which the pair was first encountered.
type GraphEdge struct {
	ID     string `json:"id"`
	Source string `json:"source"`
	Target string `json:"target"`
}

// Graph is a read-only snapshot of all users and their friendships
type Graph struct {
	Nodes []GraphNode `json:"nodes"`
	Edges []GraphEdge `json:"edges"`
}
