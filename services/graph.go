package services

import "user-network/models"

// BuildGraph assembles one node per user and one edge per undirected
// friendship. An edge keeps the orientation of the first traversal that
// reached it; the reverse direction is skipped. Friend ids that do not
// resolve to a user produce no edge.
func BuildGraph(users []models.User) models.Graph {
	byID := indexUsers(users)
	graph := models.Graph{
		Nodes: make([]models.GraphNode, 0, len(users)),
		Edges: []models.GraphEdge{},
	}

	for i := range users {
		user := &users[i]
		graph.Nodes = append(graph.Nodes, models.GraphNode{
			ID:              user.ID,
			Username:        user.Username,
			Age:             user.Age,
			Hobbies:         user.Hobbies,
			PopularityScore: PopularityScore(user, byID),
		})
	}

	seen := make(map[[2]string]struct{})
	for i := range users {
		user := &users[i]
		for _, friendID := range user.Friends {
			if _, ok := byID[friendID]; !ok {
				continue
			}
			key := pairKey(user.ID, friendID)
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			graph.Edges = append(graph.Edges, models.GraphEdge{
				ID:     user.ID + "-" + friendID,
				Source: user.ID,
				Target: friendID,
			})
		}
	}
	return graph
}

func pairKey(a, b string) [2]string {
	if a > b {
		a, b = b, a
	}
	return [2]string{a, b}
}
