package graph

import (
	"fmt"
	"strings"

	"github.com/aretw0/orderbot/pkg/domain"
	"github.com/aretw0/orderbot/pkg/workflow"
)

// GraphOverlay contains dynamic state data to visualize on the graph.
type GraphOverlay struct {
	VisitedNodes []domain.NodeID
	CurrentNode  domain.NodeID
}

// OverlayFor highlights where a session currently is.
func OverlayFor(st *domain.ConversationState) *GraphOverlay {
	if st == nil {
		return nil
	}
	return &GraphOverlay{CurrentNode: st.CurrentNode}
}

// Dialogue renders the engine's transition table.
func Dialogue(overlay *GraphOverlay) string {
	return GenerateMermaid(workflow.Nodes(), workflow.Edges(), overlay)
}

// GenerateMermaid produces a Mermaid flowchart syntax string from nodes and edges.
// It applies semantic styling:
// - START/END: ((Circle))
// - Model calls: [[Subroutine]]
// - AwaitInput: [/Parallelogram/]
// - Default: [Rectangle]
// Branch edges carry their event as label; plain "next" edges are unlabelled.
// It also applies overlay styles (Visited/Current) if provided.
func GenerateMermaid(nodes []domain.NodeID, edges []workflow.Edge, overlay *GraphOverlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	for _, node := range nodes {
		opener, closer := shape(node)
		fmt.Fprintf(&sb, "    %s%s\"%s\"%s\n", sanitizeMermaidID(node), opener, node, closer)
	}

	for _, e := range edges {
		arrow := "-->"
		if e.Event != domain.EventNext {
			arrow = fmt.Sprintf("-- \"%s\" -->", strings.ReplaceAll(string(e.Event), "\"", "'"))
		}
		fmt.Fprintf(&sb, "    %s %s %s\n", sanitizeMermaidID(e.From), arrow, sanitizeMermaidID(e.To))
	}

	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		// Force black text (color:#000) for high-contrast on light backgrounds, regardless of theme (Light/Dark)
		sb.WriteString("    classDef visited fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")

		visitedSet := make(map[string]bool)
		for _, id := range overlay.VisitedNodes {
			safeID := sanitizeMermaidID(id)
			if !visitedSet[safeID] && safeID != "" {
				visitedSet[safeID] = true
				fmt.Fprintf(&sb, "    class %s visited;\n", safeID)
			}
		}

		if overlay.CurrentNode != "" {
			fmt.Fprintf(&sb, "    class %s current;\n", sanitizeMermaidID(overlay.CurrentNode))
		}
	}

	return sb.String()
}

func shape(node domain.NodeID) (string, string) {
	switch node {
	case domain.NodeStart, domain.NodeEnd:
		return "((", "))"
	case domain.NodeAwaitInput:
		return "[/", "/]"
	case domain.NodeGreet, domain.NodeExtractIntent, domain.NodeRespondBuyFollowup,
		domain.NodeRespondClarify, domain.NodeRespondCheckoutHandoff:
		return "[[", "]]"
	default:
		return "[", "]"
	}
}

// sanitizeMermaidID avoids reserved words ("end" breaks Mermaid flowcharts)
// and characters Mermaid treats as syntax.
func sanitizeMermaidID(id domain.NodeID) string {
	s := string(id)
	s = strings.ReplaceAll(s, ".", "_")
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	if strings.EqualFold(s, "end") || strings.EqualFold(s, "start") {
		s = "node_" + s
	}
	return s
}
