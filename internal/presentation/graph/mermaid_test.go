package graph_test

import (
	"strings"
	"testing"

	"github.com/aretw0/orderbot/internal/presentation/graph"
	"github.com/aretw0/orderbot/pkg/domain"
	"github.com/aretw0/orderbot/pkg/workflow"
)

func TestGenerateMermaid(t *testing.T) {
	tests := []struct {
		name     string
		nodes    []domain.NodeID
		edges    []workflow.Edge
		overlay  *graph.GraphOverlay
		contains []string
		excludes []string
	}{
		{
			name:  "Node Shapes",
			nodes: []domain.NodeID{domain.NodeStart, domain.NodeLoadCatalog, domain.NodeAwaitInput, domain.NodeGreet, domain.NodeEnd},
			contains: []string{
				"node_START((\"START\"))",
				"LoadCatalog[\"LoadCatalog\"]",
				"AwaitInput[/\"AwaitInput\"/]",
				"Greet[[\"Greet\"]]",
				"node_END((\"END\"))",
			},
		},
		{
			name: "Edge Labels",
			edges: []workflow.Edge{
				{From: domain.NodeGreet, Event: domain.EventNext, To: domain.NodeAwaitInput},
				{From: domain.NodeExtractIntent, Event: domain.EventBuy, To: domain.NodeRespondBuyFollowup},
			},
			contains: []string{
				"Greet --> AwaitInput",
				"ExtractIntent -- \"buy\" --> RespondBuyFollowup",
			},
		},
		{
			name:  "Overlay",
			nodes: []domain.NodeID{domain.NodeAwaitInput},
			overlay: &graph.GraphOverlay{
				VisitedNodes: []domain.NodeID{domain.NodeGreet, domain.NodeGreet},
				CurrentNode:  domain.NodeAwaitInput,
			},
			contains: []string{
				"classDef current",
				"class Greet visited;",
				"class AwaitInput current;",
			},
		},
		{
			name:     "No Overlay",
			nodes:    []domain.NodeID{domain.NodeAwaitInput},
			excludes: []string{"classDef"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := graph.GenerateMermaid(tt.nodes, tt.edges, tt.overlay)
			if !strings.HasPrefix(got, "graph TD\n") {
				t.Errorf("missing header:\n%s", got)
			}
			for _, want := range tt.contains {
				if !strings.Contains(got, want) {
					t.Errorf("expected output to contain %q\nGot:\n%s", want, got)
				}
			}
			for _, bad := range tt.excludes {
				if strings.Contains(got, bad) {
					t.Errorf("expected output not to contain %q\nGot:\n%s", bad, got)
				}
			}
			if n := strings.Count(got, "class Greet visited;"); n > 1 {
				t.Errorf("visited node styled %d times", n)
			}
		})
	}
}

func TestDialogue(t *testing.T) {
	st := domain.NewConversationState("s", "An")
	st.CurrentNode = domain.NodeAwaitInput

	got := graph.Dialogue(graph.OverlayFor(st))
	for _, want := range []string{
		"ExtractIntent -- \"not_buy\" --> RespondCheckoutHandoff",
		"ExtractIntent -- \"unclear\" --> RespondClarify",
		"RespondCheckoutHandoff --> node_END",
		"class AwaitInput current;",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("expected %q in\n%s", want, got)
		}
	}
	if graph.OverlayFor(nil) != nil {
		t.Error("nil state has no overlay")
	}
}
