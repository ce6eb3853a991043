package diagram

import (
	"bytes"
	"context"
	"fmt"

	"github.com/goccy/go-graphviz"
	"github.com/goccy/go-graphviz/cgraph"
)

// ImageFormat selects the graphviz output format.
type ImageFormat string

const (
	FormatPNG ImageFormat = "png"
	FormatSVG ImageFormat = "svg"
)

// RenderImage renders a DiagramModel with graphviz (dot layout).
func RenderImage(ctx context.Context, model *DiagramModel, format ImageFormat) ([]byte, error) {
	var gvFormat graphviz.Format
	switch format {
	case FormatPNG, "":
		gvFormat = graphviz.PNG
	case FormatSVG:
		gvFormat = graphviz.SVG
	default:
		return nil, fmt.Errorf("diagram: unsupported image format %q", format)
	}

	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("diagram: create graphviz: %w", err)
	}
	defer gv.Close()

	gv.SetLayout(graphviz.DOT)

	graph, err := gv.Graph()
	if err != nil {
		return nil, fmt.Errorf("diagram: create graph: %w", err)
	}
	defer graph.Close()

	graph.SetRankDir(cgraph.TBRank)
	if model.Title != "" {
		graph.SetLabel(model.Title)
	}

	r := &gvRenderer{root: graph, nodes: make(map[string]*cgraph.Node)}
	for _, node := range model.Nodes {
		if err := r.addNode(graph, node); err != nil {
			return nil, err
		}
	}
	for _, edge := range model.Edges {
		r.addEdge(edge)
	}

	var buf bytes.Buffer
	if err := gv.Render(ctx, graph, gvFormat, &buf); err != nil {
		return nil, fmt.Errorf("diagram: render %s: %w", format, err)
	}
	return buf.Bytes(), nil
}

type gvRenderer struct {
	root  *cgraph.Graph
	nodes map[string]*cgraph.Node
}

// addNode creates node in g and its subgraphs as nested dashed clusters.
func (r *gvRenderer) addNode(g *cgraph.Graph, node *Node) error {
	gvNode, err := g.CreateNodeByName(node.ID)
	if err != nil {
		return fmt.Errorf("diagram: create node %s: %w", node.ID, err)
	}
	gvNode.SetLabel(node.Label)
	applyNodeStyle(gvNode, node)
	r.nodes[node.ID] = gvNode

	for _, sg := range node.Children {
		sub, err := g.CreateSubGraphByName("cluster_" + node.ID + "_" + sg.Label)
		if err != nil {
			return fmt.Errorf("diagram: create cluster %s/%s: %w", node.ID, sg.Label, err)
		}
		label := sg.Label
		if sg.Taken {
			label += " (taken)"
		}
		sub.SetLabel(label)
		sub.SetStyle(cgraph.DashedGraphStyle)
		for _, child := range sg.Nodes {
			if err := r.addNode(sub, child); err != nil {
				return err
			}
		}
		for _, edge := range sg.Edges {
			r.addEdge(edge)
		}
		if len(sg.Nodes) > 0 {
			r.addEdge(Edge{From: node.ID, To: sg.Nodes[0].ID, Label: sg.Label})
		}
	}
	return nil
}

func (r *gvRenderer) addEdge(edge Edge) {
	from, to := r.nodes[edge.From], r.nodes[edge.To]
	if from == nil || to == nil {
		return
	}
	e, err := r.root.CreateEdgeByName("", from, to)
	if err == nil && edge.Label != "" {
		e.SetLabel(edge.Label)
	}
}

// applyNodeStyle sets graphviz attributes based on node kind and status.
func applyNodeStyle(gvNode *cgraph.Node, node *Node) {
	switch node.Kind {
	case NodeKindAction:
		gvNode.SetShape(cgraph.BoxShape)
	case NodeKindCondition:
		gvNode.SetShape(cgraph.DiamondShape)
	case NodeKindLoop:
		gvNode.SetShape(cgraph.BoxShape) // no record shape in go-graphviz v0.2; box is sufficient
	case NodeKindStart, NodeKindEnd:
		gvNode.SetShape(cgraph.CircleShape)
		gvNode.SetWidth(0.5)
		gvNode.SetHeight(0.5)
	}

	if node.Status != nil {
		applyStatusColor(gvNode, node.Status.Status)
	}
}

// applyStatusColor sets fill color and style based on status.
func applyStatusColor(gvNode *cgraph.Node, status string) {
	gvNode.SetStyle(cgraph.FilledNodeStyle)
	switch status {
	case StatusSuccess:
		gvNode.SetFillColor("#2d6a2d")
		gvNode.SetFontColor("white")
	case StatusError:
		gvNode.SetFillColor("#8b1a1a")
		gvNode.SetFontColor("white")
	case StatusRunning:
		gvNode.SetFillColor("#1a5276")
		gvNode.SetFontColor("white")
	case StatusSkipped:
		gvNode.SetFillColor("#e8e8e8")
		gvNode.SetFontColor("#888888")
		gvNode.SetStyle(cgraph.DashedNodeStyle)
	}
}
