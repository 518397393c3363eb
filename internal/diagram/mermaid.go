package diagram

import (
	"fmt"
	"strings"
)

// Format selects the rendering style.
type Format string

const (
	FormatFlowchart  Format = "mermaid"
	FormatContainers Format = "c4"
)

// Render converts a Spec into diagram text in the requested format.
func Render(spec Spec, format Format) (string, error) {
	switch format {
	case "", FormatFlowchart:
		return RenderFlowchart(spec), nil
	case FormatContainers:
		return RenderContainers(spec), nil
	default:
		return "", fmt.Errorf("diagram: unknown format %q", format)
	}
}

// RenderFlowchart returns a Mermaid flowchart of the spec. Clusters with
// members render as subgraphs; inter-cluster edges carry their weight when
// above one. Output is deterministic for identical input.
func RenderFlowchart(spec Spec) string {
	var sb strings.Builder
	// Enable HTML labels so the label/summary can be sized independently.
	sb.WriteString("%%{init: {'flowchart': {'htmlLabels': true}, 'themeVariables': {'fontSize': '14px'}}}%%\n")
	sb.WriteString("graph TD\n")

	for _, n := range spec.Nodes {
		if len(n.Members) > 0 {
			sb.WriteString(fmt.Sprintf("  subgraph %s[\"%s\"]\n", n.ID, escapeLabel(n.Label)))
			for _, m := range n.Members {
				sb.WriteString(fmt.Sprintf("    %s[\"%s\"]\n", m.ID, escapeLabel(m.Label)))
			}
			sb.WriteString("  end\n")
			continue
		}
		sb.WriteString(fmt.Sprintf(
			"  %s[\"<span style='font-size:16px;font-weight:600'>%s</span><br/><span style='font-size:12px'>%s</span>\"]\n",
			n.ID,
			escapeLabel(n.Label),
			escapeLabel(nodeCaption(n)),
		))
	}
	sb.WriteString("\n")

	for _, e := range spec.Edges {
		if e.Weight > 1 {
			sb.WriteString(fmt.Sprintf("  %s -- %d --> %s\n", e.From, e.Weight, e.To))
		} else {
			sb.WriteString(fmt.Sprintf("  %s --> %s\n", e.From, e.To))
		}
	}

	return sb.String()
}

// RenderContainers returns a C4-style container view: every cluster as a
// rounded box with label and caption, plus plain dependency arrows.
func RenderContainers(spec Spec) string {
	var sb strings.Builder
	sb.WriteString("%%{init: {'themeVariables': {'fontSize': '14px'}}}%%\n")
	sb.WriteString("graph TB\n")
	if spec.Title != "" {
		sb.WriteString(fmt.Sprintf("  %%%% %s\n", spec.Title))
	}

	for _, n := range spec.Nodes {
		sb.WriteString(fmt.Sprintf("  %s(\"%s<br/><i>%s</i>\")\n", n.ID, escapeLabel(n.Label), escapeLabel(nodeCaption(n))))
	}
	sb.WriteString("\n")
	for _, e := range spec.Edges {
		sb.WriteString(fmt.Sprintf("  %s --> %s\n", e.From, e.To))
	}
	sb.WriteString("\n")
	for _, n := range spec.Nodes {
		sb.WriteString(fmt.Sprintf("  style %s fill:#1168bd,color:#fff\n", n.ID))
	}
	return sb.String()
}

func nodeCaption(n Node) string {
	if n.Summary != "" {
		return n.Summary
	}
	if n.FileCount == 1 {
		return "1 file"
	}
	return fmt.Sprintf("%d files", n.FileCount)
}

// escapeLabel keeps labels from breaking mermaid syntax.
func escapeLabel(s string) string {
	return strings.ReplaceAll(s, "\"", "'")
}
