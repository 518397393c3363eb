package runner

import (
	"fmt"
	"strings"
)

// WorkerDescriptor is the public description of one pipeline worker.
type WorkerDescriptor struct {
	Key      string   `json:"key"`
	Summary  string   `json:"summary"`
	Requires []string `json:"requires,omitempty"`
}

// BuildWorkerDescriptors lists all registered workers in key order.
func BuildWorkerDescriptors(resolver SpecResolver) []WorkerDescriptor {
	if resolver == nil {
		return nil
	}
	specs := resolver.List()
	descs := make([]WorkerDescriptor, 0, len(specs))
	for _, s := range specs {
		descs = append(descs, WorkerDescriptor{
			Key:      s.Key,
			Summary:  s.Description,
			Requires: append([]string(nil), s.Requires...),
		})
	}
	return descs
}

// GenerateMermaidGraph returns a Mermaid flowchart string of the pipeline itself.
func GenerateMermaidGraph(resolver SpecResolver) string {
	descs := BuildWorkerDescriptors(resolver)
	var sb strings.Builder
	// Enable HTML labels so the key/summary can be sized independently.
	sb.WriteString("%%{init: {'flowchart': {'htmlLabels': true}, 'themeVariables': {'fontSize': '14px'}}}%%\n")
	sb.WriteString("graph TD\n")

	for _, d := range descs {
		summary := strings.ReplaceAll(d.Summary, "\"", "'")
		sb.WriteString(fmt.Sprintf(
			"  %s[\"<span style='font-size:16px;font-weight:600'>%s</span><br/><span style='font-size:12px'>%s</span>\"]\n",
			d.Key,
			d.Key,
			summary,
		))
	}
	sb.WriteString("\n")

	for _, d := range descs {
		for _, req := range d.Requires {
			sb.WriteString(fmt.Sprintf("  %s --> %s\n", req, d.Key))
		}
	}

	return sb.String()
}
