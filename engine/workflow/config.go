package workflow

import (
	"fmt"

	"github.com/n8nkit/n8nctl/engine/core"
)

// ConnectionType names an output port class on a node.
type ConnectionType string

const (
	ConnectionMain            ConnectionType = "main"
	ConnectionAILanguageModel ConnectionType = "ai_languageModel"
	ConnectionAITool          ConnectionType = "ai_tool"
	ConnectionAIMemory        ConnectionType = "ai_memory"
	ConnectionAIOutputParser  ConnectionType = "ai_outputParser"
	ConnectionAIEmbedding     ConnectionType = "ai_embedding"
	ConnectionAIVectorStore   ConnectionType = "ai_vectorStore"
	ConnectionAIDocument      ConnectionType = "ai_document"
	ConnectionAITextSplitter  ConnectionType = "ai_textSplitter"
	ConnectionAIRetriever     ConnectionType = "ai_retriever"
)

// ConnectionTarget is one edge endpoint: the consuming node plus the input
// port it lands on.
type ConnectionTarget struct {
	Node  string         `json:"node"`
	Type  ConnectionType `json:"type"`
	Index int            `json:"index"`
}

// ConnectionGroup maps a connection type to its output slots. Each slot is an
// ordered list of targets fanning out from that output index.
type ConnectionGroup map[ConnectionType][][]ConnectionTarget

// Node is a unit of work in the workflow graph. Connections reference nodes
// by name (the primary key), never by pointer, so graph cycles are fine.
type Node struct {
	ID          string         `json:"id,omitempty"`
	Name        string         `json:"name"`
	Type        string         `json:"type"`
	TypeVersion float64        `json:"typeVersion,omitempty"`
	Position    []float64      `json:"position,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
	Credentials map[string]any `json:"credentials,omitempty"`
	Disabled    bool           `json:"disabled,omitempty"`
	WebhookID   string         `json:"webhookId,omitempty"`
	OnError     string         `json:"onError,omitempty"`
	Notes       string         `json:"notes,omitempty"`
}

// Version returns the node's typeVersion in comparable form.
func (n *Node) Version() core.Version {
	return core.VersionFromNumber(n.TypeVersion)
}

// Workflow is the root document.
type Workflow struct {
	ID          string                     `json:"id,omitempty"`
	Name        string                     `json:"name"`
	Nodes       []*Node                    `json:"nodes"`
	Connections map[string]ConnectionGroup `json:"connections"`
	Settings    map[string]any             `json:"settings,omitempty"`
	Active      *bool                      `json:"active,omitempty"`
	Tags        []string                   `json:"tags,omitempty"`
}

// IsActive reports whether the document marks itself active.
func (w *Workflow) IsActive() bool {
	return w.Active != nil && *w.Active
}

// GetNode looks a node up by name.
func (w *Workflow) GetNode(name string) (*Node, bool) {
	for _, n := range w.Nodes {
		if n.Name == name {
			return n, true
		}
	}
	return nil, false
}

// GetNodeByID looks a node up by id.
func (w *Workflow) GetNodeByID(id string) (*Node, bool) {
	for _, n := range w.Nodes {
		if n.ID != "" && n.ID == id {
			return n, true
		}
	}
	return nil, false
}

// NodeIndex returns the position of the named node in the node list, or -1.
func (w *Workflow) NodeIndex(name string) int {
	for i, n := range w.Nodes {
		if n.Name == name {
			return i
		}
	}
	return -1
}

// AddNode appends a node. Name collisions are the caller's concern.
func (w *Workflow) AddNode(n *Node) {
	w.Nodes = append(w.Nodes, n)
}

// RemoveNode deletes the named node and every connection touching it.
func (w *Workflow) RemoveNode(name string) bool {
	idx := w.NodeIndex(name)
	if idx < 0 {
		return false
	}
	w.Nodes = append(w.Nodes[:idx], w.Nodes[idx+1:]...)
	delete(w.Connections, name)
	for source, group := range w.Connections {
		w.Connections[source] = removeTargets(group, name)
	}
	return true
}

func removeTargets(group ConnectionGroup, name string) ConnectionGroup {
	for connType, slots := range group {
		for i, slot := range slots {
			kept := slot[:0]
			for _, t := range slot {
				if t.Node != name {
					kept = append(kept, t)
				}
			}
			slots[i] = kept
		}
		group[connType] = slots
	}
	return group
}

// Clone returns a deep copy of the workflow.
func (w *Workflow) Clone() (*Workflow, error) {
	copied, err := core.DeepCopy(w)
	if err != nil {
		return nil, fmt.Errorf("workflow: clone: %w", err)
	}
	return copied, nil
}
