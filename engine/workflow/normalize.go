package workflow

import "strings"

const (
	legacyBasePrefix      = "n8n-nodes-base."
	scopedLangchainPrefix = "@n8n/n8n-nodes-langchain."
	shortBasePrefix       = "nodes-base."
	shortLangchainPrefix  = "nodes-langchain."
)

// NormalizeNodeType converts a node type to its short form
// ({packagePrefix}.{localName}). Idempotent: already-short inputs pass
// through unchanged.
func NormalizeNodeType(nodeType string) string {
	switch {
	case strings.HasPrefix(nodeType, legacyBasePrefix):
		return shortBasePrefix + strings.TrimPrefix(nodeType, legacyBasePrefix)
	case strings.HasPrefix(nodeType, scopedLangchainPrefix):
		return shortLangchainPrefix + strings.TrimPrefix(nodeType, scopedLangchainPrefix)
	default:
		return nodeType
	}
}

// DisplayNodeType converts a short-form node type back to the form the
// control plane renders.
func DisplayNodeType(nodeType string) string {
	switch {
	case strings.HasPrefix(nodeType, shortBasePrefix):
		return legacyBasePrefix + strings.TrimPrefix(nodeType, shortBasePrefix)
	case strings.HasPrefix(nodeType, shortLangchainPrefix):
		return scopedLangchainPrefix + strings.TrimPrefix(nodeType, shortLangchainPrefix)
	default:
		return nodeType
	}
}

// LocalName strips the package prefix from a node type.
func LocalName(nodeType string) string {
	t := NormalizeNodeType(nodeType)
	if i := strings.LastIndex(t, "."); i >= 0 {
		return t[i+1:]
	}
	return t
}
