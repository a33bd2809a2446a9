// Package similarity ranks node-type candidates against an unknown type
// using Levenshtein distance plus heuristic boosts.
package similarity

import (
	"sort"
	"strings"

	"github.com/n8nkit/n8nctl/engine/workflow"
)

const (
	substringBoost = 0.15
	mistakeBoost   = 0.25
	// AutoFixThreshold is the confidence at which a suggestion is safe to
	// apply mechanically.
	AutoFixThreshold = 0.90
)

// Candidate is a known node type under consideration.
type Candidate struct {
	NodeType    string
	DisplayName string
}

// Suggestion is a ranked replacement for an unknown node type.
type Suggestion struct {
	NodeType    string  `json:"value"`
	Confidence  float64 `json:"confidence"`
	Reason      string  `json:"reason"`
	AutoFixable bool    `json:"autoFixable"`
}

// commonMistakes maps frequently-seen typos and short forms to their
// canonical node type.
var commonMistakes = map[string]string{
	"webhok":                "nodes-base.webhook",
	"webook":                "nodes-base.webhook",
	"htprequest":            "nodes-base.httpRequest",
	"httprequest":           "nodes-base.httpRequest",
	"http":                  "nodes-base.httpRequest",
	"nodes-base.htprequest": "nodes-base.httpRequest",
	"nodes-base.webhok":     "nodes-base.webhook",
	"nodes-base.webook":     "nodes-base.webhook",
	"slak":                  "nodes-base.slack",
	"googlesheet":           "nodes-base.googleSheets",
	"openai":                "nodes-langchain.openAi",
}

// Suggest ranks candidates for the unknown type and returns up to topK
// suggestions with confidence in [0,1]. Identical inputs yield identical
// outputs: ties break on node type.
func Suggest(unknownType string, candidates []Candidate, topK int) []Suggestion {
	if topK <= 0 {
		topK = 5
	}
	normalized := workflow.NormalizeNodeType(unknownType)
	lowerFull := strings.ToLower(normalized)
	lowerLocal := strings.ToLower(workflow.LocalName(normalized))

	mistakeTarget := ""
	if hit, ok := commonMistakes[lowerFull]; ok {
		mistakeTarget = hit
	} else if hit, ok := commonMistakes[lowerLocal]; ok {
		mistakeTarget = hit
	}

	out := make([]Suggestion, 0, len(candidates))
	for _, cand := range candidates {
		confidence, reason := score(lowerFull, lowerLocal, cand)
		if mistakeTarget != "" && cand.NodeType == mistakeTarget {
			confidence = clamp(confidence + mistakeBoost)
			reason = "commonly mistyped node type"
		}
		if confidence <= 0 {
			continue
		}
		out = append(out, Suggestion{
			NodeType:    cand.NodeType,
			Confidence:  confidence,
			Reason:      reason,
			AutoFixable: confidence >= AutoFixThreshold,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Confidence == out[j].Confidence {
			return out[i].NodeType < out[j].NodeType
		}
		return out[i].Confidence > out[j].Confidence
	})
	if len(out) > topK {
		out = out[:topK]
	}
	return out
}

// IsAutoFixable reports whether the suggestion is confident enough to apply
// without review.
func IsAutoFixable(s Suggestion) bool {
	return s.Confidence >= AutoFixThreshold
}

func score(lowerFull, lowerLocal string, cand Candidate) (float64, string) {
	candType := strings.ToLower(cand.NodeType)
	candLocal := strings.ToLower(workflow.LocalName(cand.NodeType))
	candDisplay := strings.ToLower(cand.DisplayName)

	best := ratio(lowerFull, candType)
	reason := "similar node type"
	if r := ratio(lowerLocal, candLocal); r > best {
		best = r
		reason = "similar node name"
	}
	if candDisplay != "" {
		if r := ratio(lowerLocal, candDisplay); r > best {
			best = r
			reason = "similar display name"
		}
	}
	if strings.Contains(candType, lowerLocal) || strings.Contains(lowerLocal, candLocal) {
		best = clamp(best + substringBoost)
		reason = "name contained in node type"
	}
	return best, reason
}

func ratio(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	maxLen := len(a)
	if len(b) > maxLen {
		maxLen = len(b)
	}
	d := Distance(a, b)
	r := 1 - float64(d)/float64(maxLen)
	if r < 0 {
		return 0
	}
	return r
}

func clamp(v float64) float64 {
	if v > 1 {
		return 1
	}
	if v < 0 {
		return 0
	}
	return v
}

// Distance computes Levenshtein edit distance between a and b.
func Distance(a, b string) int {
	if a == b {
		return 0
	}
	la := len(a)
	lb := len(b)
	if la == 0 {
		return lb
	}
	if lb == 0 {
		return la
	}
	prev := make([]int, lb+1)
	curr := make([]int, lb+1)
	for j := 0; j <= lb; j++ {
		prev[j] = j
	}
	for i := 1; i <= la; i++ {
		curr[0] = i
		ai := a[i-1]
		for j := 1; j <= lb; j++ {
			cost := 0
			if ai != b[j-1] {
				cost = 1
			}
			del := prev[j] + 1
			ins := curr[j-1] + 1
			sub := prev[j-1] + cost
			m := del
			if ins < m {
				m = ins
			}
			if sub < m {
				m = sub
			}
			curr[j] = m
		}
		prev, curr = curr, prev
	}
	return prev[lb]
}
