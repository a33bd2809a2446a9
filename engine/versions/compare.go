package versions

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"

	"github.com/n8nkit/n8nctl/engine/workflow"
)

// Comparison is the structural delta between two stored snapshots.
type Comparison struct {
	FromVersion       int            `json:"fromVersion"`
	ToVersion         int            `json:"toVersion"`
	AddedNodes        []string       `json:"addedNodes"`
	RemovedNodes      []string       `json:"removedNodes"`
	ModifiedNodes     []string       `json:"modifiedNodes"`
	ConnectionChanges int            `json:"connectionChanges"`
	SettingChanges    map[string]any `json:"settingChanges"`
}

// Compare diffs two versions of the same workflow by version id.
func (s *Store) Compare(ctx context.Context, v1ID, v2ID string) (*Comparison, error) {
	v1, err := s.Get(ctx, v1ID)
	if err != nil {
		return nil, err
	}
	v2, err := s.Get(ctx, v2ID)
	if err != nil {
		return nil, err
	}
	if v1.WorkflowID != v2.WorkflowID {
		return nil, fmt.Errorf("versions: compare: versions belong to different workflows (%s, %s)",
			v1.WorkflowID, v2.WorkflowID)
	}
	return CompareSnapshots(v1.Snapshot, v2.Snapshot, v1.VersionNumber, v2.VersionNumber), nil
}

// CompareSnapshots diffs two workflow snapshots node by node.
func CompareSnapshots(from, to *workflow.Workflow, fromVersion, toVersion int) *Comparison {
	cmp := &Comparison{
		FromVersion:    fromVersion,
		ToVersion:      toVersion,
		AddedNodes:     []string{},
		RemovedNodes:   []string{},
		ModifiedNodes:  []string{},
		SettingChanges: map[string]any{},
	}
	fromNodes := nodesByName(from)
	toNodes := nodesByName(to)
	for name, after := range toNodes {
		before, ok := fromNodes[name]
		if !ok {
			cmp.AddedNodes = append(cmp.AddedNodes, name)
			continue
		}
		if !sameNode(before, after) {
			cmp.ModifiedNodes = append(cmp.ModifiedNodes, name)
		}
	}
	for name := range fromNodes {
		if _, ok := toNodes[name]; !ok {
			cmp.RemovedNodes = append(cmp.RemovedNodes, name)
		}
	}
	sort.Strings(cmp.AddedNodes)
	sort.Strings(cmp.RemovedNodes)
	sort.Strings(cmp.ModifiedNodes)

	cmp.ConnectionChanges = connectionDelta(from.Connections, to.Connections)
	for key, after := range to.Settings {
		if before, ok := from.Settings[key]; !ok || !reflect.DeepEqual(before, after) {
			cmp.SettingChanges[key] = after
		}
	}
	for key := range from.Settings {
		if _, ok := to.Settings[key]; !ok {
			cmp.SettingChanges[key] = nil
		}
	}
	return cmp
}

func nodesByName(w *workflow.Workflow) map[string]*workflow.Node {
	out := make(map[string]*workflow.Node, len(w.Nodes))
	for _, n := range w.Nodes {
		out[n.Name] = n
	}
	return out
}

// sameNode compares nodes through a JSON round trip so map ordering and
// numeric representation cannot produce false modifications.
func sameNode(a, b *workflow.Node) bool {
	aj, errA := json.Marshal(a)
	bj, errB := json.Marshal(b)
	if errA != nil || errB != nil {
		return false
	}
	return string(aj) == string(bj)
}

func connectionDelta(from, to map[string]workflow.ConnectionGroup) int {
	changes := 0
	for source, toGroup := range to {
		fromGroup, ok := from[source]
		if !ok {
			changes += countGroupTargets(toGroup)
			continue
		}
		if !reflect.DeepEqual(fromGroup, toGroup) {
			changes++
		}
	}
	for source, fromGroup := range from {
		if _, ok := to[source]; !ok {
			changes += countGroupTargets(fromGroup)
		}
	}
	return changes
}

func countGroupTargets(group workflow.ConnectionGroup) int {
	total := 0
	for _, slots := range group {
		for _, slot := range slots {
			total += len(slot)
		}
	}
	return total
}
