package workflow

// ReverseConnection records one incoming edge from the consumer's point of
// view.
type ReverseConnection struct {
	SourceName string
	SourceType ConnectionType
	Index      int
}

// ReverseIndex maps a consumer node name to the edges terminating at it.
// It is derived, never stored: rebuild after every mutation.
type ReverseIndex map[string][]ReverseConnection

// BuildReverseIndex walks every connection group and indexes edges by their
// target node.
func BuildReverseIndex(w *Workflow) ReverseIndex {
	idx := make(ReverseIndex)
	for source, group := range w.Connections {
		for connType, slots := range group {
			for slotIdx, slot := range slots {
				for _, target := range slot {
					idx[target.Node] = append(idx[target.Node], ReverseConnection{
						SourceName: source,
						SourceType: connType,
						Index:      slotIdx,
					})
				}
			}
		}
	}
	return idx
}

// IncomingOfType returns the incoming edges of the given connection type for
// a consumer node.
func (r ReverseIndex) IncomingOfType(consumer string, connType ConnectionType) []ReverseConnection {
	var out []ReverseConnection
	for _, rc := range r[consumer] {
		if rc.SourceType == connType {
			out = append(out, rc)
		}
	}
	return out
}
