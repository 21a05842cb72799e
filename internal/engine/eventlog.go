package engine

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// edge is how the event explorer wraps each event. Stored logs keep that shape.
type edge struct {
	Node *FeedEvent `json:"node,omitempty"`

	Type           EventType       `json:"type,omitempty"`
	SentenceChunks []SentenceChunk `json:"sentenceChunks,omitempty"`
}

// DecodeEventLog reads a stored event log. Both the GRID edge list
// ([{"node":{...}}]) and a bare event list are accepted.
func DecodeEventLog(data []byte) ([]FeedEvent, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, nil
	}

	var edges []edge
	if err := json.Unmarshal(data, &edges); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedLog, err)
	}

	events := make([]FeedEvent, 0, len(edges))
	for _, e := range edges {
		if e.Node != nil {
			events = append(events, *e.Node)
			continue
		}
		events = append(events, FeedEvent{Type: e.Type, SentenceChunks: e.SentenceChunks})
	}
	return events, nil
}

// EncodeEventLog writes events in the edge shape DecodeEventLog reads.
func EncodeEventLog(events []FeedEvent) ([]byte, error) {
	edges := make([]edge, len(events))
	for i := range events {
		edges[i] = edge{Node: &events[i]}
	}
	return json.Marshal(edges)
}
