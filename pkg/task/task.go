package task

import (
	"encoding/json"
	"fmt"

	"github.com/digsinet/digsinet/pkg/topology"
)

// Kind discriminates the Task sum type on the wire via a "type" field.
type Kind string

const (
	KindGNMINotification      Kind = "gNMI notification"
	KindRunFuzzer             Kind = "run fuzzer"
	KindFuzzerResult          Kind = "fuzzer result"
	KindTopologyBuildRequest  Kind = "topology build request"
	KindTopologyBuildResponse Kind = "topology build response"
	KindOverview              Kind = "overview"
)

// Message is implemented by every Task variant.
type Message interface {
	Kind() Kind
}

// GNMINotification reports an observed (and, if diff is set, changed) value
// at a path on a node. Source is "realnet" or a sibling name.
type GNMINotification struct {
	Type   Kind   `json:"type"`
	Source string `json:"source"`
	Node   string `json:"node"`
	Path   string `json:"path"`
	Data   any    `json:"data"`
	Diff   any    `json:"diff,omitempty"`
}

func (n GNMINotification) Kind() Kind { return KindGNMINotification }

// NewGNMINotification builds a GNMINotification with its type tag set.
func NewGNMINotification(source, node, path string, data, diff any) GNMINotification {
	return GNMINotification{Type: KindGNMINotification, Source: source, Node: node, Path: path, Data: data, Diff: diff}
}

// RunFuzzer asks the security app to run its fuzzer.
type RunFuzzer struct {
	Type      Kind    `json:"type"`
	Source    string  `json:"source"`
	Timestamp float64 `json:"timestamp"`
	Data      string  `json:"data"`
}

func (RunFuzzer) Kind() Kind { return KindRunFuzzer }

// NewRunFuzzer builds a RunFuzzer request with its type tag set.
func NewRunFuzzer(source string, timestamp float64, data string) RunFuzzer {
	return RunFuzzer{Type: KindRunFuzzer, Source: source, Timestamp: timestamp, Data: data}
}

// FuzzerResult carries a fuzzer run's result back to the requester,
// echoing RequestTimestamp so latency can be measured as
// Timestamp-RequestTimestamp.
type FuzzerResult struct {
	Type             Kind    `json:"type"`
	Source           string  `json:"source"`
	RequestTimestamp float64 `json:"request_timestamp"`
	Timestamp        float64 `json:"timestamp"`
	Data             string  `json:"data"`
}

func (FuzzerResult) Kind() Kind { return KindFuzzerResult }

// NewFuzzerResult builds a FuzzerResult with its type tag set.
func NewFuzzerResult(source string, requestTimestamp, timestamp float64, data string) FuzzerResult {
	return FuzzerResult{Type: KindFuzzerResult, Source: source, RequestTimestamp: requestTimestamp, Timestamp: timestamp, Data: data}
}

// TopologyBuildRequest asks a sibling's controller to materialise its topology.
type TopologyBuildRequest struct {
	Type    Kind   `json:"type"`
	Source  string `json:"source"`
	Sibling string `json:"sibling"`
}

func (TopologyBuildRequest) Kind() Kind { return KindTopologyBuildRequest }

// NewTopologyBuildRequest builds a TopologyBuildRequest with its type tag set.
func NewTopologyBuildRequest(source, sibling string) TopologyBuildRequest {
	return TopologyBuildRequest{Type: KindTopologyBuildRequest, Source: source, Sibling: sibling}
}

// TopologyBuildResponse reports the result of materialising a sibling's
// topology, published to every channel so the supervisor and peers learn
// the new layout.
type TopologyBuildResponse struct {
	Type       Kind              `json:"type"`
	Source     string            `json:"source"`
	Sibling    string            `json:"sibling"`
	Topology   topology.Topology `json:"topology"`
	Nodes      map[string]any    `json:"nodes"`
	Interfaces []string          `json:"interfaces"`
	Running    bool              `json:"running"`
}

func (TopologyBuildResponse) Kind() Kind { return KindTopologyBuildResponse }

// NewTopologyBuildResponse builds a TopologyBuildResponse with its type tag set.
func NewTopologyBuildResponse(source, sibling string, topo topology.Topology, nodes map[string]any, interfaces []string, running bool) TopologyBuildResponse {
	return TopologyBuildResponse{
		Type: KindTopologyBuildResponse, Source: source, Sibling: sibling,
		Topology: topo, Nodes: nodes, Interfaces: interfaces, Running: running,
	}
}

// Overview carries a periodic summary view of one topology.
type Overview struct {
	Type     Kind   `json:"type"`
	Topology string `json:"topology"`
	Summary  any    `json:"summary"`
}

func (Overview) Kind() Kind { return KindOverview }

// NewOverview builds an Overview with its type tag set.
func NewOverview(topology string, summary any) Overview {
	return Overview{Type: KindOverview, Topology: topology, Summary: summary}
}

// kindEnvelope is used to peek at a message's discriminator before decoding
// the rest of it into the concrete variant.
type kindEnvelope struct {
	Type Kind `json:"type"`
}

// Marshal encodes a Message to its discriminated JSON wire form. Values
// that json.Marshal cannot serialise are not rejected outright: if the
// first encoding fails, the message's free-form payload fields are run
// through Sanitize and the message is encoded again, matching the source's
// behaviour of substituting "<not serializable>" rather than failing the
// publish.
func Marshal(msg Message) ([]byte, error) {
	data, err := json.Marshal(msg)
	if err == nil {
		return data, nil
	}
	switch m := msg.(type) {
	case GNMINotification:
		m.Data, m.Diff = Sanitize(m.Data), Sanitize(m.Diff)
		msg = m
	case TopologyBuildResponse:
		m.Nodes = Sanitize(m.Nodes).(map[string]any)
		msg = m
	case Overview:
		m.Summary = Sanitize(m.Summary)
		msg = m
	}
	return json.Marshal(msg)
}

// Unmarshal decodes a discriminated JSON message into its concrete variant,
// returned as a Message. An unrecognised or missing "type" is an error.
func Unmarshal(data []byte) (Message, error) {
	var env kindEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("task: decoding envelope: %w", err)
	}

	switch env.Type {
	case KindGNMINotification:
		var m GNMINotification
		return m, json.Unmarshal(data, &m)
	case KindRunFuzzer:
		var m RunFuzzer
		return m, json.Unmarshal(data, &m)
	case KindFuzzerResult:
		var m FuzzerResult
		return m, json.Unmarshal(data, &m)
	case KindTopologyBuildRequest:
		var m TopologyBuildRequest
		return m, json.Unmarshal(data, &m)
	case KindTopologyBuildResponse:
		var m TopologyBuildResponse
		return m, json.Unmarshal(data, &m)
	case KindOverview:
		var m Overview
		return m, json.Unmarshal(data, &m)
	default:
		return nil, fmt.Errorf("task: unknown message type %q", env.Type)
	}
}
