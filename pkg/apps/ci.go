package apps

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/digsinet/digsinet/pkg/broker"
	"github.com/digsinet/digsinet/pkg/log"
	"github.com/digsinet/digsinet/pkg/task"
)

// fuzzTrigger is the diff value that asks ci to kick off a fuzzer run,
// the Go equivalent of checking values_changed for "fuzz_me" in the
// source's DeepDiff tree.
const fuzzTrigger = "fuzz_me"

// CI watches gNMI notifications from the real network for the fuzz
// trigger and asks sec to run its fuzzer; it also logs fuzzer result
// round-trip latency.
type CI struct{}

func (CI) Run(ctx context.Context, topo Topo, br broker.Broker, t task.Message) error {
	if t == nil {
		return nil
	}

	switch m := t.(type) {
	case task.GNMINotification:
		if m.Source != "realnet" || !containsFuzzTrigger(m.Diff) {
			return nil
		}
		log.WithSibling(topo.Name).Info().Msg("ci: detected fuzz_me notification, asking sec to run fuzzer")
		return br.Publish(ctx, "security", task.NewRunFuzzer("ci", nowSeconds(), ""))

	case task.FuzzerResult:
		duration := nowSeconds() - m.RequestTimestamp
		log.WithSibling(topo.Name).Info().
			Float64("duration_seconds", duration).
			Str("data", m.Data).
			Msg("ci: got fuzzer result")
	}
	return nil
}

func containsFuzzTrigger(diff any) bool {
	if diff == nil {
		return false
	}
	raw, err := json.Marshal(diff)
	if err != nil {
		return false
	}
	return strings.Contains(string(raw), fuzzTrigger)
}

func nowSeconds() float64 {
	return float64(time.Now().UnixNano()) / 1e9
}
