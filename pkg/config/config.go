package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/digsinet/digsinet/pkg/broker"
	"github.com/digsinet/digsinet/pkg/topology"
)

// TopologyType names the real network's topology source: a kind (the
// only supported kind today is "clab") and the path to its definition
// file.
type TopologyType struct {
	Type string `yaml:"type"`
	File string `yaml:"file"`
}

// InterfaceSettings configures one management-protocol interface
// instance: which nodes it applies to, the datatype it requests, the
// paths it polls, and any response keys to strip before diffing.
type InterfaceSettings struct {
	Nodes    string   `yaml:"nodes"`
	Datatype string   `yaml:"datatype"`
	Paths    []string `yaml:"paths"`
	Strip    []string `yaml:"strip"`
}

// RealnetSettings configures the real network side: which apps run
// against it directly, and which interfaces poll it.
type RealnetSettings struct {
	Apps       []string                     `yaml:"apps"`
	Interfaces map[string]InterfaceSettings `yaml:"interfaces"`
}

// TopologyAdjustmentRemove names a node (by regular expression) to drop
// from a sibling's topology.
type TopologyAdjustmentRemove struct {
	NodeName string `yaml:"node-name"`
}

// TopologyAdjustmentAdd describes a node to add to a sibling's topology.
type TopologyAdjustmentAdd struct {
	Kind  string `yaml:"kind"`
	Image string `yaml:"image"`
}

// TopologyAdjustmentLink names both endpoints of a link to add or
// remove from a sibling's topology.
type TopologyAdjustmentLink struct {
	NodeSource      string `yaml:"node-source"`
	NodeDestination string `yaml:"node-destination"`
}

// TopologyAdjustment is the declarative diff that derives one sibling's
// topology from the real network's. A zero value leaves the topology
// unchanged.
type TopologyAdjustment struct {
	NodeRemove *TopologyAdjustmentRemove        `yaml:"node-remove"`
	NodeAdd    map[string]TopologyAdjustmentAdd `yaml:"node-add"`
	LinkRemove []TopologyAdjustmentLink         `yaml:"link-remove"`
	LinkAdd    []TopologyAdjustmentLink         `yaml:"link-add"`
}

// ToTopologyAdjustment converts the YAML-shaped adjustment into the
// topology package's applyable form.
func (a *TopologyAdjustment) ToTopologyAdjustment() topology.Adjustment {
	out := topology.Adjustment{}
	if a == nil {
		return out
	}
	if a.NodeRemove != nil {
		out.NodeRemove = a.NodeRemove.NodeName
	}
	if len(a.NodeAdd) > 0 {
		out.NodeAdd = make(map[string]topology.NodeSpec, len(a.NodeAdd))
		for name, spec := range a.NodeAdd {
			out.NodeAdd[name] = topology.NodeSpec{Kind: spec.Kind, Image: spec.Image}
		}
	}
	for _, l := range a.LinkRemove {
		out.LinkRemove = append(out.LinkRemove, toEndpointPair(l))
	}
	for _, l := range a.LinkAdd {
		out.LinkAdd = append(out.LinkAdd, toEndpointPair(l))
	}
	return out
}

func toEndpointPair(l TopologyAdjustmentLink) topology.EndpointPair {
	return topology.EndpointPair{
		From: topology.Endpoint{Node: l.NodeSource},
		To:   topology.Endpoint{Node: l.NodeDestination},
	}
}

// SiblingSettings configures one sibling: how its topology is derived
// from the real one, which interfaces poll it, and which controller module
// drives it. Autostart is parsed but not consulted: a sibling's controller
// deploys its topology on every build request regardless of its value.
type SiblingSettings struct {
	TopologyAdjustments *TopologyAdjustment          `yaml:"topology-adjustments"`
	Interfaces          map[string]InterfaceSettings `yaml:"interfaces"`
	Controller          string                       `yaml:"controller"`
	Autostart           bool                         `yaml:"autostart"`
}

// ControllerSettings names the apps, interfaces and builder one
// controller module wires together.
type ControllerSettings struct {
	Module     string   `yaml:"module"`
	Builder    string   `yaml:"builder"`
	Interfaces []string `yaml:"interfaces"`
	Apps       []string `yaml:"apps"`
}

// BuilderSettings names a builder module. DigSiNet ships one builder
// (container-lab), but the field stays a module name to match the
// source's pluggable builder registry.
type BuilderSettings struct {
	Module string `yaml:"module"`
}

// InterfaceCredentials are the connection details for one
// management-protocol interface module.
type InterfaceCredentials struct {
	Module   string `yaml:"module"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// AppSettings names an app module. EveryN is the overview app's
// publish cadence in ticks; it is ignored by every other app.
type AppSettings struct {
	Module string `yaml:"module"`
	EveryN int    `yaml:"every_n"`
}

// KafkaTopicsConfig controls partitioning/replication for topics the
// broker creates.
type KafkaTopicsConfig struct {
	NumPartitions     int `yaml:"num_partitions"`
	ReplicationFactor int `yaml:"replication_factor"`
}

// KafkaOffsetConfig controls where a brand new consumer group starts
// reading from.
type KafkaOffsetConfig struct {
	ResetType string `yaml:"reset_type"`
}

// KafkaSettings configures the Kafka event-broker backend.
type KafkaSettings struct {
	Host   string            `yaml:"host"`
	Port   int               `yaml:"port"`
	Topics KafkaTopicsConfig `yaml:"topics"`
	Offset KafkaOffsetConfig `yaml:"offset"`
}

// ToBrokerConfig converts the YAML-shaped Kafka settings into
// pkg/broker's Kafka backend config.
func (k KafkaSettings) ToBrokerConfig() broker.KafkaConfig {
	return broker.KafkaConfig{
		Brokers:           []string{k.Host + ":" + strconv.Itoa(k.Port)},
		NumPartitions:     k.Topics.NumPartitions,
		ReplicationFactor: k.Topics.ReplicationFactor,
		OffsetReset:       k.Offset.ResetType,
	}
}

// RabbitSettings configures the RabbitMQ event-broker backend.
type RabbitSettings struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

func (r RabbitSettings) defaultedPort() int {
	if r.Port == 0 {
		return 5672
	}
	return r.Port
}

// ToBrokerConfig converts the YAML-shaped RabbitMQ settings into
// pkg/broker's AMQP backend config.
func (r RabbitSettings) ToBrokerConfig() broker.RabbitConfig {
	url := fmt.Sprintf("amqp://%s:%s@%s:%d/", r.Username, r.Password, r.Host, r.defaultedPort())
	return broker.RabbitConfig{URL: url}
}

// Config is the fully parsed contents of digsinet.yml, plus the CLI
// flags layered on top of it (Action, Debug, ...), which are never
// present in the YAML itself.
type Config struct {
	TopologyName   string                           `yaml:"name"`
	Topology       TopologyType                     `yaml:"topology"`
	SyncInterval   int                              `yaml:"interval"`
	SiblingTimeout int                              `yaml:"create_sibling_timeout"`
	Realnet        RealnetSettings                  `yaml:"realnet"`
	Siblings       map[string]SiblingSettings       `yaml:"siblings"`
	Controllers    map[string]ControllerSettings    `yaml:"controllers"`
	Builders       map[string]BuilderSettings       `yaml:"builders"`
	Interfaces     map[string]InterfaceCredentials  `yaml:"interfaces"`
	Apps           map[string]AppSettings           `yaml:"apps"`
	Kafka          *KafkaSettings                   `yaml:"kafka"`
	Rabbit         *RabbitSettings                  `yaml:"rabbit"`

	// CLI is layered on by the command line, never read from YAML.
	CLI CLI `yaml:"-"`
}

// Action is one of the three mutually exclusive run modes.
type Action string

const (
	ActionStart   Action = "start"
	ActionStop    Action = "stop"
	ActionCleanup Action = "cleanup"
)

// CLI holds the flags parsed from the command line, layered onto a
// loaded Config before it is handed to pkg/supervisor.
type CLI struct {
	Action      Action
	ConfigPath  string
	Reconfigure bool
	Debug       bool
	TaskDebug   bool
	Yes         bool
}

// Validate enforces CLI-level invariants the flag library does not:
// --cleanup without --yes-i-really-mean-it is refused, the way
// config/cli.py's argparse mutually-exclusive group is emulated by
// hand for actions that argparse itself cannot express (a forceful
// cleanup additionally gated on a second flag).
func (c CLI) Validate() error {
	switch c.Action {
	case ActionStart, ActionStop, ActionCleanup:
	default:
		return fmt.Errorf("config: unknown action %q", c.Action)
	}
	if c.Action == ActionCleanup && !c.Yes {
		return fmt.Errorf("config: --cleanup requires --yes-i-really-mean-it")
	}
	return nil
}

// Load reads and parses path, then validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks invariants Unmarshal alone cannot: exactly one event
// broker backend must be configured, every sibling must name a
// controller that exists, and every controller must name a builder
// that exists.
func (c *Config) Validate() error {
	if c.Kafka == nil && c.Rabbit == nil {
		return fmt.Errorf("config: no event broker configured, need one of kafka or rabbit")
	}
	if c.Kafka != nil && c.Rabbit != nil {
		return fmt.Errorf("config: both kafka and rabbit configured, only one backend may be active")
	}
	for sibling, s := range c.Siblings {
		if _, ok := c.Controllers[s.Controller]; !ok {
			return fmt.Errorf("config: sibling %q references unknown controller %q", sibling, s.Controller)
		}
	}
	for name, ctrl := range c.Controllers {
		if _, ok := c.Builders[ctrl.Builder]; !ok {
			return fmt.Errorf("config: controller %q references unknown builder %q", name, ctrl.Builder)
		}
		for _, ifaceName := range ctrl.Interfaces {
			if _, ok := c.Interfaces[ifaceName]; !ok {
				return fmt.Errorf("config: controller %q references unknown interface %q", name, ifaceName)
			}
		}
		for _, appName := range ctrl.Apps {
			if _, ok := c.Apps[appName]; !ok {
				return fmt.Errorf("config: controller %q references unknown app %q", name, appName)
			}
		}
	}
	return nil
}

// SiblingNames returns the configured sibling names in map-iteration
// order; callers that need a stable order should sort the result.
func (c *Config) SiblingNames() []string {
	names := make([]string, 0, len(c.Siblings))
	for name := range c.Siblings {
		names = append(names, name)
	}
	return names
}
