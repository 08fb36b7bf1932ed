// Package config loads participant libraries: the type definitions,
// domains, topics and participant layouts from which a middleware creates
// its entities.
//
// A library is loaded from a single file. The format is chosen by
// extension: .yaml and .yml are YAML, .toml is TOML. LoadDefault reads the
// path from the DYNDDS_CONFIG environment variable.
//
// Entities are addressed by full name. A participant is named
// "Library::Participant"; its writers and readers are named
// "Publisher::Writer" and "Subscriber::Reader".
package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/wippyai/dynamic-dds/errors"
)

// EnvConfig names the environment variable read by LoadDefault.
const EnvConfig = "DYNDDS_CONFIG"

// Defaults applied to readers that leave QoS fields unset.
const (
	DefaultHistoryDepth        = 1
	DefaultMaxOutstandingLoans = 4
)

// Format selects the file syntax.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

// Library is a parsed participant library file.
type Library struct {
	Types        []TypeDef     `yaml:"types" toml:"types"`
	Domains      []Domain      `yaml:"domains" toml:"domains"`
	Participants []Participant `yaml:"participants" toml:"participants"`

	// Source is the file the library was loaded from, if any.
	Source string `yaml:"-" toml:"-"`
}

// TypeDef declares a named type.
type TypeDef struct {
	Name string `yaml:"name" toml:"name"`

	// Kind is one of struct, enum, alias, union or wit.
	Kind string `yaml:"kind" toml:"kind"`

	// Members of a struct or union.
	Members []MemberDef `yaml:"members" toml:"members"`

	// Enumerators of an enum.
	Enumerators []EnumeratorDef `yaml:"enumerators" toml:"enumerators"`

	// Type is the base type expression of an alias, or the name of the
	// type inside the WIT document of a wit definition.
	Type string `yaml:"type" toml:"type"`

	// WIT is the WIT JSON document (wasm-tools component wit --json) a
	// wit definition imports from. Relative paths start at the library
	// file's directory.
	WIT string `yaml:"wit" toml:"wit"`

	// Keys marks fields of an imported WIT record as key members.
	Keys []string `yaml:"keys" toml:"keys"`

	// Discriminator is the switch type expression of a union.
	Discriminator string `yaml:"discriminator" toml:"discriminator"`
}

// MemberDef declares one struct or union member.
type MemberDef struct {
	Name string `yaml:"name" toml:"name"`
	Type string `yaml:"type" toml:"type"`
	Key  bool   `yaml:"key" toml:"key"`
	ID   int32  `yaml:"id" toml:"id"`

	// Labels are the union case labels. Empty means default case.
	Labels []int32 `yaml:"labels" toml:"labels"`
}

// EnumeratorDef declares one enumerator. A nil Value continues from the
// previous ordinal.
type EnumeratorDef struct {
	Name  string `yaml:"name" toml:"name"`
	Value *int32 `yaml:"value" toml:"value"`
}

// Domain groups topics under a domain id.
type Domain struct {
	Name   string     `yaml:"name" toml:"name"`
	ID     int32      `yaml:"id" toml:"id"`
	Topics []TopicDef `yaml:"topics" toml:"topics"`
}

// TopicDef binds a topic name to a registered type.
type TopicDef struct {
	Name string `yaml:"name" toml:"name"`
	Type string `yaml:"type" toml:"type"`
}

// Participant declares the entities a participant creates.
type Participant struct {
	Library     string       `yaml:"library" toml:"library"`
	Name        string       `yaml:"name" toml:"name"`
	Domain      string       `yaml:"domain" toml:"domain"`
	Publishers  []Publisher  `yaml:"publishers" toml:"publishers"`
	Subscribers []Subscriber `yaml:"subscribers" toml:"subscribers"`
}

// FullName returns "Library::Name".
func (p *Participant) FullName() string {
	return p.Library + "::" + p.Name
}

// Publisher groups writers.
type Publisher struct {
	Name    string      `yaml:"name" toml:"name"`
	Writers []WriterDef `yaml:"writers" toml:"writers"`
}

// WriterDef declares a writer on a topic of the participant's domain.
type WriterDef struct {
	Name  string `yaml:"name" toml:"name"`
	Topic string `yaml:"topic" toml:"topic"`
}

// Subscriber groups readers.
type Subscriber struct {
	Name    string      `yaml:"name" toml:"name"`
	Readers []ReaderDef `yaml:"readers" toml:"readers"`
}

// ReaderDef declares a reader on a topic of the participant's domain.
type ReaderDef struct {
	Name  string `yaml:"name" toml:"name"`
	Topic string `yaml:"topic" toml:"topic"`

	// HistoryDepth is the KEEP_LAST depth per instance.
	// Default: 1
	HistoryDepth int `yaml:"history_depth" toml:"history_depth"`

	// MaxOutstandingLoans bounds unreturned read/take loans.
	// Default: 4
	MaxOutstandingLoans int `yaml:"max_outstanding_loans" toml:"max_outstanding_loans"`
}

// Load reads and validates a library file.
func Load(path string) (*Library, error) {
	format, err := formatOf(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "read "+path)
	}
	return parse(data, format, path)
}

// LoadDefault loads the library named by DYNDDS_CONFIG.
func LoadDefault() (*Library, error) {
	path := os.Getenv(EnvConfig)
	if path == "" {
		return nil, errors.InvalidInput(errors.PhaseConfig, nil, "%s is not set", EnvConfig)
	}
	return Load(path)
}

// Parse decodes and validates a library. Relative WIT paths resolve
// against the working directory.
func Parse(data []byte, format Format) (*Library, error) {
	return parse(data, format, "")
}

func parse(data []byte, format Format, source string) (*Library, error) {
	lib := Library{Source: source}
	switch format {
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&lib); err != nil {
			return nil, errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "parse yaml")
		}
	case FormatTOML:
		meta, err := toml.Decode(string(data), &lib)
		if err != nil {
			return nil, errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "parse toml")
		}
		if undecoded := meta.Undecoded(); len(undecoded) > 0 {
			return nil, errors.InvalidInput(errors.PhaseConfig, nil, "unknown keys: %v", undecoded)
		}
	default:
		return nil, errors.InvalidInput(errors.PhaseConfig, nil, "unknown format %q", format)
	}
	lib.applyDefaults()
	if err := lib.Validate(); err != nil {
		return nil, err
	}
	return &lib, nil
}

func formatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".toml":
		return FormatTOML, nil
	}
	return "", errors.InvalidInput(errors.PhaseConfig, nil, "unsupported config file extension %q", filepath.Ext(path))
}

func (lib *Library) applyDefaults() {
	for i := range lib.Participants {
		for j := range lib.Participants[i].Subscribers {
			s := &lib.Participants[i].Subscribers[j]
			for k := range s.Readers {
				r := &s.Readers[k]
				if r.HistoryDepth == 0 {
					r.HistoryDepth = DefaultHistoryDepth
				}
				if r.MaxOutstandingLoans == 0 {
					r.MaxOutstandingLoans = DefaultMaxOutstandingLoans
				}
			}
		}
	}
}

// Validate checks names, references and type definitions.
func (lib *Library) Validate() error {
	if _, err := lib.Registry(); err != nil {
		return err
	}

	domains := make(map[string]*Domain, len(lib.Domains))
	for i := range lib.Domains {
		d := &lib.Domains[i]
		path := []string{"domains", d.Name}
		if d.Name == "" {
			return errors.InvalidInput(errors.PhaseConfig, []string{"domains", fmt.Sprint(i)}, "missing name")
		}
		if _, dup := domains[d.Name]; dup {
			return errors.InvalidInput(errors.PhaseConfig, path, "duplicate domain")
		}
		domains[d.Name] = d
		topics := make(map[string]struct{}, len(d.Topics))
		for _, t := range d.Topics {
			if _, dup := topics[t.Name]; dup || t.Name == "" {
				return errors.InvalidInput(errors.PhaseConfig, path, "bad topic name %q", t.Name)
			}
			topics[t.Name] = struct{}{}
			if !lib.hasType(t.Type) {
				return errors.InvalidInput(errors.PhaseConfig, append(path, t.Name), "unknown type %q", t.Type)
			}
		}
	}

	seen := make(map[string]struct{}, len(lib.Participants))
	for i := range lib.Participants {
		p := &lib.Participants[i]
		path := []string{"participants", p.FullName()}
		if p.Library == "" || p.Name == "" {
			return errors.InvalidInput(errors.PhaseConfig, path, "participant needs library and name")
		}
		if _, dup := seen[p.FullName()]; dup {
			return errors.InvalidInput(errors.PhaseConfig, path, "duplicate participant")
		}
		seen[p.FullName()] = struct{}{}

		d, ok := domains[p.Domain]
		if !ok {
			return errors.InvalidInput(errors.PhaseConfig, path, "unknown domain %q", p.Domain)
		}
		entities := make(map[string]struct{})
		check := func(group, name, topic string) error {
			full := group + "::" + name
			if group == "" || name == "" {
				return errors.InvalidInput(errors.PhaseConfig, path, "entity %q needs a group and a name", full)
			}
			if _, dup := entities[full]; dup {
				return errors.InvalidInput(errors.PhaseConfig, append(path, full), "duplicate entity")
			}
			entities[full] = struct{}{}
			if d.Topic(topic) == nil {
				return errors.InvalidInput(errors.PhaseConfig, append(path, full), "unknown topic %q in domain %s", topic, d.Name)
			}
			return nil
		}
		for _, pub := range p.Publishers {
			for _, w := range pub.Writers {
				if err := check(pub.Name, w.Name, w.Topic); err != nil {
					return err
				}
			}
		}
		for _, sub := range p.Subscribers {
			for _, r := range sub.Readers {
				if err := check(sub.Name, r.Name, r.Topic); err != nil {
					return err
				}
				if r.HistoryDepth < 0 || r.MaxOutstandingLoans < 0 {
					return errors.InvalidInput(errors.PhaseConfig, append(path, sub.Name+"::"+r.Name), "negative QoS value")
				}
			}
		}
	}
	return nil
}

func (lib *Library) hasType(name string) bool {
	for i := range lib.Types {
		if lib.Types[i].Name == name {
			return true
		}
	}
	return false
}

// Participant returns the participant with the given full name.
func (lib *Library) Participant(fullName string) (*Participant, bool) {
	for i := range lib.Participants {
		if lib.Participants[i].FullName() == fullName {
			return &lib.Participants[i], true
		}
	}
	return nil, false
}

// Domain returns the named domain.
func (lib *Library) Domain(name string) (*Domain, bool) {
	for i := range lib.Domains {
		if lib.Domains[i].Name == name {
			return &lib.Domains[i], true
		}
	}
	return nil, false
}

// Topic returns the named topic of the domain, or nil.
func (d *Domain) Topic(name string) *TopicDef {
	for i := range d.Topics {
		if d.Topics[i].Name == name {
			return &d.Topics[i]
		}
	}
	return nil
}
