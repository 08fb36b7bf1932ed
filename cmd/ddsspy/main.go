// ddsspy publishes and watches samples on the topics of a participant
// library, using the in-process loopback middleware.
//
//	ddsspy -c hello.yaml --list
//	ddsspy -c hello.yaml -w MyPublisher::HelloWorldWriter -d '{sender: "5", message: hi, count: 7}' \
//	       -r MySubscriber::HelloWorldReader
//	ddsspy -c hello.yaml -i
package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	dynamicdds "github.com/wippyai/dynamic-dds"
	"github.com/wippyai/dynamic-dds/config"
	"github.com/wippyai/dynamic-dds/loopback"
	"github.com/wippyai/dynamic-dds/pubsub"
)

const defaultParticipant = "MyParticipantLibrary::Zero"

type options struct {
	configPath  string
	participant string
	writer      string
	reader      string
	data        []string
	dispose     bool
	count       int
	read        bool
	list        bool
	interactive bool
	verbose     bool
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	var o options
	fs := pflag.NewFlagSet("ddsspy", pflag.ContinueOnError)
	fs.StringVarP(&o.configPath, "config", "c", "", "participant library file (default: $"+config.EnvConfig+")")
	fs.StringVarP(&o.participant, "participant", "p", defaultParticipant, "participant full name")
	fs.StringVarP(&o.writer, "writer", "w", "", "writer full name to publish with")
	fs.StringVarP(&o.reader, "reader", "r", "", "reader full name to receive with")
	fs.StringArrayVarP(&o.data, "data", "d", nil, "sample value as YAML or JSON (repeatable)")
	fs.BoolVar(&o.dispose, "dispose", false, "dispose the instances named by --data instead of writing")
	fs.IntVarP(&o.count, "count", "n", 1, "publish each value this many times")
	fs.BoolVar(&o.read, "read", false, "read instead of take")
	fs.BoolVarP(&o.list, "list", "l", false, "list participants, entities and types, then exit")
	fs.BoolVarP(&o.interactive, "interactive", "i", false, "interactive mode with TUI")
	fs.BoolVarP(&o.verbose, "verbose", "v", false, "debug logging to stderr")
	if err := fs.Parse(args); err != nil {
		return err
	}

	logger, err := newLogger(o.verbose)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()
	loopback.SetLogger(logger.Named("loopback"))
	pubsub.SetLogger(logger.Named("pubsub"))

	lib, err := loadLibrary(o.configPath)
	if err != nil {
		return err
	}
	if o.list {
		return list(lib)
	}

	lp, err := loopback.NewNetwork().CreateParticipantFromConfig(lib, o.participant)
	if err != nil {
		return fmt.Errorf("create participant: %w", err)
	}
	session := pubsub.New(lp)
	defer session.Close()

	if o.interactive {
		return runInteractive(session, lib, o)
	}
	return runOnce(session, o)
}

func newLogger(verbose bool) (*zap.Logger, error) {
	if !verbose {
		cfg := zap.NewProductionConfig()
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
		cfg.OutputPaths = []string{"stderr"}
		return cfg.Build()
	}
	return zap.NewDevelopment()
}

func loadLibrary(path string) (*config.Library, error) {
	if path == "" {
		return config.LoadDefault()
	}
	return config.Load(path)
}

func runOnce(session *pubsub.Participant, o options) error {
	if o.writer == "" && o.reader == "" {
		return fmt.Errorf("nothing to do: give --writer, --reader, --list or --interactive")
	}

	if o.writer != "" {
		w, err := session.LookupWriter(o.writer)
		if err != nil {
			return err
		}
		for _, text := range o.data {
			value, err := parseValue(text)
			if err != nil {
				return err
			}
			for i := 0; i < o.count; i++ {
				if o.dispose {
					err = w.Dispose(value)
				} else {
					err = w.Write(value)
				}
				if err != nil {
					return fmt.Errorf("publish %s: %w", text, err)
				}
			}
		}
		fmt.Printf("Published %d sample(s) with %s\n", len(o.data)*o.count, o.writer)
	}

	if o.reader != "" {
		r, err := session.LookupReader(o.reader)
		if err != nil {
			return err
		}
		recv := r.Take
		if o.read {
			recv = r.Read
		}
		samples, err := recv()
		if err != nil {
			return err
		}
		fmt.Printf("Received %d sample(s) on %s\n", len(samples), o.reader)
		for i, s := range samples {
			text, err := formatSample(s)
			if err != nil {
				return err
			}
			fmt.Printf("--- sample %d ---\n%s", i+1, text)
		}
	}
	return nil
}

func parseValue(text string) (any, error) {
	var value any
	if err := yaml.Unmarshal([]byte(text), &value); err != nil {
		return nil, fmt.Errorf("parse value %q: %w", text, err)
	}
	return value, nil
}

// sampleView is the printable form of a sample.
type sampleView struct {
	Instance  string `yaml:"instance"`
	State     string `yaml:"state"`
	Sequence  int64  `yaml:"sequence"`
	Timestamp string `yaml:"timestamp"`
	Valid     bool   `yaml:"valid"`
	Value     any    `yaml:"value,omitempty"`
}

func newSampleView(s pubsub.Sample) sampleView {
	return sampleView{
		Instance:  fmt.Sprintf("%x", s.Info.InstanceHandle.KeyHash),
		State:     instanceStateName(s.Info),
		Sequence:  s.Info.PublicationSequenceNumber,
		Timestamp: s.Info.SourceTimestamp.Format("15:04:05.000"),
		Valid:     s.Info.ValidData,
		Value:     s.Value,
	}
}

func formatSample(s pubsub.Sample) (string, error) {
	out, err := yaml.Marshal(newSampleView(s))
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func list(lib *config.Library) error {
	reg, err := lib.Registry()
	if err != nil {
		return err
	}

	fmt.Println("Types:")
	names := reg.Names()
	sort.Strings(names)
	for _, name := range names {
		tc, _ := reg.Lookup(name)
		fmt.Printf("%s\n", tc)
	}

	fmt.Println("\nParticipants:")
	for _, p := range lib.Participants {
		fmt.Printf("  %s (domain %s)\n", p.FullName(), p.Domain)
		for _, pub := range p.Publishers {
			for _, w := range pub.Writers {
				fmt.Printf("    writer %s::%s -> %s\n", pub.Name, w.Name, w.Topic)
			}
		}
		for _, sub := range p.Subscribers {
			for _, r := range sub.Readers {
				fmt.Printf("    reader %s::%s <- %s\n", sub.Name, r.Name, r.Topic)
			}
		}
	}
	return nil
}

func instanceStateName(info pubsub.SampleInfo) string {
	switch info.InstanceState {
	case dynamicdds.AliveInstanceState:
		return "alive"
	case dynamicdds.NotAliveDisposedInstanceState:
		return "disposed"
	case dynamicdds.NotAliveNoWritersInstanceState:
		return "no writers"
	}
	return fmt.Sprintf("unknown(%d)", info.InstanceState)
}
