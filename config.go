package instrument

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// InstrumentConfig describes one instrument of a configuration file.
type InstrumentConfig struct {
	URI   string          `yaml:"uri"`
	Attrs InstrumentAttrs `yaml:"attrs"`
}

// InstrumentAttrs are applied to an instrument once it is open.
type InstrumentAttrs struct {
	Terminator *string        `yaml:"terminator"`
	Timeout    *time.Duration `yaml:"timeout"`
	Prompt     string         `yaml:"prompt"`
	Debug      bool           `yaml:"debug"`
}

// LoadInstrumentsFile loads the instruments of a YAML file, see LoadInstruments.
func LoadInstrumentsFile(name, path string, opts ...OpenOption) (map[string]*Instrument, error) {
	data, err := os.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("instrument: read config file: %w", err)
	}
	return LoadInstruments(bytes.NewReader(data), path, opts...)
}

// LoadInstruments opens the instruments described by a YAML document.
// path is a "/" separated path to a mapping from names to instrument
// configurations, "/" or "" is the whole document:
//
//	instruments:
//	  ddg:
//	    uri: gpib+usb://COM7/15
//	  psu:
//	    uri: serial:///dev/ttyUSB0?baud=115200
//	    attrs:
//	      terminator: "\r"
//	      timeout: 2s
//
// An instrument which fails to open is logged and maps to nil.
func LoadInstruments(r io.Reader, path string, opts ...OpenOption) (map[string]*Instrument, error) {
	var doc yaml.Node
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("instrument: parse config: %w", err)
	}
	node, err := walkNode(&doc, path)
	if err != nil {
		return nil, err
	}
	var configs map[string]InstrumentConfig
	if err = node.Decode(&configs); err != nil {
		return nil, fmt.Errorf("instrument: decode config %q: %w", path, err)
	}

	insts := make(map[string]*Instrument, len(configs))
	for name, cfg := range configs {
		inst, err := openConfigured(cfg, opts)
		if err != nil {
			defaultLogger.WithField("instrument", name).
				Warnf("loading device with uri %s: %v", cfg.URI, err)
			insts[name] = nil
			continue
		}
		insts[name] = inst
	}
	return insts, nil
}

func openConfigured(cfg InstrumentConfig, opts []OpenOption) (*Instrument, error) {
	inst, err := OpenFromURI(cfg.URI, opts...)
	if err != nil {
		return nil, err
	}
	if err = cfg.Attrs.apply(inst); err != nil {
		inst.Close()
		return nil, err
	}
	return inst, nil
}

func (a InstrumentAttrs) apply(inst *Instrument) error {
	if a.Terminator != nil {
		if err := inst.SetTerminator(*a.Terminator); err != nil {
			return err
		}
	}
	if a.Timeout != nil {
		if err := inst.SetTimeout(*a.Timeout); err != nil {
			return err
		}
	}
	if a.Prompt != "" {
		inst.SetPrompt(a.Prompt)
	}
	if a.Debug {
		inst.Communicator().SetDebug(true)
	}
	return nil
}

// walkNode follows a "/" separated path of mapping keys.
func walkNode(doc *yaml.Node, path string) (*yaml.Node, error) {
	node := doc
	if node.Kind == yaml.DocumentNode {
		if len(node.Content) == 0 {
			return nil, fmt.Errorf("instrument: empty config")
		}
		node = node.Content[0]
	}
	for _, key := range strings.Split(path, "/") {
		if key == "" {
			continue
		}
		if node.Kind != yaml.MappingNode {
			return nil, fmt.Errorf("instrument: config path %q: %q is not a mapping", path, key)
		}
		var next *yaml.Node
		for i := 0; i+1 < len(node.Content); i += 2 {
			if node.Content[i].Value == key {
				next = node.Content[i+1]
				break
			}
		}
		if next == nil {
			return nil, fmt.Errorf("instrument: config path %q: no key %q", path, key)
		}
		node = next
	}
	return node, nil
}
