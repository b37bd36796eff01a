package simulated

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Profile describes the simulated Bluetooth environment: adapters, the
// peripherals each adapter can see, and the GATT table of every peripheral.
//
//	adapters:
//	  - id: hci0
//	    peripherals:
//	      - address: "AA:BB:CC:DD:EE:01"
//	        name: ChoiceMMed-1234
//	        services:
//	          - uuid: "1810"
//	            characteristics:
//	              - uuid: "2a5f"
//	                properties: read
//	                value: "01"
type Profile struct {
	Adapters []AdapterConfig `yaml:"adapters"`
	// EnumerateError makes adapter enumeration fail with this message.
	EnumerateError string `yaml:"enumerate_error,omitempty"`
}

type AdapterConfig struct {
	ID          string             `yaml:"id"`
	ScanError   string             `yaml:"scan_error,omitempty"`
	Peripherals []PeripheralConfig `yaml:"peripherals,omitempty"`
}

type PeripheralConfig struct {
	Address string `yaml:"address"`
	Name    string `yaml:"name,omitempty"`
	RSSI    int    `yaml:"rssi,omitempty"`
	// AppearAfter hides the peripheral until discovery has run this long.
	AppearAfter time.Duration `yaml:"appear_after,omitempty"`

	PropertiesError string `yaml:"properties_error,omitempty"`
	ConnectError    string `yaml:"connect_error,omitempty"`
	DiscoverError   string `yaml:"discover_error,omitempty"`

	Services []ServiceConfig `yaml:"services,omitempty"`
}

type ServiceConfig struct {
	UUID            string                 `yaml:"uuid"`
	Characteristics []CharacteristicConfig `yaml:"characteristics,omitempty"`
}

type CharacteristicConfig struct {
	UUID       string `yaml:"uuid"`
	Properties string `yaml:"properties,omitempty"` // e.g., "read,notify"
	// Value is returned by every read not covered by Reads.
	Value HexBytes `yaml:"value,omitempty"`
	// Reads scripts the first len(Reads) read outcomes in order.
	Reads []ReadConfig `yaml:"reads,omitempty"`
}

type ReadConfig struct {
	Value HexBytes      `yaml:"value,omitempty"`
	Error string        `yaml:"error,omitempty"`
	Delay time.Duration `yaml:"delay,omitempty"`
}

// HexBytes decodes from either a hex string ("01 ff", "01:ff", "0x01ff") or a list of integers.
type HexBytes []byte

func (b *HexBytes) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		s := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(node.Value)), "0x")
		s = strings.NewReplacer(" ", "", ":", "", "-", "").Replace(s)
		data, err := hex.DecodeString(s)
		if err != nil {
			return fmt.Errorf("line %d: invalid hex value %q: %w", node.Line, node.Value, err)
		}
		*b = data
		return nil
	case yaml.SequenceNode:
		var ints []int
		if err := node.Decode(&ints); err != nil {
			return err
		}
		data := make([]byte, len(ints))
		for i, v := range ints {
			if v < 0 || v > 0xff {
				return fmt.Errorf("line %d: byte value %d out of range", node.Line, v)
			}
			data[i] = byte(v)
		}
		*b = data
		return nil
	default:
		return fmt.Errorf("line %d: expected hex string or byte list", node.Line)
	}
}

func (b HexBytes) MarshalYAML() (interface{}, error) {
	return hex.EncodeToString(b), nil
}

// ParseProfile decodes a YAML profile. Unknown keys are rejected.
func ParseProfile(data []byte) (*Profile, error) {
	var p Profile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&p); err != nil {
		return nil, fmt.Errorf("failed to parse simulation profile: %w", err)
	}
	return &p, nil
}

// LoadProfile reads and decodes a YAML profile file.
func LoadProfile(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read simulation profile: %w", err)
	}
	return ParseProfile(data)
}
