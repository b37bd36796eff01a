//go:build test

package testutils

import (
	"fmt"
	"time"

	"github.com/srg/blepoll/internal/device/simulated"
)

// ProfileBuilder builds a simulated.Profile fluently. Every With* call
// applies to the most recently added adapter, peripheral, service or
// characteristic.
//
//	profile := testutils.NewProfileBuilder().
//	    WithAdapter("hci0").
//	    WithPeripheral("AA:BB:CC:DD:EE:01", "ChoiceMMed-1234").
//	    WithService("1810").
//	    WithCharacteristic("2a5f", "read", []byte{0x01}).
//	    Build()
type ProfileBuilder struct {
	profile simulated.Profile
}

// NewProfileBuilder creates an empty profile builder
func NewProfileBuilder() *ProfileBuilder {
	return &ProfileBuilder{}
}

// FromYAML replaces the profile with the formatted YAML document
func (b *ProfileBuilder) FromYAML(yamlFmt string, args ...interface{}) *ProfileBuilder {
	profile, err := simulated.ParseProfile([]byte(fmt.Sprintf(yamlFmt, args...)))
	if err != nil {
		panic(fmt.Sprintf("ProfileBuilder.FromYAML: %v", err))
	}
	b.profile = *profile
	return b
}

// WithEnumerateError makes adapter enumeration fail
func (b *ProfileBuilder) WithEnumerateError(msg string) *ProfileBuilder {
	b.profile.EnumerateError = msg
	return b
}

// WithAdapter adds an adapter
func (b *ProfileBuilder) WithAdapter(id string) *ProfileBuilder {
	b.profile.Adapters = append(b.profile.Adapters, simulated.AdapterConfig{ID: id})
	return b
}

// WithScanError makes StartScan fail on the last adapter
func (b *ProfileBuilder) WithScanError(msg string) *ProfileBuilder {
	b.adapter().ScanError = msg
	return b
}

// WithPeripheral adds a peripheral to the last adapter
func (b *ProfileBuilder) WithPeripheral(address, name string) *ProfileBuilder {
	a := b.adapter()
	a.Peripherals = append(a.Peripherals, simulated.PeripheralConfig{
		Address: address,
		Name:    name,
		RSSI:    -60,
	})
	return b
}

// AppearingAfter hides the last peripheral until the scan has run for d
func (b *ProfileBuilder) AppearingAfter(d time.Duration) *ProfileBuilder {
	b.peripheral().AppearAfter = d
	return b
}

// WithPropertiesError makes property reads of the last peripheral fail
func (b *ProfileBuilder) WithPropertiesError(msg string) *ProfileBuilder {
	b.peripheral().PropertiesError = msg
	return b
}

// WithConnectError makes connecting to the last peripheral fail
func (b *ProfileBuilder) WithConnectError(msg string) *ProfileBuilder {
	b.peripheral().ConnectError = msg
	return b
}

// WithDiscoverError makes service discovery on the last peripheral fail
func (b *ProfileBuilder) WithDiscoverError(msg string) *ProfileBuilder {
	b.peripheral().DiscoverError = msg
	return b
}

// WithService adds a service to the last peripheral
func (b *ProfileBuilder) WithService(uuid string) *ProfileBuilder {
	p := b.peripheral()
	p.Services = append(p.Services, simulated.ServiceConfig{UUID: uuid})
	return b
}

// WithCharacteristic adds a characteristic to the last service
func (b *ProfileBuilder) WithCharacteristic(uuid, properties string, value []byte) *ProfileBuilder {
	p := b.peripheral()
	if len(p.Services) == 0 {
		panic("WithCharacteristic: no service added yet, call WithService first")
	}
	svc := &p.Services[len(p.Services)-1]
	svc.Characteristics = append(svc.Characteristics, simulated.CharacteristicConfig{
		UUID:       uuid,
		Properties: properties,
		Value:      value,
	})
	return b
}

// ThenRead scripts the next read of the last characteristic to return value
func (b *ProfileBuilder) ThenRead(value ...byte) *ProfileBuilder {
	c := b.characteristic()
	c.Reads = append(c.Reads, simulated.ReadConfig{Value: value})
	return b
}

// ThenFail scripts the next read of the last characteristic to fail with msg
func (b *ProfileBuilder) ThenFail(msg string) *ProfileBuilder {
	c := b.characteristic()
	c.Reads = append(c.Reads, simulated.ReadConfig{Error: msg})
	return b
}

// Build returns the configured profile
func (b *ProfileBuilder) Build() *simulated.Profile {
	profile := b.profile
	return &profile
}

func (b *ProfileBuilder) adapter() *simulated.AdapterConfig {
	if len(b.profile.Adapters) == 0 {
		panic("no adapter added yet, call WithAdapter first")
	}
	return &b.profile.Adapters[len(b.profile.Adapters)-1]
}

func (b *ProfileBuilder) peripheral() *simulated.PeripheralConfig {
	a := b.adapter()
	if len(a.Peripherals) == 0 {
		panic("no peripheral added yet, call WithPeripheral first")
	}
	return &a.Peripherals[len(a.Peripherals)-1]
}

func (b *ProfileBuilder) characteristic() *simulated.CharacteristicConfig {
	p := b.peripheral()
	if len(p.Services) == 0 || len(p.Services[len(p.Services)-1].Characteristics) == 0 {
		panic("no characteristic added yet, call WithCharacteristic first")
	}
	svc := &p.Services[len(p.Services)-1]
	return &svc.Characteristics[len(svc.Characteristics)-1]
}
