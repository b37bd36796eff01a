//go:build test

package testutils

import (
	"github.com/sirupsen/logrus"
	"github.com/srg/blepoll/internal/device/simulated"
	"github.com/stretchr/testify/suite"
)

// Default identifiers used by suites that do not configure their own profile.
const (
	DefaultAdapterID      = "hci0"
	DefaultPeripheralAddr = "AA:BB:CC:DD:EE:01"
	DefaultPeripheralName = "ChoiceMMed-1234"
)

// SimulatedBLESuite provides a testify suite backed by a simulated.Manager.
//
// Basic usage (default ChoiceMMed peripheral exposing 0x2A5F = 0x01):
//
//	type RunSuite struct {
//	    testutils.SimulatedBLESuite
//	}
//
//	func TestRunSuite(t *testing.T) {
//	    suite.Run(t, new(RunSuite))
//	}
//
// Custom profile usage, configured before the parent SetupTest or inside a test
// followed by Rebuild:
//
//	func (s *RunSuite) TestSomething() {
//	    s.WithProfile().
//	        WithAdapter("hci0").
//	        WithPeripheral("AA:BB:CC:DD:EE:02", "OtherDevice")
//	    s.Rebuild()
//	    ...
//	}
type SimulatedBLESuite struct {
	suite.Suite

	Helper *TestHelper
	Logger *logrus.Logger

	ProfileBuilder *ProfileBuilder
	Manager        *simulated.Manager
}

// SetupSuite is called once before all tests in the suite.
func (s *SimulatedBLESuite) SetupSuite() {
	s.Helper = NewTestHelper(s.T())
	s.Logger = s.Helper.Logger
	s.Logger.Debug("Suite setup completed")
}

// SetupTest builds the manager from the configured profile, or from the
// default profile when none was configured.
func (s *SimulatedBLESuite) SetupTest() {
	if s.ProfileBuilder == nil {
		s.ProfileBuilder = DefaultProfile()
	}
	s.Rebuild()
}

// TearDownTest resets the profile builder after each test.
func (s *SimulatedBLESuite) TearDownTest() {
	s.ProfileBuilder = nil
	s.Manager = nil
}

// WithProfile starts a fresh profile and returns its builder.
func (s *SimulatedBLESuite) WithProfile() *ProfileBuilder {
	s.ProfileBuilder = NewProfileBuilder()
	return s.ProfileBuilder
}

// Rebuild replaces Manager with one built from the current profile.
func (s *SimulatedBLESuite) Rebuild() {
	s.Manager = simulated.NewManager(s.ProfileBuilder.Build(), s.Logger)
}

// Adapter returns the simulated adapter with the given id, failing the test if it is absent.
func (s *SimulatedBLESuite) Adapter(id string) *simulated.Adapter {
	a := s.Manager.Adapter(id)
	s.Require().NotNil(a, "simulated adapter %s MUST exist", id)
	return a
}

// Peripheral returns the simulated peripheral with the given address on the given adapter.
func (s *SimulatedBLESuite) Peripheral(adapterID, address string) *simulated.Peripheral {
	p := s.Adapter(adapterID).Peripheral(address)
	s.Require().NotNil(p, "simulated peripheral %s MUST exist", address)
	return p
}

// DefaultProfile returns a single adapter seeing one ChoiceMMed peripheral
// whose 0x2A5F characteristic reads 0x01.
func DefaultProfile() *ProfileBuilder {
	return NewProfileBuilder().
		WithAdapter(DefaultAdapterID).
		WithPeripheral(DefaultPeripheralAddr, DefaultPeripheralName).
		WithService("1810").
		WithCharacteristic("2a5f", "read", []byte{0x01})
}
