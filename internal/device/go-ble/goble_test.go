//go:build test

package goble

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-ble/ble"
	"github.com/sirupsen/logrus"
	"github.com/srg/blepoll/internal/device"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
)

type GoBLETestSuite struct {
	suite.Suite

	logger *logrus.Logger
	hci    *MockHCIDevice
	client *MockGATTClient
	dials  int

	originalFactory func(int) (ble.Device, error)
	originalIDs     func() ([]int, error)
}

func (s *GoBLETestSuite) SetupSuite() {
	s.logger = logrus.New()
	s.logger.SetLevel(logrus.DebugLevel)
	s.originalFactory = DeviceFactory
	s.originalIDs = DeviceIDs
}

func (s *GoBLETestSuite) SetupTest() {
	s.hci = &MockHCIDevice{}
	s.client = &MockGATTClient{}
	s.dials = 0
}

func (s *GoBLETestSuite) TearDownTest() {
	DeviceFactory = s.originalFactory
	DeviceIDs = s.originalIDs
}

// newAdapter builds an adapter whose dial hands out s.client.
func (s *GoBLETestSuite) newAdapter() *Adapter {
	dial := func(_ context.Context, _ ble.Addr) (gattClient, error) {
		s.dials++
		return s.client, nil
	}
	return newAdapterWith("hci0", s.hci, dial, s.logger)
}

// blockingScan makes Scan deliver advs and then block until its context ends.
func (s *GoBLETestSuite) blockingScan(advs ...ble.Advertisement) {
	s.hci.On("Scan", mock.Anything, true, mock.Anything).Run(func(args mock.Arguments) {
		ctx := args.Get(0).(context.Context)
		h := args.Get(2).(ble.AdvHandler)
		for _, adv := range advs {
			h(adv)
		}
		<-ctx.Done()
	}).Return(context.Canceled)
}

func testProfile() *ble.Profile {
	return &ble.Profile{
		Services: []*ble.Service{
			{
				UUID: ble.UUID16(0x1810),
				Characteristics: []*ble.Characteristic{
					{UUID: ble.UUID16(0x2A35), Property: ble.CharIndicate},
					{UUID: ble.UUID16(0x2A5F), Property: ble.CharRead | ble.CharNotify},
				},
			},
			{
				UUID: ble.MustParse("6e400001-b5a3-f393-e0a9-e50e24dcca9e"),
				Characteristics: []*ble.Characteristic{
					{UUID: ble.MustParse("6e400003-b5a3-f393-e0a9-e50e24dcca9e"), Property: ble.CharWriteNR},
				},
			},
		},
	}
}

func (s *GoBLETestSuite) TestManagerOpensDevicesInIndexOrder() {
	// GOAL: Verify enumeration skips devices that fail to open and keeps index order
	//
	// TEST SCENARIO: hci0 fails, hci1 and hci2 open → adapters [hci1, hci2]

	DeviceIDs = func() ([]int, error) { return []int{0, 1, 2}, nil }
	DeviceFactory = func(id int) (ble.Device, error) {
		if id == 0 {
			return nil, errors.New("operation not permitted")
		}
		return &MockHCIDevice{}, nil
	}

	adapters, err := NewManager(AnyDevice, s.logger).Adapters(context.Background())
	s.Require().NoError(err)
	s.Require().Len(adapters, 2)
	s.Equal("hci1", adapters[0].ID())
	s.Equal("hci2", adapters[1].ID())
}

func (s *GoBLETestSuite) TestManagerDeviceFilter() {
	DeviceIDs = func() ([]int, error) { return []int{0, 1}, nil }
	DeviceFactory = func(int) (ble.Device, error) { return &MockHCIDevice{}, nil }

	adapters, err := NewManager(1, s.logger).Adapters(context.Background())
	s.Require().NoError(err)
	s.Require().Len(adapters, 1)
	s.Equal("hci1", adapters[0].ID())
}

func (s *GoBLETestSuite) TestManagerReportsLastOpenFailure() {
	DeviceIDs = func() ([]int, error) { return []int{0}, nil }
	DeviceFactory = func(int) (ble.Device, error) { return nil, errors.New("operation not permitted") }

	_, err := NewManager(AnyDevice, s.logger).Adapters(context.Background())
	s.Require().Error(err)
	s.ErrorIs(err, device.ErrBluetoothOff, "permission failure MUST map to bluetooth_off")
	s.Contains(err.Error(), "hci0")
}

func (s *GoBLETestSuite) TestManagerWithoutDevices() {
	DeviceIDs = func() ([]int, error) { return nil, nil }

	adapters, err := NewManager(AnyDevice, s.logger).Adapters(context.Background())
	s.NoError(err)
	s.Empty(adapters)
}

func (s *GoBLETestSuite) TestScanCollectsPeripheralsInFirstSeenOrder() {
	// GOAL: Verify advertisements are merged per address and listed in first-seen order
	//
	// TEST SCENARIO: B, A, then B again with a name → [B(named), A]

	s.blockingScan(
		fakeAdvertisement{addr: "bb:bb:bb:bb:bb:bb", rssi: -80},
		fakeAdvertisement{addr: "aa:aa:aa:aa:aa:aa", name: "OtherDevice", rssi: -50},
		fakeAdvertisement{addr: "bb:bb:bb:bb:bb:bb", name: "ChoiceMMed-1234", rssi: -70},
	)
	a := s.newAdapter()
	ctx := context.Background()

	s.Require().NoError(a.StartScan(ctx))
	s.Error(a.StartScan(ctx), "second StartScan MUST fail while scanning")

	s.Require().Eventually(func() bool {
		list, err := a.Peripherals(ctx)
		return err == nil && len(list) == 2
	}, time.Second, 5*time.Millisecond, "both peripherals MUST be recorded")
	s.Require().NoError(a.StopScan())

	list, err := a.Peripherals(ctx)
	s.Require().NoError(err)
	s.Equal("bb:bb:bb:bb:bb:bb", list[0].ID())
	s.Equal("aa:aa:aa:aa:aa:aa", list[1].ID())

	props, err := list[0].Properties(ctx)
	s.Require().NoError(err)
	s.Equal("ChoiceMMed-1234", props.LocalName, "later scan response MUST fill in the name")
	s.Equal(-70, props.RSSI)

	s.NoError(a.StopScan(), "StopScan MUST be idempotent")
	s.hci.AssertExpectations(s.T())
}

func (s *GoBLETestSuite) TestNamelessUpdateKeepsName() {
	a := s.newAdapter()
	a.record(advertisement{addr: ble.NewAddr("01"), name: "ChoiceMMed", rssi: -40})
	a.record(advertisement{addr: ble.NewAddr("01"), rssi: -41})

	list, err := a.Peripherals(context.Background())
	s.Require().NoError(err)
	props, _ := list[0].Properties(context.Background())
	s.Equal("ChoiceMMed", props.LocalName)
	s.Equal(-41, props.RSSI)
}

func (s *GoBLETestSuite) TestScanFailureSurfacesThroughPeripherals() {
	s.hci.On("Scan", mock.Anything, true, mock.Anything).Return(errors.New("hci: command disallowed"))
	a := s.newAdapter()
	ctx := context.Background()

	s.Require().NoError(a.StartScan(ctx))
	s.Require().Eventually(func() bool {
		_, err := a.Peripherals(ctx)
		return err != nil
	}, time.Second, 5*time.Millisecond, "scan failure MUST be reported by Peripherals")

	_, err := a.Peripherals(ctx)
	s.Contains(err.Error(), "command disallowed")
	s.Error(a.StopScan())
}

func (s *GoBLETestSuite) TestCloseStopsDevice() {
	s.blockingScan()
	s.hci.On("Stop").Return(nil).Once()
	a := s.newAdapter()

	s.Require().NoError(a.StartScan(context.Background()))
	s.Require().NoError(a.Close())
	s.hci.AssertExpectations(s.T())
}

func (s *GoBLETestSuite) TestConnectDiscoverReadDisconnect() {
	// GOAL: Verify the full peripheral lifecycle over a mocked go-ble client
	//
	// TEST SCENARIO: Connect → DiscoverProfile(true) flattens 3 chars → read 0x2A5F → CancelConnection

	profile := testProfile()
	target := profile.Services[0].Characteristics[1]
	s.client.On("DiscoverProfile", true).Return(profile, nil).Once()
	s.client.On("ReadCharacteristic", target).Return([]byte{0x01, 0x02}, nil).Once()
	s.client.On("CancelConnection").Return(nil).Once()

	a := s.newAdapter()
	a.record(advertisement{addr: ble.NewAddr("aa:bb:cc:dd:ee:ff"), name: "ChoiceMMed"})
	list, _ := a.Peripherals(context.Background())
	p := list[0]
	ctx := context.Background()

	s.ErrorIs(p.DiscoverServices(ctx), device.ErrNotConnected, "discovery MUST require a connection")

	s.Require().NoError(p.Connect(ctx))
	s.ErrorIs(p.Connect(ctx), device.ErrAlreadyConnected)
	s.Equal(1, s.dials, "second Connect MUST NOT dial again")

	s.Require().NoError(p.DiscoverServices(ctx))
	chars := p.Characteristics()
	s.Require().Len(chars, 3)
	s.Equal(device.UUID16(0x2A35), chars[0].UUID)
	s.Equal(device.UUID16(0x2A5F), chars[1].UUID)
	s.Equal(device.UUID16(0x1810), chars[1].Service)
	s.True(chars[1].Properties.Has(device.PropRead | device.PropNotify))
	s.Equal("6e400003-b5a3-f393-e0a9-e50e24dcca9e", chars[2].UUID.String())
	s.Equal(device.PropWriteWithoutResponse, chars[2].Properties)

	value, err := p.Read(ctx, chars[1])
	s.Require().NoError(err)
	s.Equal([]byte{0x01, 0x02}, value)

	s.Require().NoError(p.Disconnect(ctx))
	s.NoError(p.Disconnect(ctx), "second Disconnect MUST be a no-op")

	_, err = p.Read(ctx, chars[1])
	s.ErrorIs(err, device.ErrNotConnected)
	s.client.AssertExpectations(s.T())
}

func (s *GoBLETestSuite) TestReadUnknownHandle() {
	s.client.On("DiscoverProfile", true).Return(testProfile(), nil)

	a := s.newAdapter()
	a.record(advertisement{addr: ble.NewAddr("01")})
	list, _ := a.Peripherals(context.Background())
	p := list[0]
	s.Require().NoError(p.Connect(context.Background()))
	s.Require().NoError(p.DiscoverServices(context.Background()))

	_, err := p.Read(context.Background(), device.Characteristic{UUID: device.UUID16(0x2A19), Handle: "service0009/char0000"})
	var nf *device.NotFoundError
	s.ErrorAs(err, &nf)
}

func (s *GoBLETestSuite) TestReadHonoursContext() {
	profile := testProfile()
	release := make(chan struct{})
	defer close(release)
	s.client.On("DiscoverProfile", true).Return(profile, nil)
	s.client.On("ReadCharacteristic", mock.Anything).Run(func(mock.Arguments) { <-release }).Return([]byte{1}, nil)

	a := s.newAdapter()
	a.record(advertisement{addr: ble.NewAddr("01")})
	list, _ := a.Peripherals(context.Background())
	p := list[0]
	s.Require().NoError(p.Connect(context.Background()))
	s.Require().NoError(p.DiscoverServices(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := p.Read(ctx, p.Characteristics()[1])
	s.ErrorIs(err, context.DeadlineExceeded)
}

func (s *GoBLETestSuite) TestConnectFailureIsNormalized() {
	dial := func(context.Context, ble.Addr) (gattClient, error) {
		return nil, context.DeadlineExceeded
	}
	a := newAdapterWith("hci0", s.hci, dial, s.logger)
	a.record(advertisement{addr: ble.NewAddr("01")})
	list, _ := a.Peripherals(context.Background())

	err := list[0].Connect(context.Background())
	s.ErrorIs(err, device.ErrNotConnected)
	s.ErrorIs(err, context.DeadlineExceeded, "original cause MUST stay in the chain")
}

// randomAddr stands in for a backend address type that carries more than its string form.
type randomAddr struct {
	ble.Addr
}

func (s *GoBLETestSuite) TestConnectDialsAdvertisedAddress() {
	// GOAL: Verify Connect dials the exact ble.Addr value from the advertisement
	//
	// TEST SCENARIO: Advertisement with a typed address → Connect → dialer receives the same typed value

	advertised := randomAddr{Addr: ble.NewAddr("c0:11:22:33:44:55")}
	s.blockingScan(fakeAdvertisement{bleAddr: advertised, name: "ChoiceMMed-1234"})

	var dialed ble.Addr
	dial := func(_ context.Context, addr ble.Addr) (gattClient, error) {
		dialed = addr
		return s.client, nil
	}
	a := newAdapterWith("hci0", s.hci, dial, s.logger)
	ctx := context.Background()

	s.Require().NoError(a.StartScan(ctx))
	s.Require().Eventually(func() bool {
		list, err := a.Peripherals(ctx)
		return err == nil && len(list) == 1
	}, time.Second, 5*time.Millisecond)
	s.Require().NoError(a.StopScan())

	list, _ := a.Peripherals(ctx)
	s.Equal("c0:11:22:33:44:55", list[0].ID())
	s.Require().NoError(list[0].Connect(ctx))
	s.Require().IsType(randomAddr{}, dialed, "the address type MUST survive until dialing")
	s.Equal(advertised, dialed)
}

func (s *GoBLETestSuite) TestDiscoverServicesHonoursContext() {
	// GOAL: Verify a stalled profile discovery is bounded by the caller's context
	//
	// TEST SCENARIO: DiscoverProfile blocks → 20ms deadline → DeadlineExceeded, no characteristics

	release := make(chan struct{})
	defer close(release)
	s.client.On("DiscoverProfile", true).Run(func(mock.Arguments) { <-release }).Return(testProfile(), nil)

	a := s.newAdapter()
	a.record(advertisement{addr: ble.NewAddr("01")})
	list, _ := a.Peripherals(context.Background())
	p := list[0]
	s.Require().NoError(p.Connect(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	s.ErrorIs(p.DiscoverServices(ctx), context.DeadlineExceeded)
	s.Empty(p.Characteristics(), "an abandoned discovery MUST NOT publish characteristics")
}

func TestNewProperties(t *testing.T) {
	got := NewProperties(ble.CharRead | ble.CharWrite | ble.CharIndicate)
	if !got.Has(device.PropRead | device.PropWrite | device.PropIndicate) {
		t.Errorf("expected read,write,indicate, got %s", got)
	}
	if got.Has(device.PropNotify) {
		t.Errorf("notify MUST NOT be set, got %s", got)
	}
}

func TestGoBLETestSuite(t *testing.T) {
	suite.Run(t, new(GoBLETestSuite))
}
