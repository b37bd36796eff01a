//go:build test && linux

package goble

import (
	"context"

	"github.com/go-ble/ble"
	"github.com/go-ble/ble/linux/hci"
)

func (s *GoBLETestSuite) TestConnectKeepsHCIRandomAddress() {
	// GOAL: Verify a random-address peripheral is dialed as hci.RandomAddress so the HCI
	// connection request uses the random peer address type
	//
	// TEST SCENARIO: Advertisement from hci.RandomAddress → Connect → dialer receives hci.RandomAddress

	var dialed ble.Addr
	dial := func(_ context.Context, addr ble.Addr) (gattClient, error) {
		dialed = addr
		return s.client, nil
	}
	a := newAdapterWith("hci0", s.hci, dial, s.logger)
	a.handleAdvertisement(fakeAdvertisement{
		bleAddr: hci.RandomAddress{Addr: ble.NewAddr("c0:11:22:33:44:55")},
		name:    "ChoiceMMed-1234",
	})

	list, err := a.Peripherals(context.Background())
	s.Require().NoError(err)
	s.Require().Len(list, 1)
	s.Require().NoError(list[0].Connect(context.Background()))

	_, isRandom := dialed.(hci.RandomAddress)
	s.True(isRandom, "a random address MUST be dialed as hci.RandomAddress, got %T", dialed)
}
