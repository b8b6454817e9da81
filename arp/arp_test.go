package arp

import (
	"testing"

	"github.com/patchnet/corestack/ethernet"
	"github.com/patchnet/corestack/wire"
)

func TestFrameIPv4(t *testing.T) {
	var buf [sizeHeaderv4]byte
	afrm, err := NewFrame(buf[:])
	if err != nil {
		t.Fatal(err)
	}
	afrm.SetHardware(1, 6)
	afrm.SetProtocol(ethernet.TypeIPv4, 4)
	afrm.SetOperation(OpRequest)

	senderHW, senderIP := afrm.Sender4()
	*senderHW = [6]byte{1, 2, 3, 4, 5, 6}
	*senderIP = [4]byte{192, 168, 0, 1}
	targetHW, targetIP := afrm.Target4()
	*targetHW = [6]byte{0, 0, 0, 0, 0, 0}
	*targetIP = [4]byte{192, 168, 0, 2}

	var v wire.Validator
	afrm.ValidateSize(&v)
	if v.HasError() {
		t.Fatal(v.Err())
	}

	if afrm.Operation() != OpRequest {
		t.Errorf("got operation %v, want %v", afrm.Operation(), OpRequest)
	}
	gotType, gotLen := afrm.Protocol()
	if gotType != ethernet.TypeIPv4 || gotLen != 4 {
		t.Errorf("got protocol %v/%d, want %v/4", gotType, gotLen, ethernet.TypeIPv4)
	}

	afrm.SwapTargetSender()
	sHW, sIP := afrm.Sender4()
	if *sHW != [6]byte{0, 0, 0, 0, 0, 0} || *sIP != [4]byte{192, 168, 0, 2} {
		t.Errorf("swap did not exchange sender fields: %v %v", sHW, sIP)
	}
}

func TestFrameShort(t *testing.T) {
	var buf [sizeHeaderv4 - 1]byte
	_, err := NewFrame(buf[:])
	if err == nil {
		t.Fatal("want error constructing frame from undersized buffer")
	}
}
