package nic

import (
	"testing"

	"github.com/patchnet/corestack/arp"
	"github.com/patchnet/corestack/ethernet"
)

type fakePort struct {
	frames [][]byte
}

func (p *fakePort) Transmit(frame []byte) error {
	cp := append([]byte(nil), frame...)
	p.frames = append(p.frames, cp)
	return nil
}

func TestSendDatagramQueuesAndBroadcastsARP(t *testing.T) {
	port := &fakePort{}
	mac := [6]byte{1, 2, 3, 4, 5, 6}
	ip := [4]byte{10, 0, 0, 1}
	iface := NewInterface(mac, ip, port, nil)

	dgram := make([]byte, 20)
	dgram[0] = 0x45
	err := iface.SendDatagram(dgram, [4]byte{10, 0, 0, 2})
	if err != nil {
		t.Fatal(err)
	}
	if len(port.frames) != 1 {
		t.Fatalf("want 1 ARP request broadcast, got %d frames", len(port.frames))
	}
	efrm, err := ethernet.NewFrame(port.frames[0])
	if err != nil {
		t.Fatal(err)
	}
	if !efrm.IsBroadcast() {
		t.Fatal("first transmission should be a broadcast ARP request")
	}
	if efrm.EtherTypeOrSize() != ethernet.TypeARP {
		t.Fatalf("EtherType = %v, want ARP", efrm.EtherTypeOrSize())
	}

	// A second send to the same unresolved destination must not send another request.
	if err := iface.SendDatagram(dgram, [4]byte{10, 0, 0, 2}); err != nil {
		t.Fatal(err)
	}
	if len(port.frames) != 1 {
		t.Fatalf("want still 1 frame (no duplicate ARP request), got %d", len(port.frames))
	}
}

func TestARPReplyFlushesWaitingQueue(t *testing.T) {
	port := &fakePort{}
	mac := [6]byte{1, 2, 3, 4, 5, 6}
	ip := [4]byte{10, 0, 0, 1}
	iface := NewInterface(mac, ip, port, nil)

	dgram := make([]byte, 20)
	dgram[0] = 0x45
	peer := [4]byte{10, 0, 0, 2}
	peerMAC := [6]byte{9, 9, 9, 9, 9, 9}
	if err := iface.SendDatagram(dgram, peer); err != nil {
		t.Fatal(err)
	}

	var replyBuf [28]byte
	afrm, _ := arp.NewFrame(replyBuf[:])
	afrm.SetHardware(1, 6)
	afrm.SetProtocol(ethernet.TypeIPv4, 4)
	afrm.SetOperation(arp.OpReply)
	senderHW, senderIP := afrm.Sender4()
	*senderHW = peerMAC
	*senderIP = peer
	targetHW, targetIP := afrm.Target4()
	*targetHW = mac
	*targetIP = ip

	var frameBuf [14 + 28]byte
	efrm, _ := ethernet.NewFrame(frameBuf[:])
	efrm.SetDestinationHardwareAddr(mac)
	efrm.SetSourceHardwareAddr(peerMAC)
	efrm.SetEtherType(ethernet.TypeARP)
	copy(frameBuf[14:], replyBuf[:])

	if err := iface.RecvFrame(frameBuf[:]); err != nil {
		t.Fatal(err)
	}
	if len(port.frames) != 2 {
		t.Fatalf("want ARP request + flushed datagram = 2 frames, got %d", len(port.frames))
	}
	flushed, err := ethernet.NewFrame(port.frames[1])
	if err != nil {
		t.Fatal(err)
	}
	if flushed.EtherTypeOrSize() != ethernet.TypeIPv4 {
		t.Fatalf("flushed frame EtherType = %v, want IPv4", flushed.EtherTypeOrSize())
	}
	if *flushed.DestinationHardwareAddr() != peerMAC {
		t.Fatal("flushed frame must target the resolved peer MAC")
	}
}

func TestTickExpiresARPRequestTimerButKeepsQueuedDatagram(t *testing.T) {
	port := &fakePort{}
	mac := [6]byte{1, 2, 3, 4, 5, 6}
	ip := [4]byte{10, 0, 0, 1}
	iface := NewInterface(mac, ip, port, nil)

	dgram := make([]byte, 20)
	dgram[0] = 0x45
	peer := [4]byte{10, 0, 0, 2}
	if err := iface.SendDatagram(dgram, peer); err != nil {
		t.Fatal(err)
	}
	if len(port.frames) != 1 {
		t.Fatalf("want 1 ARP request broadcast, got %d", len(port.frames))
	}

	iface.Tick(5_000)
	if _, pending := iface.waitingTimer[peer]; pending {
		t.Fatal("request timer should have expired past 5s TTL")
	}
	if queued := iface.waiting[peer]; len(queued) != 1 {
		t.Fatalf("queued datagram must survive request-timer expiry, got %d queued", len(queued))
	}

	// A fresh send attempt is now free to broadcast another request.
	if err := iface.SendDatagram(dgram, peer); err != nil {
		t.Fatal(err)
	}
	if len(port.frames) != 2 {
		t.Fatalf("want a fresh ARP request after timer expiry, got %d frames", len(port.frames))
	}
	if len(iface.waiting[peer]) != 2 {
		t.Fatalf("both datagrams should still be queued, got %d", len(iface.waiting[peer]))
	}
}

func TestTickExpiresARPCache(t *testing.T) {
	port := &fakePort{}
	iface := NewInterface([6]byte{1}, [4]byte{10, 0, 0, 1}, port, nil)
	iface.arpCache[[4]byte{10, 0, 0, 2}] = arpEntry{mac: [6]byte{9}}

	iface.Tick(29_999)
	if _, ok := iface.arpCache[[4]byte{10, 0, 0, 2}]; !ok {
		t.Fatal("entry should still be alive before 30s TTL")
	}
	iface.Tick(2)
	if _, ok := iface.arpCache[[4]byte{10, 0, 0, 2}]; ok {
		t.Fatal("entry should have expired past 30s TTL")
	}
}
