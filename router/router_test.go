package router

import (
	"testing"

	"github.com/patchnet/corestack/ipv4"
)

type fakeIface struct {
	queue []byte
	sent  [][4]byte
}

func (f *fakeIface) ReceivedDatagrams() [][]byte {
	if f.queue == nil {
		return nil
	}
	q := [][]byte{f.queue}
	f.queue = nil
	return q
}

func (f *fakeIface) SendDatagram(dgram []byte, nextHop [4]byte) error {
	f.sent = append(f.sent, nextHop)
	return nil
}

func newDatagram(dst [4]byte, ttl uint8) []byte {
	buf := make([]byte, 20)
	ifrm, _ := ipv4.NewFrame(buf)
	ifrm.SetVersionAndIHL(4, 5)
	ifrm.SetTotalLength(20)
	ifrm.SetTTL(ttl)
	ifrm.SetDestinationAddr(dst)
	return buf
}

func TestLongestPrefixMatch(t *testing.T) {
	r := New(nil)
	direct := &fakeIface{}
	fallback := &fakeIface{}
	idxDirect := r.AddInterface(direct)
	idxFallback := r.AddInterface(fallback)

	r.AddRoute([4]byte{0, 0, 0, 0}, 0, [4]byte{}, false, idxFallback)
	r.AddRoute([4]byte{192, 168, 1, 0}, 24, [4]byte{}, false, idxDirect)

	direct.queue = newDatagram([4]byte{192, 168, 1, 42}, 10)
	r.Route()
	if len(direct.sent) != 1 {
		t.Fatalf("want datagram routed to the more specific /24 interface, got %d sends", len(direct.sent))
	}
	if direct.sent[0] != [4]byte{192, 168, 1, 42} {
		t.Fatalf("next hop = %v, want destination itself (directly attached)", direct.sent[0])
	}

	fallback.queue = newDatagram([4]byte{8, 8, 8, 8}, 10)
	r.Route()
	if len(fallback.sent) != 1 {
		t.Fatalf("want datagram routed to the default route interface, got %d sends", len(fallback.sent))
	}
}

func TestTTLExpiryDropped(t *testing.T) {
	r := New(nil)
	iface := &fakeIface{}
	idx := r.AddInterface(iface)
	r.AddRoute([4]byte{0, 0, 0, 0}, 0, [4]byte{}, false, idx)

	iface.queue = newDatagram([4]byte{1, 2, 3, 4}, 1)
	r.Route()
	if len(iface.sent) != 0 {
		t.Fatal("datagram with ttl<=1 must be dropped, not forwarded")
	}
}

func TestTTLDecrementedAndChecksumRecomputed(t *testing.T) {
	r := New(nil)
	iface := &fakeIface{}
	idx := r.AddInterface(iface)
	r.AddRoute([4]byte{0, 0, 0, 0}, 0, [4]byte{}, false, idx)

	dgram := newDatagram([4]byte{1, 2, 3, 4}, 5)
	iface.queue = dgram
	r.Route()
	ifrm, _ := ipv4.NewFrame(dgram)
	if ifrm.TTL() != 4 {
		t.Fatalf("TTL = %d, want 4 after decrement", ifrm.TTL())
	}
	if ifrm.CRC() == 0 {
		t.Fatal("checksum should have been recomputed to a nonzero value")
	}
}

func TestNextHopOverridesDestination(t *testing.T) {
	r := New(nil)
	iface := &fakeIface{}
	idx := r.AddInterface(iface)
	gateway := [4]byte{10, 0, 0, 254}
	r.AddRoute([4]byte{0, 0, 0, 0}, 0, gateway, true, idx)

	iface.queue = newDatagram([4]byte{8, 8, 8, 8}, 10)
	r.Route()
	if iface.sent[0] != gateway {
		t.Fatalf("next hop = %v, want configured gateway %v", iface.sent[0], gateway)
	}
}
