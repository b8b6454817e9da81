// Package nic implements the link-layer NetworkInterface: Ethernet framing
// of outbound IPv4 datagrams, ARP resolution with a pending-queue per
// unresolved destination, and tick-driven ageing of both the ARP cache and
// in-flight ARP requests.
package nic

import (
	"log/slog"

	"github.com/patchnet/corestack/arp"
	"github.com/patchnet/corestack/ethernet"
	"github.com/patchnet/corestack/internal"
	"github.com/patchnet/corestack/wire"
)

// ARP cache and pending-request ageing thresholds, in milliseconds.
const (
	arpEntryTTLms    = 30_000
	arpResponseTTLms = 5_000
)

// OutputPort is the abstract physical transport a NetworkInterface
// transmits serialized Ethernet frames through. Implementations might wrap
// a TAP device, a raw socket, or an in-memory test link.
type OutputPort interface {
	Transmit(frame []byte) error
}

type arpEntry struct {
	mac   [6]byte
	ageMs uint64
}

type logger struct{ log *slog.Logger }

func (l logger) info(msg string, attrs ...slog.Attr) {
	internal.LogAttrs(l.log, slog.LevelInfo, msg, attrs...)
}
func (l logger) debug(msg string, attrs ...slog.Attr) {
	internal.LogAttrs(l.log, slog.LevelDebug, msg, attrs...)
}
func (l logger) trace(msg string, attrs ...slog.Attr) {
	internal.LogAttrs(l.log, internal.LevelTrace, msg, attrs...)
}

// Interface is a single link-layer network interface: an Ethernet/IPv4
// address pair, an ARP cache with per-entry expiry, and a queue of
// datagrams waiting on address resolution.
type Interface struct {
	logger

	mac  [6]byte
	ip   [4]byte
	port OutputPort

	arpCache     map[[4]byte]arpEntry
	waiting      map[[4]byte][][]byte
	waitingTimer map[[4]byte]uint64

	received [][]byte

	frameBuf [1514]byte
}

// NewInterface returns an Interface bound to the given Ethernet/IPv4
// address pair, transmitting serialized frames through port.
func NewInterface(mac [6]byte, ip [4]byte, port OutputPort, log *slog.Logger) *Interface {
	iface := &Interface{
		logger:       logger{log: log},
		mac:          mac,
		ip:           ip,
		port:         port,
		arpCache:     make(map[[4]byte]arpEntry),
		waiting:      make(map[[4]byte][][]byte),
		waitingTimer: make(map[[4]byte]uint64),
	}
	iface.info("nic: new interface", internal.SlogAddr6("mac", &iface.mac), internal.SlogAddr4("ip", &iface.ip))
	return iface
}

// ReceivedDatagrams drains and returns the queue of IPv4 datagrams the
// interface has accepted off the wire since the last call.
func (iface *Interface) ReceivedDatagrams() [][]byte {
	out := iface.received
	iface.received = nil
	return out
}

// SendDatagram transmits dgram to nextHop, resolving its MAC address via
// ARP first if necessary. An unresolved destination queues dgram and, if no
// request is already in flight, broadcasts an ARP request.
func (iface *Interface) SendDatagram(dgram []byte, nextHop [4]byte) error {
	if entry, ok := iface.arpCache[nextHop]; ok {
		return iface.transmitIPv4(entry.mac, dgram)
	}

	iface.waiting[nextHop] = append(iface.waiting[nextHop], dgram)
	if _, pending := iface.waitingTimer[nextHop]; pending {
		return nil
	}
	iface.waitingTimer[nextHop] = 0
	return iface.sendARPRequest(nextHop)
}

func (iface *Interface) sendARPRequest(target [4]byte) error {
	var buf [28]byte
	afrm, _ := arp.NewFrame(buf[:])
	afrm.SetHardware(1, 6)
	afrm.SetProtocol(ethernet.TypeIPv4, 4)
	afrm.SetOperation(arp.OpRequest)
	senderHW, senderIP := afrm.Sender4()
	*senderHW = iface.mac
	*senderIP = iface.ip
	_, targetIP := afrm.Target4()
	*targetIP = target

	iface.trace("nic: broadcasting arp request", internal.SlogAddr4("target", &target))
	return iface.transmitFrame(ethernet.BroadcastAddr(), ethernet.TypeARP, buf[:])
}

// RecvFrame processes an inbound Ethernet frame: IPv4 payloads are queued
// for the host, ARP messages are answered and update the cache, and any
// datagrams waiting on a newly-learned address are flushed.
func (iface *Interface) RecvFrame(raw []byte) error {
	efrm, err := ethernet.NewFrame(raw)
	if err != nil {
		return err
	}
	var v wire.Validator
	efrm.ValidateSize(&v)
	if v.HasError() {
		return v.ErrPop()
	}
	dst := *efrm.DestinationHardwareAddr()
	if dst != iface.mac && !efrm.IsBroadcast() {
		return nil
	}

	switch efrm.EtherTypeOrSize() {
	case ethernet.TypeIPv4:
		payload := efrm.Payload()
		ifrm, err := ipv4FrameOf(payload)
		if err != nil {
			iface.debug("nic: dropping malformed ipv4 datagram", slog.String("err", err.Error()))
			return nil
		}
		iface.received = append(iface.received, ifrm)
	case ethernet.TypeARP:
		return iface.recvARP(efrm.Payload())
	}
	return nil
}

func ipv4FrameOf(payload []byte) ([]byte, error) {
	if len(payload) < 20 {
		return nil, wire.ErrShortBuffer
	}
	return payload, nil
}

func (iface *Interface) recvARP(payload []byte) error {
	afrm, err := arp.NewFrame(payload)
	if err != nil {
		return nil
	}
	var v wire.Validator
	afrm.ValidateSize(&v)
	if v.HasError() {
		return nil
	}

	senderHW, senderIP := afrm.Sender4()
	iface.arpCache[*senderIP] = arpEntry{mac: *senderHW}
	iface.trace("nic: learned arp entry", internal.SlogAddr4("ip", senderIP), internal.SlogAddr6("mac", senderHW))

	_, targetIP := afrm.Target4()
	if afrm.Operation() == arp.OpRequest && *targetIP == iface.ip {
		if err := iface.sendARPReply(*senderHW, *senderIP); err != nil {
			return err
		}
	}

	if queued, ok := iface.waiting[*senderIP]; ok {
		for _, dgram := range queued {
			if err := iface.transmitIPv4(*senderHW, dgram); err != nil {
				return err
			}
		}
		delete(iface.waiting, *senderIP)
		delete(iface.waitingTimer, *senderIP)
	}
	return nil
}

func (iface *Interface) sendARPReply(dstMAC [6]byte, dstIP [4]byte) error {
	var buf [28]byte
	afrm, _ := arp.NewFrame(buf[:])
	afrm.SetHardware(1, 6)
	afrm.SetProtocol(ethernet.TypeIPv4, 4)
	afrm.SetOperation(arp.OpReply)
	senderHW, senderIP := afrm.Sender4()
	*senderHW = iface.mac
	*senderIP = iface.ip
	targetHW, targetIP := afrm.Target4()
	*targetHW = dstMAC
	*targetIP = dstIP
	return iface.transmitFrame(dstMAC, ethernet.TypeARP, buf[:])
}

func (iface *Interface) transmitIPv4(dst [6]byte, dgram []byte) error {
	return iface.transmitFrame(dst, ethernet.TypeIPv4, dgram)
}

func (iface *Interface) transmitFrame(dst [6]byte, etype ethernet.Type, payload []byte) error {
	total := 14 + len(payload)
	var buf []byte
	if total <= len(iface.frameBuf) {
		buf = iface.frameBuf[:total]
	} else {
		buf = make([]byte, total)
	}
	efrm, err := ethernet.NewFrame(buf)
	if err != nil {
		return err
	}
	efrm.ClearHeader()
	efrm.SetDestinationHardwareAddr(dst)
	efrm.SetSourceHardwareAddr(iface.mac)
	efrm.SetEtherType(etype)
	copy(buf[14:], payload)
	return iface.port.Transmit(buf)
}

// Tick ages every ARP cache entry and pending-request timer by elapsedMs,
// evicting entries that have crossed their TTL.
func (iface *Interface) Tick(elapsedMs uint64) {
	for ip, entry := range iface.arpCache {
		entry.ageMs += elapsedMs
		if entry.ageMs >= arpEntryTTLms {
			delete(iface.arpCache, ip)
			continue
		}
		iface.arpCache[ip] = entry
	}
	for ip, age := range iface.waitingTimer {
		age += elapsedMs
		if age >= arpResponseTTLms {
			// Only the in-flight-request timer expires here; queued datagrams
			// stay queued and are flushed once an ARP reply arrives. Expiry
			// just permits SendDatagram to issue a fresh request next time.
			delete(iface.waitingTimer, ip)
			continue
		}
		iface.waitingTimer[ip] = age
	}
}
