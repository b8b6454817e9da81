// Package router implements longest-prefix-match IPv4 forwarding across a
// set of nic.Interface-shaped link endpoints: routes are stored per prefix
// length in a table keyed by the address's top bits for that length, and
// Route drains every interface's received-datagram queue, decrementing TTL
// and recomputing the header checksum before forwarding.
package router

import (
	"encoding/binary"
	"log/slog"

	"github.com/patchnet/corestack/internal"
	"github.com/patchnet/corestack/ipv4"
)

// Interface is the subset of nic.Interface a Router needs: draining
// received datagrams and sending resolved ones back out.
type Interface interface {
	ReceivedDatagrams() [][]byte
	SendDatagram(dgram []byte, nextHop [4]byte) error
}

type route struct {
	interfaceIndex int
	nextHop        [4]byte
	hasNextHop     bool
}

type logger struct{ log *slog.Logger }

func (l logger) debug(msg string, attrs ...slog.Attr) {
	internal.LogAttrs(l.log, slog.LevelDebug, msg, attrs...)
}

// Router forwards IPv4 datagrams between a set of interfaces using
// longest-prefix-match routing.
type Router struct {
	logger

	interfaces []Interface
	// table[length] maps prefixKey(prefix, length) to its route, for length in [0,32].
	table [33]map[uint32]route
}

// New returns an empty Router with no routes or attached interfaces.
func New(log *slog.Logger) *Router {
	r := &Router{logger: logger{log: log}}
	for i := range r.table {
		r.table[i] = make(map[uint32]route)
	}
	return r
}

// AddInterface registers iface with the router and returns its index, used
// as the interfaceIndex argument to AddRoute.
func (r *Router) AddInterface(iface Interface) int {
	r.interfaces = append(r.interfaces, iface)
	return len(r.interfaces) - 1
}

// AddRoute installs a route matching the top length bits of prefix,
// forwarding to nextHop (or, if hasNextHop is false, directly to the
// datagram's own destination) via the interface at interfaceIndex. A length
// of 0 installs the default route.
func (r *Router) AddRoute(prefix [4]byte, length uint8, nextHop [4]byte, hasNextHop bool, interfaceIndex int) {
	key := prefixKey(binary.BigEndian.Uint32(prefix[:]), length)
	r.table[length][key] = route{interfaceIndex: interfaceIndex, nextHop: nextHop, hasNextHop: hasNextHop}
	r.debug("router: add route", slog.Int("length", int(length)), slog.Int("interface", interfaceIndex), slog.Bool("has_next_hop", hasNextHop))
}

// Match returns the route for addr chosen by longest matching prefix,
// trying lengths from 32 down to 0 (the default route) and returning the
// first hit.
func (r *Router) Match(addr [4]byte) (interfaceIndex int, nextHop [4]byte, hasNextHop bool, ok bool) {
	n := binary.BigEndian.Uint32(addr[:])
	for length := 32; length >= 0; length-- {
		key := prefixKey(n, uint8(length))
		if rt, found := r.table[length][key]; found {
			return rt.interfaceIndex, rt.nextHop, rt.hasNextHop, true
		}
	}
	return 0, [4]byte{}, false, false
}

// Route drains every attached interface's received-datagram queue, forwards
// each one whose TTL survives decrementing and whose destination matches a
// route, and silently drops the rest.
func (r *Router) Route() {
	for _, iface := range r.interfaces {
		for _, dgram := range iface.ReceivedDatagrams() {
			r.routeOne(dgram)
		}
	}
}

func (r *Router) routeOne(dgram []byte) {
	ifrm, err := ipv4.NewFrame(dgram)
	if err != nil {
		return
	}
	if ifrm.TTL() <= 1 {
		return
	}
	ifrm.SetTTL(ifrm.TTL() - 1)
	ifrm.SetCRC(0)
	ifrm.SetCRC(ifrm.CalculateHeaderCRC())

	dst := *ifrm.DestinationAddr()
	idx, nextHop, hasNextHop, ok := r.Match(dst)
	if !ok {
		return
	}
	if !hasNextHop {
		nextHop = dst
	}
	r.interfaces[idx].SendDatagram(dgram, nextHop)
}

// prefixKey reduces v to its top length bits, right-justified, so a route
// stored for a given prefix/length is found by any address sharing those
// same top bits regardless of its lower bits. length==0 (the default
// route) always yields key 0, matching every address.
func prefixKey(v uint32, length uint8) uint32 {
	if length == 0 {
		return 0
	}
	return v >> (32 - length)
}
