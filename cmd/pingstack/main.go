// Command pingstack wires every layer of the stack together — byte stream,
// reassembler, TCP sender/receiver, the link-layer NetworkInterface with its
// ARP cache, and the tick-driven clock — into a single in-process smoke
// demonstration: a client pushes a short message through a simulated
// Ethernet link to a server and the transfer is driven to completion purely
// by simulated clock ticks, with no wall-clock reads or goroutines.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/patchnet/corestack/clock"
	"github.com/patchnet/corestack/ipv4"
	"github.com/patchnet/corestack/nic"
	"github.com/patchnet/corestack/seqnum"
	"github.com/patchnet/corestack/stream"
	"github.com/patchnet/corestack/tcp"
	"github.com/patchnet/corestack/wire"
)

var (
	clientIP   = [4]byte{10, 0, 0, 1}
	serverIP   = [4]byte{10, 0, 0, 2}
	clientMAC  = [6]byte{0x02, 0x00, 0x00, 0x00, 0x00, 0x01}
	serverMAC  = [6]byte{0x02, 0x00, 0x00, 0x00, 0x00, 0x02}
	clientPort = uint16(50000)
	serverPort = uint16(7)
)

const msTick = 50

func main() {
	debug := flag.Bool("debug", false, "enable debug logging")
	message := flag.String("message", "hello from pingstack", "payload the client sends to the server")
	flag.Parse()

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))

	clientOut := stream.New(4096)
	clientOut.Push([]byte(*message))
	clientOut.Close()
	serverIn := stream.New(4096)

	clientSender := tcp.NewSender(clientOut, 1000, 1000, log)
	serverReceiver := tcp.NewReceiver(serverIn, log)
	// The server never opens its own byte stream in this demo; it only ever
	// sends pure acknowledgments, which carry no SYN/FIN/payload and so never
	// advance past their fixed starting sequence number.
	const serverISN = seqnum.Value(5000)

	clientLink := &loopback{}
	serverLink := &loopback{}
	clientIface := nic.NewInterface(clientMAC, clientIP, clientLink, log)
	serverIface := nic.NewInterface(serverMAC, serverIP, serverLink, log)
	clientLink.peer = serverIface
	serverLink.peer = clientIface

	timer := clock.NewTimer(0)
	timer.Start()

	const maxRounds = 200
	round := 0
	for ; round < maxRounds; round++ {
		clientSender.Push(func(seg tcp.Segment) {
			send(clientIface, clientIP, serverIP, clientPort, serverPort, seg, tcp.Ack{})
		})

		for _, dgram := range serverIface.ReceivedDatagrams() {
			seg, _, err := decode(dgram)
			if err != nil {
				log.Warn("pingstack: dropping malformed datagram at server", slog.String("err", err.Error()))
				continue
			}
			serverReceiver.Receive(seg)
			replyAck := serverReceiver.Send()
			send(serverIface, serverIP, clientIP, serverPort, clientPort, tcp.Segment{Seqno: serverISN}, replyAck)
		}

		for _, dgram := range clientIface.ReceivedDatagrams() {
			_, ack, err := decode(dgram)
			if err != nil {
				log.Warn("pingstack: dropping malformed datagram at client", slog.String("err", err.Error()))
				continue
			}
			if ack.HasAckno {
				clientSender.Receive(ack)
			}
		}

		timer.Tick(msTick)
		clientSender.Tick(msTick, func(seg tcp.Segment) {
			send(clientIface, clientIP, serverIP, clientPort, serverPort, seg, tcp.Ack{})
		})
		clientIface.Tick(msTick)
		serverIface.Tick(msTick)

		if serverIn.IsClosed() && clientSender.SequenceNumbersInFlight() == 0 {
			break
		}
	}

	fmt.Printf("rounds=%d retransmissions=%d server received: %q\n", round, clientSender.ConsecutiveRetransmissions(), serverIn.Peek())
	if !serverIn.IsClosed() {
		fmt.Println("transfer did not complete within the round budget")
		os.Exit(1)
	}
}

// loopback is the in-memory OutputPort connecting two Interfaces directly,
// standing in for a real TAP device or raw socket in this demonstration.
type loopback struct {
	peer *nic.Interface
}

func (l *loopback) Transmit(frame []byte) error {
	cp := append([]byte(nil), frame...)
	return l.peer.RecvFrame(cp)
}

// send serializes seg (and, if ack.HasAckno, piggybacked acknowledgment
// fields) into an IPv4/TCP datagram and hands it to iface for ARP-resolved
// delivery to dst.
func send(iface *nic.Interface, src, dst [4]byte, srcPort, dstPort uint16, seg tcp.Segment, ack tcp.Ack) {
	total := 20 + 20 + len(seg.Payload)
	buf := make([]byte, total)

	ifrm, _ := ipv4.NewFrame(buf)
	ifrm.SetVersionAndIHL(4, 5)
	ifrm.SetTotalLength(uint16(total))
	ifrm.SetTTL(64)
	ifrm.SetProtocol(wire.IPProtoTCP)
	ifrm.SetSourceAddr(src)
	ifrm.SetDestinationAddr(dst)
	ifrm.SetCRC(ifrm.CalculateHeaderCRC())

	tfrm, _ := tcp.NewFrame(buf[20:])
	tfrm.PutSegment(seg)
	tfrm.SetSourcePort(srcPort)
	tfrm.SetDestinationPort(dstPort)
	tfrm.SetWindow(1 << 14)
	if ack.HasAckno {
		tfrm.SetACK(true)
		tfrm.SetAck(uint32(ack.Ackno))
	}
	var pseudo wire.CRC791
	ifrm.CRCWriteTCPPseudo(&pseudo)
	tfrm.SetCRC(0)
	tfrm.SetCRC(tfrm.CalculateCRC(&pseudo))

	iface.SendDatagram(buf, dst)
}

// decode parses an IPv4/TCP datagram back into a Segment plus, if the ACK
// control bit is set, an Ack.
func decode(dgram []byte) (tcp.Segment, tcp.Ack, error) {
	ifrm, err := ipv4.NewFrame(dgram)
	if err != nil {
		return tcp.Segment{}, tcp.Ack{}, err
	}
	var v wire.Validator
	ifrm.ValidateSize(&v)
	if v.HasError() {
		return tcp.Segment{}, tcp.Ack{}, v.ErrPop()
	}
	payload := ifrm.Payload()
	tfrm, err := tcp.NewFrame(payload)
	if err != nil {
		return tcp.Segment{}, tcp.Ack{}, err
	}
	tfrm.ValidateSize(&v)
	if v.HasError() {
		return tcp.Segment{}, tcp.Ack{}, v.ErrPop()
	}
	seg := tfrm.Segment()
	var ack tcp.Ack
	if tfrm.HasACK() {
		ack = tcp.Ack{Ackno: seqnum.Value(tfrm.Ack()), HasAckno: true, WindowSize: tfrm.Window()}
	}
	return seg, ack, nil
}
