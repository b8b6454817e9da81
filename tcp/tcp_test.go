package tcp

import (
	"testing"

	"github.com/patchnet/corestack/seqnum"
	"github.com/patchnet/corestack/stream"
)

func TestSenderSYNDataFIN(t *testing.T) {
	in := stream.New(64)
	in.Push([]byte("hello"))
	in.Close()

	s := NewSender(in, 0, 100, nil)
	s.windowSize = 1024
	var segs []Segment
	s.Push(func(seg Segment) { segs = append(segs, seg) })

	if len(segs) == 0 {
		t.Fatal("expected at least one segment")
	}
	if !segs[0].SYN {
		t.Fatal("first segment must carry SYN")
	}
	last := segs[len(segs)-1]
	if !last.FIN {
		t.Fatal("last segment must carry FIN")
	}
	var payload []byte
	var total uint64
	for _, seg := range segs {
		payload = append(payload, seg.Payload...)
		total += seg.SequenceLength()
	}
	if string(payload) != "hello" {
		t.Fatalf("reassembled payload = %q, want %q", payload, "hello")
	}
	if total != 7 {
		t.Fatalf("total sequence length = %d, want 7 (SYN+5+FIN)", total)
	}
}

func TestSenderRetransmission(t *testing.T) {
	in := stream.New(64)
	in.Push([]byte("abc"))

	s := NewSender(in, 0, 100, nil)
	s.windowSize = 1024
	var transmits []Segment
	s.Push(func(seg Segment) { transmits = append(transmits, seg) })
	if len(transmits) != 1 {
		t.Fatalf("want 1 initial transmit, got %d", len(transmits))
	}

	s.Tick(100, func(seg Segment) { transmits = append(transmits, seg) })
	if len(transmits) != 2 {
		t.Fatalf("want retransmit at t=100, got %d transmits", len(transmits))
	}
	if s.ConsecutiveRetransmissions() != 1 {
		t.Fatalf("consecutive retransmissions = %d, want 1", s.ConsecutiveRetransmissions())
	}

	s.Tick(200, func(seg Segment) { transmits = append(transmits, seg) })
	if len(transmits) != 3 {
		t.Fatalf("want second retransmit at t=200 after RTO doubled to 400, got %d transmits", len(transmits))
	}
	if s.ConsecutiveRetransmissions() != 2 {
		t.Fatalf("consecutive retransmissions = %d, want 2", s.ConsecutiveRetransmissions())
	}
}

func TestReceiverRequiresSYN(t *testing.T) {
	out := stream.New(64)
	r := NewReceiver(out, nil)
	r.Receive(Segment{Seqno: 5, Payload: []byte("x")})
	if out.BytesBuffered() != 0 {
		t.Fatal("payload before SYN must be dropped")
	}
	ack := r.Send()
	if ack.HasAckno {
		t.Fatal("no ackno expected before SYN observed")
	}
}

func TestReceiverSYNThenData(t *testing.T) {
	out := stream.New(64)
	r := NewReceiver(out, nil)
	r.Receive(Segment{Seqno: 0, SYN: true})
	r.Receive(Segment{Seqno: 1, Payload: []byte("hi")})
	if got := string(out.Peek()); got != "hi" {
		t.Fatalf("Peek = %q, want %q", got, "hi")
	}
	ack := r.Send()
	if !ack.HasAckno {
		t.Fatal("expected ackno after SYN observed")
	}
	wantAck := seqnum.Wrap(3, 0) // SYN(1) + "hi"(2)
	if ack.Ackno != wantAck {
		t.Fatalf("Ackno = %v, want %v", ack.Ackno, wantAck)
	}
}

func TestSenderReceiverRoundTrip(t *testing.T) {
	appIn := stream.New(1024)
	appIn.Push([]byte("hello world"))
	appIn.Close()
	appOut := stream.New(1024)

	sender := NewSender(appIn, 1000, 100, nil)
	receiver := NewReceiver(appOut, nil)
	sender.windowSize = 1024

	var inFlight []Segment
	sender.Push(func(seg Segment) { inFlight = append(inFlight, seg) })
	for _, seg := range inFlight {
		receiver.Receive(seg)
	}
	ack := receiver.Send()
	sender.Receive(Ack{Ackno: ack.Ackno, HasAckno: ack.HasAckno, WindowSize: ack.WindowSize})

	if got := string(appOut.Peek()); got != "hello world" {
		t.Fatalf("Peek = %q, want %q", got, "hello world")
	}
	if !appOut.IsClosed() {
		t.Fatal("receiver stream should be closed after FIN delivered")
	}
	if sender.SequenceNumbersInFlight() != 0 {
		t.Fatalf("sender should have nothing outstanding after full ack, got %d", sender.SequenceNumbersInFlight())
	}
}
