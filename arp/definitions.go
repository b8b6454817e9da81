package arp

import (
	"errors"
	"strconv"
)

const (
	sizeHeader   = 8
	sizeHeaderv4 = sizeHeader + 6*2 + 4*2
)

var errShortARP = errors.New("arp: packet too short")

// Operation represents the type of ARP packet, either request or reply/response.
type Operation uint8

const (
	OpRequest Operation = 1 // request
	OpReply   Operation = 2 // reply
)

// String returns "request" or "reply" for the known operations.
func (op Operation) String() string {
	switch op {
	case OpRequest:
		return "request"
	case OpReply:
		return "reply"
	}
	return "Operation(" + strconv.Itoa(int(op)) + ")"
}
