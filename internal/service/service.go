// Package service labels transport endpoints with well-known service names.
package service

import "firestige.xyz/dissector/internal/core"

type rule struct {
	port uint16
	name string
}

// Checked in order; the first port matching either endpoint wins.
var (
	tcpRules = []rule{
		{80, "HTTP"},
		{443, "HTTPS"},
		{22, "SSH"},
	}
	udpRules = []rule{
		{123, "NTP"},
		{443, "QUIC"},
	}
)

// Lookup returns a service hint for the transport layer of d, or "".
func Lookup(d *core.Dissection) string {
	switch {
	case d.TCP != nil:
		return match(tcpRules, d.TCP.SrcPort, d.TCP.DstPort)
	case d.UDP != nil:
		return match(udpRules, d.UDP.SrcPort, d.UDP.DstPort)
	}
	return ""
}

func match(rules []rule, src, dst uint16) string {
	for _, r := range rules {
		if src == r.port || dst == r.port {
			return r.name
		}
	}
	return ""
}
