package decoder

import (
	"encoding/binary"

	"firestige.xyz/dissector/internal/core"
)

const icmpHeaderLen = 4

// ICMP type bytes.
const (
	icmpTypeEchoReply           = 0x00
	icmpTypeDestUnreachable     = 0x03
	icmpTypeSourceQuench        = 0x04
	icmpTypeRedirect            = 0x05
	icmpTypeEchoRequest         = 0x08
	icmpTypeRouterAdvertisement = 0x09
	icmpTypeRouterSolicitation  = 0x0A
	icmpTypeTimeExceeded        = 0x0B
	icmpTypeParameterProblem    = 0x0C
	icmpTypeTimestamp           = 0x0D
	icmpTypeTimestampReply      = 0x0E
	icmpTypeExtendedEchoRequest = 0x2A
	icmpTypeExtendedEchoReply   = 0x2B
)

// Code-indexed reason tables for the kinds that carry one.
var (
	unreachableReasons = [...]core.ICMPReason{
		core.DestinationNetworkUnreachable,
		core.DestinationHostUnreachable,
		core.DestinationProtocolUnreachable,
		core.DestinationPortUnreachable,
		core.FragmentationRequired,
		core.SourceRouteFailed,
		core.DestinationNetworkUnknown,
		core.DestinationHostUnknown,
		core.SourceHostIsolated,
		core.NetworkAdministrativelyProhibited,
		core.HostAdministrativelyProhibited,
		core.NetworkUnreachableForTOS,
		core.HostUnreachableForTOS,
		core.CommunicationAdministrativelyProhibited,
		core.HostPrecedenceViolation,
		core.PrecedenceCutoffInEffect,
	}
	redirectReasons = [...]core.ICMPReason{
		core.RedirectNetwork,
		core.RedirectHost,
		core.RedirectTOSAndNetwork,
		core.RedirectTOSAndHost,
	}
	timeExceededReasons = [...]core.ICMPReason{
		core.TimeExceededTTL,
		core.TimeExceededFragmentReassembly,
	}
	parameterProblemReasons = [...]core.ICMPReason{
		core.ParameterProblemPointer,
		core.ParameterProblemMissingRequiredOption,
		core.ParameterProblemBadLength,
	}
	extendedEchoReplyReasons = [...]core.ICMPReason{
		core.ExtendedEchoNoError,
		core.ExtendedEchoMalformedQuery,
		core.ExtendedEchoNoSuchInterface,
		core.ExtendedEchoNoSuchTableEntry,
		core.ExtendedEchoMultipleInterfaces,
	}
)

// ClassifyICMP folds a type<<8|code key into an ICMPClass. The outer switch
// selects the kind by type byte, the reason tables then select by code.
// Pairs outside the table come back as ICMPUnrecognized with raw untouched.
func ClassifyICMP(raw uint16) core.ICMPClass {
	typ, code := uint8(raw>>8), uint8(raw)
	unrecognized := core.ICMPClass{Kind: core.ICMPUnrecognized, Raw: raw}

	withReason := func(kind core.ICMPKind, reasons []core.ICMPReason) core.ICMPClass {
		if int(code) >= len(reasons) {
			return unrecognized
		}
		return core.ICMPClass{Kind: kind, Reason: reasons[code], Raw: raw}
	}
	plain := func(kind core.ICMPKind) core.ICMPClass {
		return core.ICMPClass{Kind: kind, Raw: raw}
	}

	switch typ {
	case icmpTypeEchoReply:
		return plain(core.ICMPEchoReply)
	case 0x01, 0x02, 0x07:
		return plain(core.ICMPReserved)
	case icmpTypeDestUnreachable:
		return withReason(core.ICMPDestinationUnreachable, unreachableReasons[:])
	case icmpTypeSourceQuench:
		if code != 0 {
			return unrecognized
		}
		return plain(core.ICMPSourceQuench)
	case icmpTypeRedirect:
		return withReason(core.ICMPRedirect, redirectReasons[:])
	case icmpTypeEchoRequest:
		return plain(core.ICMPEchoRequest)
	case icmpTypeRouterAdvertisement:
		return plain(core.ICMPRouterAdvertisement)
	case icmpTypeRouterSolicitation:
		return plain(core.ICMPRouterSolicitation)
	case icmpTypeTimeExceeded:
		return withReason(core.ICMPTimeExceeded, timeExceededReasons[:])
	case icmpTypeParameterProblem:
		return withReason(core.ICMPParameterProblem, parameterProblemReasons[:])
	case icmpTypeTimestamp:
		return plain(core.ICMPTimestamp)
	case icmpTypeTimestampReply:
		return plain(core.ICMPTimestampReply)
	case icmpTypeExtendedEchoRequest:
		return plain(core.ICMPExtendedEchoRequest)
	case icmpTypeExtendedEchoReply:
		return withReason(core.ICMPExtendedEchoReply, extendedEchoReplyReasons[:])
	default:
		return unrecognized
	}
}

// decodeICMP decodes the 4-byte ICMP prefix. The rest of the message is
// returned untouched.
func decodeICMP(data []byte) (core.ICMPMessage, []byte, error) {
	if len(data) < icmpHeaderLen {
		return core.ICMPMessage{}, nil, shortErr(icmpHeaderLen, len(data))
	}

	msg := core.ICMPMessage{
		Class:    ClassifyICMP(binary.BigEndian.Uint16(data[0:2])),
		Checksum: binary.BigEndian.Uint16(data[2:4]),
	}
	return msg, data[icmpHeaderLen:], nil
}
