package core

import "fmt"

// ICMPKind is the message class derived from the ICMP type byte.
type ICMPKind uint8

const (
	ICMPUnrecognized ICMPKind = iota
	ICMPEchoReply
	ICMPReserved
	ICMPDestinationUnreachable
	ICMPSourceQuench
	ICMPRedirect
	ICMPEchoRequest
	ICMPRouterAdvertisement
	ICMPRouterSolicitation
	ICMPTimeExceeded
	ICMPParameterProblem
	ICMPTimestamp
	ICMPTimestampReply
	ICMPExtendedEchoRequest
	ICMPExtendedEchoReply
)

var icmpKindNames = [...]string{
	ICMPUnrecognized:           "Unrecognized",
	ICMPEchoReply:              "EchoReply",
	ICMPReserved:               "Reserved",
	ICMPDestinationUnreachable: "DestinationUnreachable",
	ICMPSourceQuench:           "SourceQuench",
	ICMPRedirect:               "Redirect",
	ICMPEchoRequest:            "EchoRequest",
	ICMPRouterAdvertisement:    "RouterAdvertisement",
	ICMPRouterSolicitation:     "RouterSolicitation",
	ICMPTimeExceeded:           "TimeExceeded",
	ICMPParameterProblem:       "ParameterProblem",
	ICMPTimestamp:              "Timestamp",
	ICMPTimestampReply:         "TimestampReply",
	ICMPExtendedEchoRequest:    "ExtendedEchoRequest",
	ICMPExtendedEchoReply:      "ExtendedEchoReply",
}

func (k ICMPKind) String() string {
	if int(k) < len(icmpKindNames) {
		return icmpKindNames[k]
	}
	return fmt.Sprintf("ICMPKind(%d)", uint8(k))
}

// ICMPReason refines kinds that carry a code-specific reason. It is
// ICMPReasonNone for every other kind.
type ICMPReason uint8

const (
	ICMPReasonNone ICMPReason = iota

	// DestinationUnreachable, codes 0-15
	DestinationNetworkUnreachable
	DestinationHostUnreachable
	DestinationProtocolUnreachable
	DestinationPortUnreachable
	FragmentationRequired
	SourceRouteFailed
	DestinationNetworkUnknown
	DestinationHostUnknown
	SourceHostIsolated
	NetworkAdministrativelyProhibited
	HostAdministrativelyProhibited
	NetworkUnreachableForTOS
	HostUnreachableForTOS
	CommunicationAdministrativelyProhibited
	HostPrecedenceViolation
	PrecedenceCutoffInEffect

	// Redirect, codes 0-3
	RedirectNetwork
	RedirectHost
	RedirectTOSAndNetwork
	RedirectTOSAndHost

	// TimeExceeded, codes 0-1
	TimeExceededTTL
	TimeExceededFragmentReassembly

	// ParameterProblem, codes 0-2
	ParameterProblemPointer
	ParameterProblemMissingRequiredOption
	ParameterProblemBadLength

	// ExtendedEchoReply, codes 0-4
	ExtendedEchoNoError
	ExtendedEchoMalformedQuery
	ExtendedEchoNoSuchInterface
	ExtendedEchoNoSuchTableEntry
	ExtendedEchoMultipleInterfaces
)

var icmpReasonNames = [...]string{
	ICMPReasonNone:                          "",
	DestinationNetworkUnreachable:           "DestinationNetworkUnreachable",
	DestinationHostUnreachable:              "DestinationHostUnreachable",
	DestinationProtocolUnreachable:          "DestinationProtocolUnreachable",
	DestinationPortUnreachable:              "DestinationPortUnreachable",
	FragmentationRequired:                   "FragmentationRequired",
	SourceRouteFailed:                       "SourceRouteFailed",
	DestinationNetworkUnknown:               "DestinationNetworkUnknown",
	DestinationHostUnknown:                  "DestinationHostUnknown",
	SourceHostIsolated:                      "SourceHostIsolated",
	NetworkAdministrativelyProhibited:       "NetworkAdministrativelyProhibited",
	HostAdministrativelyProhibited:          "HostAdministrativelyProhibited",
	NetworkUnreachableForTOS:                "NetworkUnreachableForTOS",
	HostUnreachableForTOS:                   "HostUnreachableForTOS",
	CommunicationAdministrativelyProhibited: "CommunicationAdministrativelyProhibited",
	HostPrecedenceViolation:                 "HostPrecedenceViolation",
	PrecedenceCutoffInEffect:                "PrecedenceCutoffInEffect",
	RedirectNetwork:                         "Network",
	RedirectHost:                            "Host",
	RedirectTOSAndNetwork:                   "TOSAndNetwork",
	RedirectTOSAndHost:                      "TOSAndHost",
	TimeExceededTTL:                         "TTL",
	TimeExceededFragmentReassembly:          "FragmentReassembly",
	ParameterProblemPointer:                 "Pointer",
	ParameterProblemMissingRequiredOption:   "MissingRequiredOption",
	ParameterProblemBadLength:               "BadLength",
	ExtendedEchoNoError:                     "NoError",
	ExtendedEchoMalformedQuery:              "MalformedQuery",
	ExtendedEchoNoSuchInterface:             "NoSuchInterface",
	ExtendedEchoNoSuchTableEntry:            "NoSuchTableEntry",
	ExtendedEchoMultipleInterfaces:          "MultipleInterfacesSatisfyQuery",
}

func (r ICMPReason) String() string {
	if int(r) < len(icmpReasonNames) {
		return icmpReasonNames[r]
	}
	return fmt.Sprintf("ICMPReason(%d)", uint8(r))
}

// ICMPClass is the ICMP type and code folded into one classification.
// Raw always holds the 16-bit type<<8|code key it was derived from.
type ICMPClass struct {
	Kind   ICMPKind
	Reason ICMPReason
	Raw    uint16
}

// Type returns the ICMP type byte.
func (c ICMPClass) Type() uint8 { return uint8(c.Raw >> 8) }

// Code returns the ICMP code byte.
func (c ICMPClass) Code() uint8 { return uint8(c.Raw) }

// Known reports whether the type/code pair matched the classification table.
func (c ICMPClass) Known() bool { return c.Kind != ICMPUnrecognized }

func (c ICMPClass) String() string {
	switch {
	case c.Kind == ICMPUnrecognized:
		return fmt.Sprintf("Unrecognized(0x%04x)", c.Raw)
	case c.Reason != ICMPReasonNone:
		return c.Kind.String() + "/" + c.Reason.String()
	default:
		return c.Kind.String()
	}
}
