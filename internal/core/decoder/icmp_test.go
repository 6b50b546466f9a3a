package decoder

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/dissector/internal/core"
)

func TestClassifyICMP(t *testing.T) {
	tests := []struct {
		typ, code uint8
		kind      core.ICMPKind
		reason    core.ICMPReason
	}{
		{0x00, 0x00, core.ICMPEchoReply, core.ICMPReasonNone},
		{0x01, 0x00, core.ICMPReserved, core.ICMPReasonNone},
		{0x02, 0x05, core.ICMPReserved, core.ICMPReasonNone},
		{0x07, 0x00, core.ICMPReserved, core.ICMPReasonNone},
		{0x03, 0x00, core.ICMPDestinationUnreachable, core.DestinationNetworkUnreachable},
		{0x03, 0x01, core.ICMPDestinationUnreachable, core.DestinationHostUnreachable},
		{0x03, 0x03, core.ICMPDestinationUnreachable, core.DestinationPortUnreachable},
		{0x03, 0x04, core.ICMPDestinationUnreachable, core.FragmentationRequired},
		{0x03, 0x0D, core.ICMPDestinationUnreachable, core.CommunicationAdministrativelyProhibited},
		{0x03, 0x0F, core.ICMPDestinationUnreachable, core.PrecedenceCutoffInEffect},
		{0x04, 0x00, core.ICMPSourceQuench, core.ICMPReasonNone},
		{0x05, 0x00, core.ICMPRedirect, core.RedirectNetwork},
		{0x05, 0x03, core.ICMPRedirect, core.RedirectTOSAndHost},
		{0x08, 0x00, core.ICMPEchoRequest, core.ICMPReasonNone},
		{0x09, 0x00, core.ICMPRouterAdvertisement, core.ICMPReasonNone},
		{0x0A, 0x00, core.ICMPRouterSolicitation, core.ICMPReasonNone},
		{0x0B, 0x00, core.ICMPTimeExceeded, core.TimeExceededTTL},
		{0x0B, 0x01, core.ICMPTimeExceeded, core.TimeExceededFragmentReassembly},
		{0x0C, 0x00, core.ICMPParameterProblem, core.ParameterProblemPointer},
		{0x0C, 0x02, core.ICMPParameterProblem, core.ParameterProblemBadLength},
		{0x0D, 0x00, core.ICMPTimestamp, core.ICMPReasonNone},
		{0x0E, 0x00, core.ICMPTimestampReply, core.ICMPReasonNone},
		{0x2A, 0x00, core.ICMPExtendedEchoRequest, core.ICMPReasonNone},
		{0x2B, 0x00, core.ICMPExtendedEchoReply, core.ExtendedEchoNoError},
		{0x2B, 0x04, core.ICMPExtendedEchoReply, core.ExtendedEchoMultipleInterfaces},
	}

	for _, tt := range tests {
		raw := uint16(tt.typ)<<8 | uint16(tt.code)
		c := ClassifyICMP(raw)
		assert.Equal(t, tt.kind, c.Kind, "type 0x%02x code 0x%02x", tt.typ, tt.code)
		assert.Equal(t, tt.reason, c.Reason, "type 0x%02x code 0x%02x", tt.typ, tt.code)
		assert.Equal(t, raw, c.Raw)
		assert.Equal(t, tt.typ, c.Type())
		assert.Equal(t, tt.code, c.Code())
		assert.True(t, c.Known())
	}
}

func TestClassifyICMPUnrecognized(t *testing.T) {
	for _, raw := range []uint16{
		0x0310, // unreachable code 16
		0x0401, // source quench with non-zero code
		0x0504, // redirect code 4
		0x0B02, // time exceeded code 2
		0x0C03, // parameter problem code 3
		0x2B05, // extended echo reply code 5
		0x0600, // alternate host address
		0x1E00, // traceroute
		0xFFFF,
	} {
		c := ClassifyICMP(raw)
		assert.Equal(t, core.ICMPUnrecognized, c.Kind, "raw 0x%04x", raw)
		assert.Equal(t, core.ICMPReasonNone, c.Reason, "raw 0x%04x", raw)
		assert.Equal(t, raw, c.Raw, "raw value must be preserved")
		assert.False(t, c.Known())
	}
}

// Every one of the 65536 keys either lands in a known kind or comes back
// unrecognized with its raw value intact.
func TestClassifyICMPExhaustive(t *testing.T) {
	for raw := 0; raw <= 0xFFFF; raw++ {
		c := ClassifyICMP(uint16(raw))
		if c.Raw != uint16(raw) {
			t.Fatalf("raw 0x%04x: got Raw 0x%04x", raw, c.Raw)
		}
		if c.Kind == core.ICMPUnrecognized && c.Reason != core.ICMPReasonNone {
			t.Fatalf("raw 0x%04x: unrecognized class carries reason %v", raw, c.Reason)
		}
	}
}

func TestICMPClassString(t *testing.T) {
	assert.Equal(t, "DestinationUnreachable/DestinationHostUnreachable", ClassifyICMP(0x0301).String())
	assert.Equal(t, "TimeExceeded/TTL", ClassifyICMP(0x0B00).String())
	assert.Equal(t, "EchoRequest", ClassifyICMP(0x0800).String())
	assert.Equal(t, "Unrecognized(0x0610)", ClassifyICMP(0x0610).String())
}

func TestDecodeICMP(t *testing.T) {
	data := []byte{
		0x03, 0x01, // Destination unreachable / host unreachable
		0xF1, 0x2C, // Checksum
		0x00, 0x00, 0x00, 0x00, // Unused
		0x45, // Start of quoted IP header
	}

	msg, rest, err := decodeICMP(data)
	require.NoError(t, err)
	assert.Equal(t, core.ICMPDestinationUnreachable, msg.Class.Kind)
	assert.Equal(t, core.DestinationHostUnreachable, msg.Class.Reason)
	assert.Equal(t, uint16(0xF12C), msg.Checksum)
	assert.Len(t, rest, len(data)-icmpHeaderLen)
}

func TestDecodeICMPTooShort(t *testing.T) {
	_, _, err := decodeICMP([]byte{0x08, 0x00, 0x00})
	assert.ErrorIs(t, err, core.ErrInsufficientData)
}

func BenchmarkClassifyICMP(b *testing.B) {
	for i := 0; i < b.N; i++ {
		_ = ClassifyICMP(uint16(i))
	}
}
