package decoder

import (
	"bytes"
	"errors"
	"net"
	"net/netip"
	"testing"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/dissector/internal/core"
)

var (
	testSrcMAC = net.HardwareAddr{0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0xFF}
	testDstMAC = net.HardwareAddr{0x00, 0x11, 0x22, 0x33, 0x44, 0x55}
	testSrcIP  = net.IP{192, 168, 1, 1}
	testDstIP  = net.IP{192, 168, 1, 2}
)

// Helper function to create a simple IPv4 UDP packet
func makeSimpleUDPPacket() []byte {
	packet := make([]byte, 42) // Ethernet + IPv4 + UDP headers

	// Ethernet header (14 bytes)
	copy(packet[0:6], testDstMAC)
	copy(packet[6:12], testSrcMAC)
	packet[12], packet[13] = 0x08, 0x00 // EtherType: IPv4

	// IPv4 header (20 bytes)
	packet[14] = 0x45                   // Version 4, IHL 5
	packet[16], packet[17] = 0x00, 0x1C // Total Length: 28 bytes
	packet[18], packet[19] = 0x12, 0x34 // Identification
	packet[22] = 0x40                   // TTL: 64
	packet[23] = 0x11                   // Protocol: UDP (17)
	copy(packet[26:30], testSrcIP)
	copy(packet[30:34], testDstIP)

	// UDP header (8 bytes)
	packet[34], packet[35] = 0x13, 0x88 // Src Port: 5000
	packet[36], packet[37] = 0x13, 0x89 // Dst Port: 5001
	packet[38], packet[39] = 0x00, 0x08 // Length: 8 bytes

	return packet
}

// makeSYNPacket returns the 54-byte Ethernet/IPv4/TCP SYN without options.
func makeSYNPacket() []byte {
	packet := make([]byte, 54)
	copy(packet[0:6], testDstMAC)
	copy(packet[6:12], testSrcMAC)
	packet[12], packet[13] = 0x08, 0x00

	packet[14] = 0x45
	packet[16], packet[17] = 0x00, 0x28 // Total Length: 40
	packet[20] = 0x40                   // Don't fragment
	packet[22] = 0x40
	packet[23] = 0x06 // Protocol: TCP
	copy(packet[26:30], testSrcIP)
	copy(packet[30:34], testDstIP)

	packet[34], packet[35] = 0xC0, 0x01 // Src Port: 49153
	packet[36], packet[37] = 0x00, 0x50 // Dst Port: 80
	packet[41] = 0x01                   // Seq: 1
	packet[46] = 0x50                   // Data offset 5
	packet[47] = 0x02                   // SYN
	packet[48], packet[49] = 0xFF, 0xFF // Window

	return packet
}

// serialize builds a frame with gopacket so decoding can be cross-checked
// against an independent encoder.
func serialize(t testing.TB, ls ...gopacket.SerializableLayer) []byte {
	t.Helper()
	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	require.NoError(t, gopacket.SerializeLayers(buf, opts, ls...))
	return buf.Bytes()
}

func TestStandardDecoderDecode(t *testing.T) {
	decoder := NewStandardDecoder(Config{})

	ts := time.Now()
	raw := core.RawFrame{
		Data:       makeSimpleUDPPacket(),
		Timestamp:  ts,
		CaptureLen: 42,
		OrigLen:    60,
	}

	d, err := decoder.Decode(raw)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	if !d.Timestamp.Equal(ts) || d.CaptureLen != 42 || d.OrigLen != 60 {
		t.Errorf("capture metadata not carried over: %+v", d)
	}
	if d.Ethernet.EtherType != core.EtherTypeIPv4 {
		t.Errorf("Expected EtherType IPv4, got %v", d.Ethernet.EtherType)
	}
	if d.IPv4 == nil || d.IPv4.SrcIP != netip.MustParseAddr("192.168.1.1") {
		t.Fatalf("Expected IPv4 layer from 192.168.1.1, got %+v", d.IPv4)
	}
	if d.UDP == nil || d.UDP.SrcPort != 5000 || d.UDP.DstPort != 5001 {
		t.Fatalf("Expected UDP 5000 -> 5001, got %+v", d.UDP)
	}
	if d.Deepest() != core.LayerUDP {
		t.Errorf("Expected deepest layer udp, got %v", d.Deepest())
	}
	if len(d.Payload) != 0 {
		t.Errorf("Expected empty payload, got %d bytes", len(d.Payload))
	}
}

func TestDecodeSYNWithoutOptions(t *testing.T) {
	d, err := Dissect(makeSYNPacket())
	require.NoError(t, err)

	assert.Equal(t, []core.Layer{core.LayerEthernet, core.LayerIPv4, core.LayerTCP}, d.Layers)
	require.NotNil(t, d.TCP)
	assert.True(t, d.TCP.SYN)
	assert.False(t, d.TCP.ACK || d.TCP.FIN || d.TCP.RST || d.TCP.PSH || d.TCP.URG)
	assert.Nil(t, d.TCP.Options)
	assert.Equal(t, uint8(core.IPv4FlagDontFragment), d.IPv4.Flags)
	assert.Empty(t, d.Payload)
	assert.False(t, d.Unsupported)
}

func TestDecodeARPFrame(t *testing.T) {
	data := serialize(t,
		&layers.Ethernet{SrcMAC: testSrcMAC, DstMAC: layers.EthernetBroadcast, EthernetType: layers.EthernetTypeARP},
		&layers.ARP{
			AddrType:          layers.LinkTypeEthernet,
			Protocol:          layers.EthernetTypeIPv4,
			HwAddressSize:     6,
			ProtAddressSize:   4,
			Operation:         layers.ARPRequest,
			SourceHwAddress:   testSrcMAC,
			SourceProtAddress: testSrcIP.To4(),
			DstHwAddress:      make([]byte, 6),
			DstProtAddress:    testDstIP.To4(),
		},
	)

	d, err := Dissect(data)
	require.NoError(t, err)
	require.NotNil(t, d.ARP)
	assert.Nil(t, d.IPv4)
	assert.Equal(t, core.ARPRequest, d.ARP.Operation)
	assert.Equal(t, core.ARPHardwareEthernet, d.ARP.HardwareType)
	assert.Equal(t, core.ARPProtocolIPv4, d.ARP.ProtocolType)
	assert.Equal(t, testSrcMAC.String(), d.ARP.SenderMAC.String())
	assert.Equal(t, netip.MustParseAddr("192.168.1.2"), d.ARP.TargetIP)
	assert.Equal(t, core.LayerARP, d.Deepest())
}

func TestDecodeAgainstGopacket(t *testing.T) {
	eth := &layers.Ethernet{SrcMAC: testSrcMAC, DstMAC: testDstMAC, EthernetType: layers.EthernetTypeIPv4}

	t.Run("tcp with options", func(t *testing.T) {
		ip := &layers.IPv4{Version: 4, IHL: 5, TTL: 63, Id: 0xBEEF, Flags: layers.IPv4DontFragment, Protocol: layers.IPProtocolTCP, SrcIP: testSrcIP, DstIP: testDstIP}
		tcp := &layers.TCP{
			SrcPort: 43210, DstPort: 443, Seq: 0x01020304, Ack: 0x0A0B0C0D,
			SYN: true, ACK: true, Window: 29200,
			Options: []layers.TCPOption{
				{OptionType: layers.TCPOptionKindMSS, OptionLength: 4, OptionData: []byte{0x05, 0xB4}},
				{OptionType: layers.TCPOptionKindSACKPermitted, OptionLength: 2},
				{OptionType: layers.TCPOptionKindTimestamps, OptionLength: 10, OptionData: []byte{0, 0, 0, 9, 0, 0, 0, 0}},
				{OptionType: layers.TCPOptionKindNop},
				{OptionType: layers.TCPOptionKindWindowScale, OptionLength: 3, OptionData: []byte{7}},
			},
		}
		require.NoError(t, tcp.SetNetworkLayerForChecksum(ip))
		data := serialize(t, eth, ip, tcp, gopacket.Payload("hello"))

		ref := gopacket.NewPacket(data, layers.LayerTypeEthernet, gopacket.Default)
		refIP := ref.Layer(layers.LayerTypeIPv4).(*layers.IPv4)
		refTCP := ref.Layer(layers.LayerTypeTCP).(*layers.TCP)

		d, err := Dissect(data)
		require.NoError(t, err)
		require.NotNil(t, d.TCP)

		assert.Equal(t, refIP.Id, d.IPv4.ID)
		assert.Equal(t, refIP.Length, d.IPv4.TotalLength)
		assert.Equal(t, refIP.Checksum, d.IPv4.Checksum)
		assert.Equal(t, uint8(refIP.Flags), d.IPv4.Flags)
		assert.Equal(t, uint16(refTCP.SrcPort), d.TCP.SrcPort)
		assert.Equal(t, refTCP.Seq, d.TCP.Seq)
		assert.Equal(t, refTCP.Ack, d.TCP.Ack)
		assert.Equal(t, refTCP.DataOffset, d.TCP.HeaderLength)
		assert.Equal(t, refTCP.Checksum, d.TCP.Checksum)
		assert.Equal(t, refTCP.SYN, d.TCP.SYN)
		assert.Equal(t, refTCP.ACK, d.TCP.ACK)

		kinds := make([]core.TCPOptionKind, 0, len(d.TCP.Options))
		for _, o := range d.TCP.Options {
			kinds = append(kinds, o.Kind)
		}
		assert.Equal(t, []core.TCPOptionKind{
			core.TCPOptionMSS, core.TCPOptionSACKPermitted, core.TCPOptionTimestamp,
			core.TCPOptionNoOperation, core.TCPOptionWindowScale,
		}, kinds)
		assert.Equal(t, uint16(1460), d.TCP.Options[0].MSS)
		assert.Equal(t, uint32(9), d.TCP.Options[2].TSVal)
		assert.Equal(t, uint8(7), d.TCP.Options[4].WindowShift)
		assert.Equal(t, []byte("hello"), d.Payload)
	})

	t.Run("udp", func(t *testing.T) {
		ip := &layers.IPv4{Version: 4, IHL: 5, TTL: 64, Protocol: layers.IPProtocolUDP, SrcIP: testSrcIP, DstIP: testDstIP}
		udp := &layers.UDP{SrcPort: 5353, DstPort: 53}
		require.NoError(t, udp.SetNetworkLayerForChecksum(ip))
		data := serialize(t, eth, ip, udp, gopacket.Payload("query-bytes"))

		ref := gopacket.NewPacket(data, layers.LayerTypeEthernet, gopacket.Default)
		refUDP := ref.Layer(layers.LayerTypeUDP).(*layers.UDP)

		d, err := Dissect(data)
		require.NoError(t, err)
		require.NotNil(t, d.UDP)
		assert.Equal(t, refUDP.Length, d.UDP.Length)
		assert.Equal(t, refUDP.Checksum, d.UDP.Checksum)
		assertPaddedPayload(t, []byte("query-bytes"), d.Payload)
	})

	t.Run("icmp echo", func(t *testing.T) {
		ip := &layers.IPv4{Version: 4, IHL: 5, TTL: 64, Protocol: layers.IPProtocolICMPv4, SrcIP: testSrcIP, DstIP: testDstIP}
		icmp := &layers.ICMPv4{TypeCode: layers.CreateICMPv4TypeCode(layers.ICMPv4TypeEchoRequest, 0), Id: 1, Seq: 1}
		data := serialize(t, eth, ip, icmp, gopacket.Payload("ping"))

		ref := gopacket.NewPacket(data, layers.LayerTypeEthernet, gopacket.Default)
		refICMP := ref.Layer(layers.LayerTypeICMPv4).(*layers.ICMPv4)

		d, err := Dissect(data)
		require.NoError(t, err)
		require.NotNil(t, d.ICMP)
		assert.Equal(t, core.ICMPEchoRequest, d.ICMP.Class.Kind)
		assert.Equal(t, uint16(refICMP.TypeCode), d.ICMP.Class.Raw)
		assert.Equal(t, refICMP.Checksum, d.ICMP.Checksum)
		// Id and sequence stay in the payload.
		assertPaddedPayload(t, append([]byte{0, 1, 0, 1}, "ping"...), d.Payload)
	})
}

// assertPaddedPayload checks that got starts with want and that anything after
// it is Ethernet minimum-size padding. The remainder is not trimmed by the IPv4
// TotalLength, so short frames keep their trailing zeros.
func assertPaddedPayload(t *testing.T, want, got []byte) {
	t.Helper()
	require.True(t, bytes.HasPrefix(got, want), "payload %x does not start with %x", got, want)
	for i, b := range got[len(want):] {
		assert.Zero(t, b, "padding byte %d", i)
	}
}

func TestDecodeKeepsEthernetPadding(t *testing.T) {
	eth := &layers.Ethernet{SrcMAC: testSrcMAC, DstMAC: testDstMAC, EthernetType: layers.EthernetTypeIPv4}
	ip := &layers.IPv4{Version: 4, IHL: 5, TTL: 64, Protocol: layers.IPProtocolUDP, SrcIP: testSrcIP, DstIP: testDstIP}
	udp := &layers.UDP{SrcPort: 5353, DstPort: 53}
	require.NoError(t, udp.SetNetworkLayerForChecksum(ip))
	data := serialize(t, eth, ip, udp, gopacket.Payload("query-bytes"))
	require.Len(t, data, 60, "serialized frame padded to the Ethernet minimum")

	d, err := Dissect(data)
	require.NoError(t, err)
	assert.Len(t, d.Payload, 60-14-20-8)
	assert.Equal(t, uint16(20+8+11), d.IPv4.TotalLength)
	assert.Equal(t, []byte("query-bytes"), d.Payload[:int(d.IPv4.TotalLength)-20-8])
	assertPaddedPayload(t, []byte("query-bytes"), d.Payload)
}

func TestDecodeUnsupported(t *testing.T) {
	t.Run("ipv6 ethertype", func(t *testing.T) {
		data := makeSimpleUDPPacket()
		data[12], data[13] = 0x86, 0xDD

		d, err := Dissect(data)
		require.NoError(t, err)
		assert.True(t, d.Unsupported)
		assert.Equal(t, core.LayerEthernet, d.StoppedAt)
		assert.Equal(t, core.EtherTypeIPv6, d.Ethernet.EtherType)
		assert.Len(t, d.Payload, 28)
	})

	t.Run("unrecognized ethertype", func(t *testing.T) {
		data := makeSimpleUDPPacket()
		data[12], data[13] = 0x88, 0xCC

		d, err := Dissect(data)
		require.NoError(t, err)
		assert.True(t, d.Unsupported)
		assert.False(t, d.Ethernet.EtherType.Known())
	})

	t.Run("gre protocol", func(t *testing.T) {
		data := makeSimpleUDPPacket()
		data[23] = 47

		d, err := Dissect(data)
		require.NoError(t, err)
		assert.True(t, d.Unsupported)
		assert.Equal(t, core.LayerIPv4, d.StoppedAt)
		assert.Equal(t, core.LayerIPv4, d.Deepest())
		assert.Equal(t, core.IPProtocol(47), d.IPv4.Protocol)
		assert.Nil(t, d.UDP)
	})
}

func TestDecodeLayerErrors(t *testing.T) {
	tests := []struct {
		name    string
		data    func() []byte
		layer   core.Layer
		target  error
		decoded []core.Layer
	}{
		{
			name:   "short ethernet",
			data:   func() []byte { return makeSimpleUDPPacket()[:10] },
			layer:  core.LayerEthernet,
			target: core.ErrInsufficientData,
		},
		{
			name:    "short ipv4",
			data:    func() []byte { return makeSimpleUDPPacket()[:30] },
			layer:   core.LayerIPv4,
			target:  core.ErrInsufficientData,
			decoded: []core.Layer{core.LayerEthernet},
		},
		{
			name:    "short udp",
			data:    func() []byte { return makeSimpleUDPPacket()[:40] },
			layer:   core.LayerUDP,
			target:  core.ErrInsufficientData,
			decoded: []core.Layer{core.LayerEthernet, core.LayerIPv4},
		},
		{
			name: "short arp",
			data: func() []byte {
				data := makeSimpleUDPPacket()[:22]
				data[12], data[13] = 0x08, 0x06
				return data
			},
			layer:   core.LayerARP,
			target:  core.ErrInsufficientData,
			decoded: []core.Layer{core.LayerEthernet},
		},
		{
			name: "tcp options beyond buffer",
			data: func() []byte {
				data := makeSYNPacket()
				data[46] = 0xF0 // Data offset 15
				return data
			},
			layer:   core.LayerTCP,
			target:  core.ErrMalformedOptions,
			decoded: []core.Layer{core.LayerEthernet, core.LayerIPv4},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := Dissect(tt.data())
			require.Error(t, err)

			var le *core.LayerError
			require.True(t, errors.As(err, &le), "expected *core.LayerError, got %T", err)
			assert.Equal(t, tt.layer, le.Layer)
			assert.ErrorIs(t, err, tt.target)
			assert.Equal(t, tt.decoded, nilIfEmpty(d.Layers))
		})
	}
}

func nilIfEmpty(ls []core.Layer) []core.Layer {
	if len(ls) == 0 {
		return nil
	}
	return ls
}

func TestDecodeSkipIPv4Options(t *testing.T) {
	// IHL 6 with one word of options (NOP x3, EOL) ahead of the UDP header.
	base := makeSimpleUDPPacket()
	data := make([]byte, 0, len(base)+4)
	data = append(data, base[:34]...)
	data = append(data, 0x01, 0x01, 0x01, 0x00)
	data = append(data, base[34:]...)
	data[14] = 0x46

	t.Run("fixed header", func(t *testing.T) {
		d, err := Dissect(data)
		require.NoError(t, err)
		require.NotNil(t, d.UDP)
		// The option word is read as the UDP ports.
		assert.Equal(t, uint16(0x0101), d.UDP.SrcPort)
		assert.Equal(t, uint16(0x0100), d.UDP.DstPort)
	})

	t.Run("skip options", func(t *testing.T) {
		d, err := NewStandardDecoder(Config{SkipIPv4Options: true}).Decode(core.RawFrame{Data: data})
		require.NoError(t, err)
		require.NotNil(t, d.UDP)
		assert.Equal(t, uint16(5000), d.UDP.SrcPort)
		assert.Equal(t, uint16(5001), d.UDP.DstPort)
	})

	t.Run("options past end", func(t *testing.T) {
		short := append([]byte(nil), data[:36]...)
		short[14] = 0x4F

		_, err := NewStandardDecoder(Config{SkipIPv4Options: true}).Decode(core.RawFrame{Data: short})
		var le *core.LayerError
		require.ErrorAs(t, err, &le)
		assert.Equal(t, core.LayerIPv4, le.Layer)
		assert.ErrorIs(t, err, core.ErrMalformedOptions)
	})
}

func TestDecodeTCPOptionErrorKeepsHeader(t *testing.T) {
	tests := []struct {
		name   string
		data   func() []byte
		target error
	}{
		{
			name: "options beyond buffer",
			data: func() []byte {
				data := makeSYNPacket()
				data[46] = 0xF0 // Data offset 15
				return data
			},
			target: core.ErrMalformedOptions,
		},
		{
			name: "truncated timestamp",
			data: func() []byte {
				data := append(makeSYNPacket(), 0x08, 0x0A, 0x00, 0x00)
				data[46] = 0x60 // Data offset 6
				return data
			},
			target: core.ErrTruncatedOptionList,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := Dissect(tt.data())
			assert.ErrorIs(t, err, tt.target)

			require.NotNil(t, d.TCP)
			assert.Equal(t, uint16(49153), d.TCP.SrcPort)
			assert.Equal(t, uint16(80), d.TCP.DstPort)
			assert.Equal(t, uint32(1), d.TCP.Seq)
			assert.True(t, d.TCP.SYN)
			assert.Empty(t, d.TCP.Options)
			assert.False(t, d.Has(core.LayerTCP))
		})
	}

	t.Run("short header", func(t *testing.T) {
		d, err := Dissect(makeSYNPacket()[:44])
		assert.ErrorIs(t, err, core.ErrInsufficientData)
		assert.Nil(t, d.TCP)
	})
}

func TestDecodeDoesNotModifyInput(t *testing.T) {
	data := makeSYNPacket()
	orig := append([]byte(nil), data...)

	_, err := Dissect(data)
	require.NoError(t, err)
	assert.Equal(t, orig, data)
}

func BenchmarkDecode(b *testing.B) {
	decoder := NewStandardDecoder(Config{})
	raw := core.RawFrame{Data: makeSYNPacket()}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := decoder.Decode(raw); err != nil {
			b.Fatal(err)
		}
	}
}
