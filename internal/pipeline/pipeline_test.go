package pipeline

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/dissector/internal/config"
	"firestige.xyz/dissector/internal/core"
)

// fakeSource replays a fixed list of frames, then reports io.EOF.
type fakeSource struct {
	frames   [][]byte
	linkType layers.LinkType
	readErr  error // returned once frames are exhausted instead of io.EOF
	block    bool  // block until ctx is done once frames are exhausted
	pos      int
	closed   bool
}

func (s *fakeSource) ReadFrame(ctx context.Context) (core.RawFrame, error) {
	if s.pos >= len(s.frames) {
		if s.block {
			<-ctx.Done()
			return core.RawFrame{}, ctx.Err()
		}
		if s.readErr != nil {
			return core.RawFrame{}, s.readErr
		}
		return core.RawFrame{}, io.EOF
	}
	data := s.frames[s.pos]
	s.pos++
	return core.RawFrame{
		Data:       data,
		Timestamp:  time.Unix(1700000000, 0),
		CaptureLen: uint32(len(data)),
		OrigLen:    uint32(len(data)),
	}, nil
}

func (s *fakeSource) LinkType() layers.LinkType {
	if s.linkType == 0 {
		return layers.LinkTypeEthernet
	}
	return s.linkType
}

func (s *fakeSource) Close() error {
	s.closed = true
	return nil
}

type written struct {
	seq uint64
	d   core.Dissection
	err error
}

type fakeSink struct {
	mu       sync.Mutex
	frames   []written
	writeErr error
	flushed  int
}

func (s *fakeSink) Write(seq uint64, d *core.Dissection, err error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writeErr != nil {
		return s.writeErr
	}
	s.frames = append(s.frames, written{seq: seq, d: *d, err: err})
	return nil
}

func (s *fakeSink) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flushed++
	return nil
}

func udpFrame(t *testing.T) []byte {
	t.Helper()
	eth := &layers.Ethernet{
		SrcMAC:       []byte{0x00, 0x11, 0x22, 0x33, 0x44, 0x55},
		DstMAC:       []byte{0x66, 0x77, 0x88, 0x99, 0xaa, 0xbb},
		EthernetType: layers.EthernetTypeIPv4,
	}
	ip := &layers.IPv4{
		Version:  4,
		IHL:      5,
		TTL:      64,
		Protocol: layers.IPProtocolUDP,
		SrcIP:    []byte{10, 0, 0, 1},
		DstIP:    []byte{10, 0, 0, 2},
	}
	udp := &layers.UDP{SrcPort: 40000, DstPort: 123}
	require.NoError(t, udp.SetNetworkLayerForChecksum(ip))

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	require.NoError(t, gopacket.SerializeLayers(buf, opts, eth, ip, udp, gopacket.Payload([]byte("ntp"))))
	return buf.Bytes()
}

func ipv6Frame() []byte {
	f := make([]byte, 60)
	f[12], f[13] = 0x86, 0xdd
	return f
}

func TestPipelineRunToEOF(t *testing.T) {
	src := &fakeSource{frames: [][]byte{udpFrame(t), ipv6Frame(), {0x01, 0x02}}}
	sink := &fakeSink{}

	p, err := New(Config{Source: src, Sink: sink})
	require.NoError(t, err)
	require.NoError(t, p.Run(context.Background()))

	require.Len(t, sink.frames, 3)
	assert.Equal(t, uint64(1), sink.frames[0].seq)
	assert.Equal(t, uint64(3), sink.frames[2].seq)

	first := sink.frames[0]
	assert.NoError(t, first.err)
	assert.Equal(t, []core.Layer{core.LayerEthernet, core.LayerIPv4, core.LayerUDP}, first.d.Layers)
	assert.Equal(t, uint16(123), first.d.UDP.DstPort)

	assert.True(t, sink.frames[1].d.Unsupported)

	var le *core.LayerError
	require.ErrorAs(t, sink.frames[2].err, &le)
	assert.Equal(t, core.LayerEthernet, le.Layer)
	assert.ErrorIs(t, sink.frames[2].err, core.ErrInsufficientData)

	assert.Equal(t, StatsSnapshot{
		Received:     3,
		Decoded:      2,
		Unsupported:  1,
		DecodeErrors: 1,
		Written:      3,
	}, p.Stats().Snapshot())
	assert.Equal(t, 1, sink.flushed)
}

func TestPipelineLimit(t *testing.T) {
	f := udpFrame(t)
	src := &fakeSource{frames: [][]byte{f, f, f, f}}
	sink := &fakeSink{}

	p, err := NewBuilder().WithSource(src).WithSink(sink).WithLimit(2).Build()
	require.NoError(t, err)
	require.NoError(t, p.Run(context.Background()))

	assert.Len(t, sink.frames, 2)
	assert.Equal(t, 2, src.pos, "no frame read past the limit")
}

func TestPipelineCancel(t *testing.T) {
	src := &fakeSource{frames: [][]byte{udpFrame(t)}, block: true}
	sink := &fakeSink{}

	p, err := New(Config{Source: src, Sink: sink})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	require.Eventually(t, func() bool {
		return p.Stats().Written.Load() == 1
	}, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("pipeline did not stop after cancel")
	}
	assert.Equal(t, 1, sink.flushed)
}

func TestPipelineUnsupportedLinkType(t *testing.T) {
	src := &fakeSource{linkType: layers.LinkTypeRaw}
	p, err := New(Config{Source: src, Sink: &fakeSink{}})
	require.NoError(t, err)

	err = p.Run(context.Background())
	assert.ErrorIs(t, err, core.ErrUnsupportedLinkType)
}

func TestPipelineSourceError(t *testing.T) {
	boom := errors.New("device gone")
	src := &fakeSource{readErr: boom}
	p, err := New(Config{Source: src, Sink: &fakeSink{}})
	require.NoError(t, err)

	err = p.Run(context.Background())
	assert.ErrorIs(t, err, boom)
}

func TestPipelineSinkErrorAborts(t *testing.T) {
	boom := errors.New("broken pipe")
	f := udpFrame(t)
	src := &fakeSource{frames: [][]byte{f, f}}
	p, err := New(Config{Source: src, Sink: &fakeSink{writeErr: boom}})
	require.NoError(t, err)

	err = p.Run(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, src.pos)
	assert.Equal(t, uint64(0), p.Stats().Written.Load())
}

func TestPipelineDecoderConfig(t *testing.T) {
	// IPv4 with HL=6 and one 4-byte option before a UDP header.
	f := make([]byte, 14+24+8)
	f[12], f[13] = 0x08, 0x00
	f[14] = 0x46
	f[14+9] = 17
	copy(f[14+24:], []byte{0x9c, 0x40, 0x00, 0x35, 0x00, 0x08, 0x00, 0x00})

	sink := &fakeSink{}
	p, err := NewBuilder().
		WithSource(&fakeSource{frames: [][]byte{f}}).
		WithSink(sink).
		WithDecoderConfig(config.DecoderConfig{SkipIPv4Options: true}).
		Build()
	require.NoError(t, err)
	require.NoError(t, p.Run(context.Background()))

	require.Len(t, sink.frames, 1)
	require.NoError(t, sink.frames[0].err)
	require.NotNil(t, sink.frames[0].d.UDP)
	assert.Equal(t, uint16(53), sink.frames[0].d.UDP.DstPort)
}

func TestNewRequiresParts(t *testing.T) {
	_, err := New(Config{Sink: &fakeSink{}})
	assert.ErrorIs(t, err, core.ErrConfigInvalid)

	_, err = NewBuilder().WithSource(&fakeSource{}).Build()
	assert.ErrorIs(t, err, core.ErrConfigInvalid)
}

func TestErrorLogLimitWired(t *testing.T) {
	short := []byte{0x01}
	src := &fakeSource{frames: [][]byte{short, short, short}}
	p, err := NewBuilder().
		WithSource(src).
		WithSink(&fakeSink{}).
		WithErrorLogLimit(1, time.Minute).
		Build()
	require.NoError(t, err)
	require.NoError(t, p.Run(context.Background()))

	assert.Equal(t, int64(2), p.limiter.Suppressed())
	assert.Equal(t, uint64(3), p.Stats().DecodeErrors.Load())
}

func TestStatsReset(t *testing.T) {
	var s Stats
	s.Received.Add(5)
	s.Written.Add(4)
	s.Reset()
	assert.Equal(t, StatsSnapshot{}, s.Snapshot())
}
