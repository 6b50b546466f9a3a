// Package file reads frames from pcap and pcapng capture files.
package file

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"

	"firestige.xyz/dissector/internal/core"
)

// Section header block type, identical in either byte order.
var pcapngMagic = []byte{0x0A, 0x0D, 0x0D, 0x0A}

type packetReader interface {
	ReadPacketData() ([]byte, gopacket.CaptureInfo, error)
}

// Source reads a capture file sequentially.
type Source struct {
	path     string
	f        *os.File
	reader   packetReader
	linkType layers.LinkType
	ng       bool
}

// Open opens path, detecting pcap or pcapng from its magic number.
func Open(path string) (*Source, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: file source requires a path", core.ErrConfigInvalid)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open capture file %s: %w", path, err)
	}

	s, err := newSource(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to read capture file %s: %w", path, err)
	}
	s.path = path
	s.f = f
	return s, nil
}

// NewReader reads a capture stream that is already open.
func NewReader(r io.Reader) (*Source, error) {
	return newSource(r)
}

func newSource(r io.Reader) (*Source, error) {
	br := bufio.NewReader(r)
	magic, err := br.Peek(len(pcapngMagic))
	if err != nil {
		return nil, fmt.Errorf("reading magic: %w", err)
	}

	if bytes.Equal(magic, pcapngMagic) {
		ng, err := pcapgo.NewNgReader(br, pcapgo.DefaultNgReaderOptions)
		if err != nil {
			return nil, err
		}
		return &Source{reader: ng, linkType: ng.LinkType(), ng: true}, nil
	}

	pr, err := pcapgo.NewReader(br)
	if err != nil {
		return nil, err
	}
	return &Source{reader: pr, linkType: pr.LinkType()}, nil
}

// ReadFrame returns the next frame, or io.EOF after the last one.
// Each frame owns a freshly allocated buffer.
func (s *Source) ReadFrame(ctx context.Context) (core.RawFrame, error) {
	if err := ctx.Err(); err != nil {
		return core.RawFrame{}, err
	}
	if s.reader == nil {
		return core.RawFrame{}, core.ErrSourceClosed
	}

	data, ci, err := s.reader.ReadPacketData()
	if err != nil {
		if err == io.EOF {
			return core.RawFrame{}, io.EOF
		}
		return core.RawFrame{}, fmt.Errorf("failed to read packet: %w", err)
	}

	return core.RawFrame{
		Data:           data,
		Timestamp:      ci.Timestamp,
		CaptureLen:     uint32(ci.CaptureLength),
		OrigLen:        uint32(ci.Length),
		InterfaceIndex: ci.InterfaceIndex,
	}, nil
}

func (s *Source) LinkType() layers.LinkType {
	return s.linkType
}

// IsPcapNG reports whether the stream was pcapng.
func (s *Source) IsPcapNG() bool {
	return s.ng
}

func (s *Source) Close() error {
	s.reader = nil
	if s.f != nil {
		err := s.f.Close()
		s.f = nil
		return err
	}
	return nil
}
