package decoder

import (
	"encoding/binary"
	"fmt"

	"firestige.xyz/dissector/internal/core"
)

// optionReader walks a TCP options region.
type optionReader struct {
	buf []byte
}

func (r *optionReader) need(n int, kind core.TCPOptionKind) error {
	if len(r.buf) < n {
		return fmt.Errorf("%w: %s needs %d more bytes, have %d", core.ErrTruncatedOptionList, kind, n, len(r.buf))
	}
	return nil
}

func (r *optionReader) next8(kind core.TCPOptionKind) (uint8, error) {
	if err := r.need(1, kind); err != nil {
		return 0, err
	}
	v := r.buf[0]
	r.buf = r.buf[1:]
	return v, nil
}

func (r *optionReader) next16(kind core.TCPOptionKind) (uint16, error) {
	if err := r.need(2, kind); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint16(r.buf)
	r.buf = r.buf[2:]
	return v, nil
}

func (r *optionReader) next32(kind core.TCPOptionKind) (uint32, error) {
	if err := r.need(4, kind); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint32(r.buf)
	r.buf = r.buf[4:]
	return v, nil
}

// decodeTCPOptions decodes the options region of a TCP header.
//
// The loop ends when the region is exhausted, after an end-of-list marker,
// or after a kind it does not know (its length cannot be trusted). An
// option cut short by the end of the region is ErrTruncatedOptionList.
// The second return value is whatever the loop left unread.
func decodeTCPOptions(data []byte) ([]core.TCPOption, []byte, error) {
	r := optionReader{buf: data}
	var opts []core.TCPOption

	for len(r.buf) > 0 {
		opt := core.TCPOption{Kind: core.TCPOptionKind(r.buf[0])}
		r.buf = r.buf[1:]

		var err error

		switch opt.Kind {
		case core.TCPOptionEndOfList:
			return append(opts, opt), r.buf, nil

		case core.TCPOptionNoOperation:
			// kind byte only

		case core.TCPOptionSACKPermitted:
			if opt.Length, err = r.next8(opt.Kind); err != nil {
				return opts, r.buf, err
			}

		case core.TCPOptionMSS:
			if opt.Length, err = r.next8(opt.Kind); err != nil {
				return opts, r.buf, err
			}
			if opt.MSS, err = r.next16(opt.Kind); err != nil {
				return opts, r.buf, err
			}

		case core.TCPOptionWindowScale:
			if opt.Length, err = r.next8(opt.Kind); err != nil {
				return opts, r.buf, err
			}
			if opt.WindowShift, err = r.next8(opt.Kind); err != nil {
				return opts, r.buf, err
			}

		case core.TCPOptionTimestamp:
			if opt.Length, err = r.next8(opt.Kind); err != nil {
				return opts, r.buf, err
			}
			if opt.TSVal, err = r.next32(opt.Kind); err != nil {
				return opts, r.buf, err
			}
			if opt.TSEcr, err = r.next32(opt.Kind); err != nil {
				return opts, r.buf, err
			}

		default:
			return append(opts, opt), r.buf, nil
		}

		opts = append(opts, opt)
	}

	return opts, r.buf, nil
}
