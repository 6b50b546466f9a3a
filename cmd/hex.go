package cmd

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"firestige.xyz/dissector/internal/config"
	"firestige.xyz/dissector/internal/core"
	"firestige.xyz/dissector/internal/core/decoder"
	"firestige.xyz/dissector/internal/metrics"
	"firestige.xyz/dissector/internal/sink/console"
)

var hexCmd = &cobra.Command{
	Use:   "hex [hexbytes...]",
	Short: "Decode frames given as hex strings",
	Long: `Decode Ethernet frames given as hex strings, one frame per argument.
Without arguments frames are read from stdin, one per line. Whitespace and
':' separators are ignored; lines starting with '#' are skipped.

Examples:
  dissector hex ffffffffffff0011223344550806...
  xxd -p -c 0 frame.bin | dissector hex --format json`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig()
		if err != nil {
			exitWithError("failed to load config", err)
		}
		if cmd.Flags().Changed("format") {
			cfg.Output.Format = hexFormat
		}
		if cmd.Flags().Changed("skip-ipv4-options") {
			cfg.Decoder.SkipIPv4Options = hexSkipIPv4Options
		}
		if cmd.Flags().Changed("payload-hex") {
			cfg.Output.PayloadHex = hexPayloadHex
		}
		if err := runHex(args, os.Stdin, os.Stdout, cfg); err != nil {
			exitWithError("hex decode failed", err)
		}
	},
}

var (
	hexFormat          string
	hexSkipIPv4Options bool
	hexPayloadHex      bool
)

func init() {
	hexCmd.Flags().StringVar(&hexFormat, "format", "", "output format (text/json/yaml)")
	hexCmd.Flags().BoolVar(&hexSkipIPv4Options, "skip-ipv4-options", false, "skip IPv4 option bytes before the transport header")
	hexCmd.Flags().BoolVar(&hexPayloadHex, "payload-hex", false, "print the undissected payload as hex")
}

// runHex decodes every frame in args, or every line of in when args is empty.
func runHex(args []string, in io.Reader, out io.Writer, cfg *config.Config) error {
	if err := cfg.ValidateAndApplyDefaults(); err != nil {
		return err
	}
	sink, err := console.NewSink(out, cfg.Output)
	if err != nil {
		return err
	}
	dec := decoder.NewStandardDecoder(decoder.Config{SkipIPv4Options: cfg.Decoder.SkipIPv4Options})

	var seq uint64
	decodeOne := func(s string) error {
		data, err := parseHexFrame(s)
		if err != nil {
			return err
		}
		seq++
		raw := core.RawFrame{
			Data:       data,
			Timestamp:  time.Now(),
			CaptureLen: uint32(len(data)),
			OrigLen:    uint32(len(data)),
		}
		start := time.Now()
		d, derr := dec.Decode(raw)
		metrics.Observe(&d, derr, time.Since(start))
		return sink.Write(seq, &d, derr)
	}

	if len(args) > 0 {
		for i, a := range args {
			if err := decodeOne(a); err != nil {
				return fmt.Errorf("argument %d: %w", i+1, err)
			}
		}
		return sink.Flush()
	}

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		if err := decodeOne(text); err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read stdin: %w", err)
	}
	return sink.Flush()
}

// parseHexFrame accepts "0011aa", "00 11 aa" and "00:11:aa".
func parseHexFrame(s string) ([]byte, error) {
	clean := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', ':', '-':
			return -1
		}
		return r
	}, s)
	clean = strings.TrimPrefix(strings.TrimPrefix(clean, "0x"), "0X")
	data, err := hex.DecodeString(clean)
	if err != nil {
		return nil, fmt.Errorf("invalid hex frame: %w", err)
	}
	return data, nil
}
