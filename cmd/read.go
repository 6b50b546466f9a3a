package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"firestige.xyz/dissector/internal/config"
	"firestige.xyz/dissector/internal/log"
	"firestige.xyz/dissector/internal/metrics"
	"firestige.xyz/dissector/internal/pipeline"
	"firestige.xyz/dissector/internal/sink/console"
	"firestige.xyz/dissector/internal/sink/kafka"
	"firestige.xyz/dissector/internal/source"
)

var readCmd = &cobra.Command{
	Use:   "read",
	Short: "Decode frames from a capture file or a live interface",
	Long: `Decode frames from a pcap/pcapng file (-r) or a live interface (-i) and
print one record per frame.

Flags override the matching config file settings.

Examples:
  dissector read -r trace.pcapng
  dissector read -i eth0 -f "tcp port 443" -c 100 --format json
  dissector read -i eth0 --source-type afpacket --metrics-listen :9091
  dissector read -r trace.pcap --output kafka --kafka-brokers k1:9092 --kafka-topic frames`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig()
		if err != nil {
			exitWithError("failed to load config", err)
		}
		readOpts.applyTo(cmd.Flags(), cfg)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if err := runRead(ctx, cfg, os.Stdout); err != nil {
			exitWithError("read failed", err)
		}
	},
}

// readOptions holds the read command flags.
type readOptions struct {
	file            string
	iface           string
	sourceType      string
	filter          string
	format          string
	count           uint64
	skipIPv4Options bool
	payloadHex      bool
	metricsListen   string
	output          string
	kafkaBrokers    []string
	kafkaTopic      string
}

var readOpts readOptions

func init() {
	readOpts.register(readCmd.Flags())
	readCmd.MarkFlagsMutuallyExclusive("read", "interface")
}

func (o *readOptions) register(f *pflag.FlagSet) {
	f.StringVarP(&o.file, "read", "r", "", "capture file to read (pcap or pcapng)")
	f.StringVarP(&o.iface, "interface", "i", "", "interface to capture on")
	f.StringVar(&o.sourceType, "source-type", "", "live source type (pcap/afpacket)")
	f.StringVarP(&o.filter, "filter", "f", "", "BPF filter expression")
	f.StringVar(&o.format, "format", "", "output format (text/json/yaml)")
	f.Uint64VarP(&o.count, "count", "c", 0, "stop after this many frames (0 = unlimited)")
	f.BoolVar(&o.skipIPv4Options, "skip-ipv4-options", false, "skip IPv4 option bytes before the transport header")
	f.BoolVar(&o.payloadHex, "payload-hex", false, "print the undissected payload as hex")
	f.StringVar(&o.metricsListen, "metrics-listen", "", "serve Prometheus metrics on this address")
	f.StringVar(&o.output, "output", "", "output sink (console/kafka)")
	f.StringSliceVar(&o.kafkaBrokers, "kafka-brokers", nil, "Kafka brokers for --output kafka")
	f.StringVar(&o.kafkaTopic, "kafka-topic", "", "Kafka topic for --output kafka")
}

// applyTo copies explicitly set flags over cfg.
func (o *readOptions) applyTo(flags *pflag.FlagSet, cfg *config.Config) {
	switch {
	case o.file != "":
		cfg.Source.Type = config.SourceFile
		cfg.Source.Path = o.file
	case o.iface != "":
		if cfg.Source.Type == config.SourceFile {
			cfg.Source.Type = config.SourcePcap
		}
		cfg.Source.Device = o.iface
	}
	if flags.Changed("source-type") {
		cfg.Source.Type = o.sourceType
	}
	if flags.Changed("filter") {
		cfg.Source.BPFFilter = o.filter
	}
	if flags.Changed("format") {
		cfg.Output.Format = o.format
	}
	if flags.Changed("count") {
		cfg.Limit = o.count
	}
	if flags.Changed("skip-ipv4-options") {
		cfg.Decoder.SkipIPv4Options = o.skipIPv4Options
	}
	if flags.Changed("payload-hex") {
		cfg.Output.PayloadHex = o.payloadHex
	}
	if flags.Changed("metrics-listen") {
		cfg.Metrics.Enabled = o.metricsListen != ""
		cfg.Metrics.Listen = o.metricsListen
	}
	if flags.Changed("output") {
		cfg.Output.Type = o.output
	}
	if flags.Changed("kafka-brokers") {
		cfg.Output.Kafka.Brokers = o.kafkaBrokers
	}
	if flags.Changed("kafka-topic") {
		cfg.Output.Kafka.Topic = o.kafkaTopic
	}
}

// runRead opens the configured source and runs the pipeline into out.
func runRead(ctx context.Context, cfg *config.Config, out io.Writer) error {
	if err := cfg.ValidateAndApplyDefaults(); err != nil {
		return err
	}

	runID := uuid.New().String()
	logger := log.WithComponent("read").WithField("run_id", runID)

	if cfg.Metrics.Enabled {
		srv := metrics.NewServer(cfg.Metrics.Listen, cfg.Metrics.Path)
		if err := srv.Start(ctx); err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Stop(shutdownCtx); err != nil {
				logger.WithError(err).Warn("metrics server stop failed")
			}
		}()
	}

	src, err := source.Open(cfg.Source)
	if err != nil {
		return fmt.Errorf("failed to open source: %w", err)
	}
	defer src.Close()

	sink, closeSink, err := openSink(cfg.Output, out)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeSink(); err != nil {
			logger.WithError(err).Warn("sink close failed")
		}
	}()

	p, err := pipeline.NewBuilder().
		WithSource(src).
		WithDecoderConfig(cfg.Decoder).
		WithSink(sink).
		WithLimit(cfg.Limit).
		WithErrorLogLimit(100, 10*time.Second).
		Build()
	if err != nil {
		return err
	}

	logger.WithFields(logrus.Fields{
		"source": cfg.Source.Type,
		"path":   cfg.Source.Path,
		"device": cfg.Source.Device,
		"output": cfg.Output.Type,
	}).Info("run started")

	start := time.Now()
	runErr := p.Run(ctx)
	snap := p.Stats().Snapshot()

	logger.WithFields(logrus.Fields{
		"received":      snap.Received,
		"decoded":       snap.Decoded,
		"unsupported":   snap.Unsupported,
		"decode_errors": snap.DecodeErrors,
		"written":       snap.Written,
		"elapsed":       time.Since(start).String(),
	}).Info("run finished")

	return runErr
}

// openSink builds the configured output sink. The returned func releases it.
func openSink(cfg config.OutputConfig, out io.Writer) (pipeline.Sink, func() error, error) {
	switch cfg.Type {
	case config.OutputKafka:
		s, err := kafka.NewSink(cfg)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	default:
		s, err := console.NewSink(out, cfg)
		if err != nil {
			return nil, nil, err
		}
		return s, func() error { return nil }, nil
	}
}
