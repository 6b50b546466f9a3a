// Package kafka publishes dissections to a Kafka topic, one JSON message per frame.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/compress"
	"github.com/sirupsen/logrus"

	"firestige.xyz/dissector/internal/config"
	"firestige.xyz/dissector/internal/core"
	"firestige.xyz/dissector/internal/log"
	"firestige.xyz/dissector/internal/sink"
)

const (
	defaultBatchSize    = 100
	defaultBatchTimeout = 100 * time.Millisecond
	defaultMaxAttempts  = 3
	writeTimeout        = 10 * time.Second
)

var codecs = map[string]compress.Compression{
	"gzip":   compress.Gzip,
	"snappy": compress.Snappy,
	"lz4":    compress.Lz4,
	"zstd":   compress.Zstd,
}

// messageWriter is the subset of *kafka.Writer the sink needs.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Sink buffers messages and hands them to the writer in batches.
// Write is safe for concurrent use.
type Sink struct {
	writer     messageWriter
	topic      string
	batchSize  int
	payloadHex bool
	logger     *logrus.Entry

	mu      sync.Mutex
	pending []kafka.Message

	written atomic.Uint64
	failed  atomic.Uint64
}

// NewSink creates a sink writing to cfg.Kafka.Topic.
func NewSink(cfg config.OutputConfig) (*Sink, error) {
	k := cfg.Kafka
	if len(k.Brokers) == 0 {
		return nil, fmt.Errorf("%w: kafka sink requires brokers", core.ErrConfigInvalid)
	}
	if k.Topic == "" {
		return nil, fmt.Errorf("%w: kafka sink requires a topic", core.ErrConfigInvalid)
	}

	w := &kafka.Writer{
		Addr:         kafka.TCP(k.Brokers...),
		Topic:        k.Topic,
		Balancer:     &kafka.Hash{}, // same flow, same partition
		BatchSize:    orDefault(k.BatchSize, defaultBatchSize),
		BatchTimeout: k.Timeout(defaultBatchTimeout),
		MaxAttempts:  orDefault(k.MaxAttempts, defaultMaxAttempts),
		RequiredAcks: kafka.RequireOne,
	}
	switch k.Compression {
	case "", "none":
	default:
		codec, ok := codecs[k.Compression]
		if !ok {
			return nil, fmt.Errorf("%w: invalid compression type: %s", core.ErrConfigInvalid, k.Compression)
		}
		w.Compression = codec
	}

	return newSink(w, cfg), nil
}

func newSink(w messageWriter, cfg config.OutputConfig) *Sink {
	s := &Sink{
		writer:     w,
		topic:      cfg.Kafka.Topic,
		batchSize:  orDefault(cfg.Kafka.BatchSize, defaultBatchSize),
		payloadHex: cfg.PayloadHex,
		logger:     log.WithComponent("sink.kafka"),
	}
	s.pending = make([]kafka.Message, 0, s.batchSize)
	s.logger.WithFields(logrus.Fields{
		"topic":      s.topic,
		"batch_size": s.batchSize,
	}).Info("kafka sink ready")
	return s
}

// Write queues one frame and sends the batch once it is full.
func (s *Sink) Write(seq uint64, d *core.Dissection, err error) error {
	if d == nil {
		return fmt.Errorf("nil dissection")
	}

	v := sink.NewFrameView(seq, d, err, s.payloadHex)
	value, merr := json.Marshal(&v)
	if merr != nil {
		s.failed.Add(1)
		return fmt.Errorf("serialize frame failed: %w", merr)
	}

	msg := kafka.Message{
		Key:   flowKey(d),
		Value: value,
		Time:  d.Timestamp,
		Headers: []kafka.Header{
			{Key: "layer", Value: []byte(d.Deepest().String())},
		},
	}
	if v.Service != "" {
		msg.Headers = append(msg.Headers, kafka.Header{Key: "service", Value: []byte(v.Service)})
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = append(s.pending, msg)
	if len(s.pending) < s.batchSize {
		return nil
	}
	return s.flushLocked()
}

// Flush sends any queued messages.
func (s *Sink) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flushLocked()
}

func (s *Sink) flushLocked() error {
	if len(s.pending) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	n := len(s.pending)
	err := s.writer.WriteMessages(ctx, s.pending...)
	s.pending = s.pending[:0]
	if err != nil {
		s.failed.Add(uint64(n))
		return fmt.Errorf("kafka write failed: %w", err)
	}
	s.written.Add(uint64(n))
	return nil
}

// Close flushes pending messages and closes the writer.
func (s *Sink) Close() error {
	ferr := s.Flush()
	if err := s.writer.Close(); err != nil {
		s.logger.WithError(err).Error("error closing kafka writer")
		return err
	}
	s.logger.WithFields(logrus.Fields{
		"total_written": s.written.Load(),
		"total_failed":  s.failed.Load(),
	}).Info("kafka sink closed")
	return ferr
}

// Written returns the number of messages acknowledged by the writer.
func (s *Sink) Written() uint64 {
	return s.written.Load()
}

// Failed returns the number of messages that could not be sent.
func (s *Sink) Failed() uint64 {
	return s.failed.Load()
}

// flowKey keys transport frames by their 4-tuple so a flow stays on one
// partition. Frames without one get a nil key.
func flowKey(d *core.Dissection) []byte {
	if d.IPv4 == nil {
		return nil
	}
	var sport, dport uint16
	switch {
	case d.TCP != nil:
		sport, dport = d.TCP.SrcPort, d.TCP.DstPort
	case d.UDP != nil:
		sport, dport = d.UDP.SrcPort, d.UDP.DstPort
	default:
		return []byte(fmt.Sprintf("%s-%s", d.IPv4.SrcIP, d.IPv4.DstIP))
	}
	return []byte(fmt.Sprintf("%s:%d-%s:%d", d.IPv4.SrcIP, sport, d.IPv4.DstIP, dport))
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
