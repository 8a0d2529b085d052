package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bft-labs/serialbridge/internal/domain"
	"github.com/bft-labs/serialbridge/internal/metrics"
	"github.com/bft-labs/serialbridge/internal/ports"
	"github.com/bft-labs/serialbridge/pkg/log"
)

// DefaultReadTimeout bounds each serial read so the loop can run idle checks.
const DefaultReadTimeout = 100 * time.Millisecond

const readBufSize = 256

// IngestConfig contains configuration for the ingestion loop.
type IngestConfig struct {
	Port         string
	BaudRate     int
	BufferSize   int
	FlushTimeout time.Duration
	ReadTimeout  time.Duration

	BackoffInitial time.Duration
	BackoffMax     time.Duration

	// Pattern, when set, keeps only the matching parts of each frame
	Pattern string
}

// FrameEmitter is notified about ingestion results.
// Calls happen on the ingestor goroutine and should return quickly.
type FrameEmitter interface {
	OnFrame(slot domain.Slot, changed bool)
	OnDecodeError(err error)
}

// Ingestor drives the serial read cycle and publishes frames into the store.
type Ingestor struct {
	config    IngestConfig
	opener    ports.PortOpener
	store     *Store
	lifecycle *Lifecycle
	logger    log.Logger
	emitter   FrameEmitter
	asm       *Assembler
	extractor *Extractor

	listedPorts bool
}

// NewIngestor creates an ingestor with the given dependencies.
// emitter may be nil.
func NewIngestor(
	config IngestConfig,
	opener ports.PortOpener,
	store *Store,
	lifecycle *Lifecycle,
	logger log.Logger,
	emitter FrameEmitter,
) (*Ingestor, error) {
	extractor, err := NewExtractor(config.Pattern)
	if err != nil {
		return nil, err
	}
	if config.ReadTimeout <= 0 {
		config.ReadTimeout = DefaultReadTimeout
	}
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	return &Ingestor{
		config:    config,
		opener:    opener,
		store:     store,
		lifecycle: lifecycle,
		logger:    logger,
		emitter:   emitter,
		asm:       NewAssembler(config.BufferSize, config.FlushTimeout),
		extractor: extractor,
	}, nil
}

// Run executes the ingestion loop until ctx is canceled.
// Serial failures never end the loop; they move it to Recovering and it reconnects.
// Returns ctx.Err() on cancellation.
func (in *Ingestor) Run(ctx context.Context) error {
	if err := in.lifecycle.TransitionTo(StateStarting, "ingestor started"); err != nil {
		return err
	}
	defer func() {
		_ = in.lifecycle.TransitionTo(StateStopping, "shutdown requested")
		_ = in.lifecycle.TransitionTo(StateStopped, "connection released")
	}()

	bo := newBackoff(in.config.BackoffInitial, in.config.BackoffMax)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		port, err := in.open()
		if err != nil {
			in.recoverFrom(err, bo)
			if !bo.Wait(ctx) {
				return ctx.Err()
			}
			continue
		}

		in.logger.Info("serial port opened",
			log.String("port", in.config.Port),
			log.Int("baud", in.config.BaudRate),
		)
		_ = in.lifecycle.TransitionTo(StateConnected, "port opened")
		in.listedPorts = false
		bo.Reset()

		err = in.stream(ctx, port)
		if closeErr := port.Close(); closeErr != nil {
			in.logger.Debug("close serial port", log.Err(closeErr))
		}
		if n := in.asm.Pending(); n > 0 {
			in.logger.Debug("discarding partial frame", log.Int("bytes", n))
			in.asm.Reset()
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		in.recoverFrom(err, bo)
		if !bo.Wait(ctx) {
			return ctx.Err()
		}
	}
}

func (in *Ingestor) open() (ports.SerialPort, error) {
	if strings.TrimSpace(in.config.Port) == "" {
		return nil, fmt.Errorf("%w: no serial port configured", domain.ErrConfiguration)
	}
	if in.config.BaudRate <= 0 {
		return nil, fmt.Errorf("%w: invalid baud rate %d", domain.ErrConfiguration, in.config.BaudRate)
	}

	metrics.ConnectAttempt()
	port, err := in.opener.Open(ports.OpenRequest{
		Name:        in.config.Port,
		BaudRate:    in.config.BaudRate,
		ReadTimeout: in.config.ReadTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrConnection, err)
	}
	return port, nil
}

// stream reads until the port fails or ctx is canceled.
// A nil return means cancellation.
func (in *Ingestor) stream(ctx context.Context, port ports.SerialPort) error {
	_ = in.lifecycle.TransitionTo(StateReading, "streaming")

	buf := make([]byte, readBufSize)
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		n, err := port.Read(buf)
		if n > 0 {
			metrics.AddBytesRead(n)
			in.handle(in.asm.Feed(buf[:n]))
		} else {
			in.handle(in.asm.Poll())
		}

		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("%w: read %s: %w", domain.ErrConnection, in.config.Port, err)
		}
	}
}

func (in *Ingestor) handle(frame domain.Frame, ok bool, err error) {
	if err != nil {
		if errors.Is(err, domain.ErrDecode) {
			metrics.DecodeError()
			in.logger.Warn("discarding undecodable frame", log.Err(err))
			if in.emitter != nil {
				in.emitter.OnDecodeError(err)
			}
		}
		return
	}
	if !ok {
		return
	}

	frame, ok = in.extractor.Apply(frame)
	if !ok {
		metrics.FrameDropped()
		in.logger.Debug("frame has no pattern match", log.String("pattern", in.config.Pattern))
		return
	}

	changed := Classify(frame, in.store.Current())
	slot := in.store.Publish(frame, changed)
	metrics.FramePublished(changed)

	in.logger.Debug("frame published",
		log.String("value", frame.Text),
		log.Bool("changed", changed),
		log.Uint64("seq", slot.Seq),
	)

	if in.emitter != nil {
		in.emitter.OnFrame(slot, changed)
	}
}

// recoverFrom records err, moves to Recovering and, once per outage, lists available ports.
func (in *Ingestor) recoverFrom(err error, bo *backoff) {
	if err == nil {
		err = fmt.Errorf("%w: stream ended", domain.ErrConnection)
	}
	in.lifecycle.RecordError(err)
	_ = in.lifecycle.TransitionTo(StateRecovering, err.Error())
	metrics.ConnectionError()

	in.logger.Warn("serial connection unavailable",
		log.Err(err),
		log.String("port", in.config.Port),
		log.Duration("retry_in", bo.Current()),
	)

	if in.listedPorts {
		return
	}
	in.listedPorts = true

	available, listErr := in.opener.List()
	if listErr != nil {
		in.logger.Warn("could not list serial ports", log.Err(listErr))
		return
	}
	if len(available) == 0 {
		in.logger.Info("no serial ports found")
		return
	}
	for _, p := range available {
		in.logger.Info("available serial port",
			log.String("name", p.Name),
			log.String("description", p.Description),
		)
	}
}
