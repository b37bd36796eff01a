// Package session runs the discover, connect, resolve and poll sequence
// against one BLE peripheral.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"
	"github.com/srg/blepoll/internal/device"
	"github.com/srg/blepoll/pkg/config"
)

// ProgressCallback is called on every state change of a run
type ProgressCallback func(state State)

// Options holds everything a run needs besides the device manager.
type Options struct {
	Scan           ScanOptions
	ConnectTimeout time.Duration
	Target         device.UUID
	Poll           PollOptions
}

// DefaultOptions returns the built-in run parameters
func DefaultOptions() Options {
	return Options{
		Scan:           *DefaultScanOptions(),
		ConnectTimeout: 30 * time.Second,
		Target:         device.UUID16(0x2A5F),
		Poll:           *DefaultPollOptions(),
	}
}

// OptionsFromConfig maps a validated configuration onto run options.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Scan: ScanOptions{
			Duration:   cfg.ScanDuration,
			TargetName: cfg.TargetName,
		},
		ConnectTimeout: cfg.ConnectTimeout,
		Target:         cfg.Target(),
		Poll: PollOptions{
			Count:    cfg.ReadCount,
			Interval: cfg.ReadInterval,
		},
	}
}

// Report summarizes a run. On failure it holds whatever was reached.
type Report struct {
	RunID          string
	Adapter        string
	Address        string
	Name           string
	Characteristic *device.Characteristic
	Reads          int
	Started        time.Time
	Finished       time.Time
}

// Session is a single run. It is not reusable.
type Session struct {
	manager  device.Manager
	opts     Options
	logger   *logrus.Entry
	progress ProgressCallback
	runID    ulid.ULID

	mu    sync.Mutex
	state State
}

// New creates a Session that will use the first adapter of manager.
func New(manager device.Manager, opts Options, logger *logrus.Logger) *Session {
	if logger == nil {
		logger = logrus.New()
	}
	runID := ulid.Make()
	return &Session{
		manager:  manager,
		opts:     opts,
		logger:   logger.WithField("run_id", runID.String()),
		progress: func(State) {},
		runID:    runID,
	}
}

// OnProgress registers a callback for state changes. It must be set before Run.
func (s *Session) OnProgress(cb ProgressCallback) {
	if cb == nil {
		cb = func(State) {}
	}
	s.progress = cb
}

// RunID returns the identifier attached to every log entry of this run.
func (s *Session) RunID() string {
	return s.runID.String()
}

// State returns the current state
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Run executes the whole sequence once. Every successful read is passed to
// emit before the next one starts. Once connected, the peripheral is
// disconnected on every exit path and the adapter is closed when Run returns.
func (s *Session) Run(ctx context.Context, emit EmitFunc) (report *Report, err error) {
	if st := s.State(); st != Idle {
		return nil, fmt.Errorf("session already in state %s", st)
	}

	report = &Report{RunID: s.RunID(), Started: time.Now()}
	defer func() {
		report.Finished = time.Now()
		if err != nil {
			s.fail(err)
			return
		}
		s.advance()
		s.logger.WithFields(logrus.Fields{
			"reads":    report.Reads,
			"duration": report.Finished.Sub(report.Started),
		}).Info("Run completed")
	}()

	adapter, err := AcquireAdapter(ctx, s.manager, s.logger)
	if err != nil {
		return report, err
	}
	defer func() {
		if cerr := adapter.Close(); cerr != nil {
			s.logger.WithFields(logrus.Fields{
				"adapter": adapter.ID(),
				"error":   cerr,
			}).Warn("Failed to close adapter")
		}
	}()
	report.Adapter = adapter.ID()
	s.advance()

	s.advance()
	found, err := FindPeripheral(ctx, adapter, &s.opts.Scan, s.logger)
	if err != nil {
		return report, err
	}
	report.Address = found.Properties.Address
	report.Name = found.Properties.LocalName
	s.advance()

	link, err := Connect(ctx, found.Peripheral, &ConnectOptions{
		Timeout:     s.opts.ConnectTimeout,
		OnConnected: s.advance,
	}, s.logger)
	if err != nil {
		return report, err
	}
	defer link.Disconnect(ctx)
	s.advance()

	target, err := ResolveCharacteristic(link, s.opts.Target)
	if err != nil {
		return report, err
	}
	char := target.Characteristic()
	report.Characteristic = &char
	s.advance()

	s.advance()
	report.Reads, err = Poll(ctx, target, &s.opts.Poll, emit, s.logger)
	return report, err
}

// advance moves to the next state of the linear lifecycle.
func (s *Session) advance() {
	s.mu.Lock()
	from := s.state
	if from.Terminal() {
		s.mu.Unlock()
		return
	}
	to := from.next()
	s.state = to
	s.mu.Unlock()

	s.logger.WithFields(logrus.Fields{
		"from": from.String(),
		"to":   to.String(),
	}).Info("Run state changed")
	s.progress(to)
}

// fail records the failing stage on err and moves to Failed.
func (s *Session) fail(err error) {
	s.mu.Lock()
	from := s.state
	s.state = Failed
	s.mu.Unlock()

	var runErr *RunError
	if errors.As(err, &runErr) {
		runErr.Stage = from
	}

	s.logger.WithFields(logrus.Fields{
		"from":  from.String(),
		"error": err,
	}).Error("Run failed")
	s.progress(Failed)
}
