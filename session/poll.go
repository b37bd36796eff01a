package session

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// PollOptions configures the read loop
type PollOptions struct {
	Count    int
	Interval time.Duration
}

// DefaultPollOptions returns default polling options
func DefaultPollOptions() *PollOptions {
	return &PollOptions{
		Count:    20,
		Interval: 200 * time.Millisecond,
	}
}

// ReadResult is one successful read.
type ReadResult struct {
	Seq   int // 1-based
	Value []byte
	Time  time.Time
}

// EmitFunc receives read results in the order they were obtained.
type EmitFunc func(ReadResult)

// Poll reads target opts.Count times, emitting each value and then waiting
// opts.Interval. Reads are strictly sequential. The first failed read stops
// the loop; results emitted before it stand. Poll returns the number of
// successful reads.
func Poll(ctx context.Context, target *Target, opts *PollOptions, emit EmitFunc, logger logrus.FieldLogger) (int, error) {
	if opts == nil {
		opts = DefaultPollOptions()
	}
	if emit == nil {
		emit = func(ReadResult) {}
	}
	if logger == nil {
		logger = logrus.New()
	}

	logger.WithFields(logrus.Fields{
		"count":    opts.Count,
		"interval": opts.Interval,
	}).Info("Polling characteristic...")

	timer := time.NewTimer(opts.Interval)
	timer.Stop()
	defer timer.Stop()

	for seq := 1; seq <= opts.Count; seq++ {
		value, err := target.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return seq - 1, ctx.Err()
			}
			return seq - 1, &RunError{Kind: KindRead, Attempt: seq, Err: err}
		}

		logger.WithFields(logrus.Fields{
			"seq":   seq,
			"value": value,
		}).Debug("Characteristic read")
		emit(ReadResult{Seq: seq, Value: value, Time: time.Now()})

		timer.Reset(opts.Interval)
		select {
		case <-ctx.Done():
			return seq, ctx.Err()
		case <-timer.C:
		}
	}

	return opts.Count, nil
}
