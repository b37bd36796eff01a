package main

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
	"github.com/srg/blepoll/pkg/config"
	"github.com/srg/blepoll/session"
)

const resultLabel = "Current result ="

// readRecord is the JSON line written per read with --format json.
type readRecord struct {
	Seq            int    `json:"seq"`
	Time           string `json:"time"`
	Characteristic string `json:"characteristic"`
	Hex            string `json:"hex"`
	Bytes          []int  `json:"bytes"`
}

// resultPrinter writes read results in the configured format.
type resultPrinter struct {
	w      io.Writer
	format string
	char   string
	label  *color.Color
	enc    *json.Encoder
	err    error
}

func newResultPrinter(w io.Writer, format, char string) *resultPrinter {
	return &resultPrinter{
		w:      w,
		format: format,
		char:   char,
		label:  color.New(color.FgCyan),
		enc:    json.NewEncoder(w),
	}
}

// Emit prints r. The first write error is kept and reported by Err.
func (p *resultPrinter) Emit(r session.ReadResult) {
	if p.err != nil {
		return
	}
	p.err = p.print(r)
}

func (p *resultPrinter) Err() error {
	return p.err
}

func (p *resultPrinter) print(r session.ReadResult) error {
	switch p.format {
	case config.FormatJSON:
		ints := make([]int, len(r.Value))
		for i, b := range r.Value {
			ints[i] = int(b)
		}
		return p.enc.Encode(readRecord{
			Seq:            r.Seq,
			Time:           r.Time.UTC().Format(time.RFC3339Nano),
			Characteristic: p.char,
			Hex:            hex.EncodeToString(r.Value),
			Bytes:          ints,
		})
	case config.FormatBytes:
		_, err := fmt.Fprintf(p.w, "%s %v\n", p.label.Sprint(resultLabel), r.Value)
		return err
	default:
		_, err := fmt.Fprintf(p.w, "%s %s\n", p.label.Sprint(resultLabel), hex.EncodeToString(r.Value))
		return err
	}
}

// printSummary writes a one-line summary of a completed run to w.
func printSummary(w io.Writer, report *session.Report) {
	if report == nil || report.Characteristic == nil {
		return
	}
	name := report.Name
	if name == "" {
		name = report.Address
	}
	fmt.Fprintf(w, "%d reads of %s from %s (%s) via %s in %s\n",
		report.Reads,
		report.Characteristic.UUID.Short(),
		name,
		report.Address,
		report.Adapter,
		report.Finished.Sub(report.Started).Truncate(time.Millisecond),
	)
}
