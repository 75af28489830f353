package clog

import "time"

// Tracer prints pass-by-pass progress when Enabled, in the teacher's
// trace.go idiom: a start line, then a success/fail glyph line once the
// pass returns. This is deliberately coarser than --explain, which logs
// one line per removal; the tracer logs one line per pass.
type Tracer struct {
	Logger  *Logger
	Enabled bool
}

// NewTracer returns a Tracer writing through l, active only when enabled.
func NewTracer(l *Logger, enabled bool) *Tracer {
	return &Tracer{Logger: l, Enabled: enabled}
}

// Pass runs fn under a start/finish trace pair, reporting how many records
// fn reports as removed. fn must return the removal count and any error.
func (tr *Tracer) Pass(name string, fn func() (int, error)) (int, error) {
	if !tr.Enabled {
		return fn()
	}
	tr.Logger.Logf("--> %s", name)
	start := time.Now()
	n, err := fn()
	elapsed := time.Since(start)
	if err != nil {
		tr.Logger.Logf("✗   %s failed after %s: %v", name, elapsed, err)
		return n, err
	}
	tr.Logger.Logf("✓   %s removed %d in %s", name, n, elapsed)
	return n, nil
}

// Note emits a free-form trace line when enabled.
func (tr *Tracer) Note(f string, args ...interface{}) {
	if !tr.Enabled {
		return
	}
	tr.Logger.Logf(f, args...)
}
