package tlscan

import (
	"io"
	"log"
	"sync"
)

// LogWriters routes the package's three log streams. A nil writer turns
// its stream off.
//
//	Ops    one line per scan loaded, failed or released
//	Diag   per-scan findings: chosen offset, header size mismatches
//	Trace  per-batch byte counts
type LogWriters struct {
	Ops   io.Writer
	Diag  io.Writer
	Trace io.Writer
}

type logStream int

const (
	streamOps logStream = iota
	streamDiag
	streamTrace
	numStreams
)

var streamPrefix = [numStreams]string{
	streamOps:   "tlscan: ",
	streamDiag:  "tlscan diag: ",
	streamTrace: "tlscan trace: ",
}

var logs struct {
	sync.RWMutex
	l [numStreams]*log.Logger
}

// SetLogWriters replaces all three streams at once.
func SetLogWriters(w LogWriters) {
	var next [numStreams]*log.Logger
	for st, out := range [numStreams]io.Writer{w.Ops, w.Diag, w.Trace} {
		if out != nil {
			next[st] = log.New(out, streamPrefix[st], log.LstdFlags|log.Lmicroseconds)
		}
	}
	logs.Lock()
	logs.l = next
	logs.Unlock()
}

func logf(st logStream, format string, args ...any) {
	logs.RLock()
	l := logs.l[st]
	logs.RUnlock()
	if l != nil {
		l.Printf(format, args...)
	}
}

// scanLogf logs a line about the scan file name.
func scanLogf(st logStream, name, format string, args ...any) {
	logf(st, "scan %s: "+format, append([]any{name}, args...)...)
}

func (s *Scan) opsf(format string, args ...any)   { scanLogf(streamOps, s.Name, format, args...) }
func (s *Scan) diagf(format string, args ...any)  { scanLogf(streamDiag, s.Name, format, args...) }
func (s *Scan) tracef(format string, args ...any) { scanLogf(streamTrace, s.Name, format, args...) }

// Opsf logs to the ops stream.
func Opsf(format string, args ...any) { logf(streamOps, format, args...) }

// Diagf logs to the diag stream.
func Diagf(format string, args ...any) { logf(streamDiag, format, args...) }

// Tracef logs to the trace stream.
func Tracef(format string, args ...any) { logf(streamTrace, format, args...) }
