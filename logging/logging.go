// Package logging wires the tagged log stream described in spec.md #4.F
// and #6 onto a structured logrus.Logger, the way the teacher repo would
// report filesystem progress through a structured logger rather than
// bare fmt.Printf.
package logging

import (
	"os"

	"github.com/sirupsen/logrus"
)

// Kind is one of the tagged record kinds spec.md #4.F/#6 lists as the
// observable side effects of a check/fix pass.
type Kind string

const (
	KindError         Kind = "error"
	KindParityError   Kind = "parity_error"
	KindHashError     Kind = "hash_error"
	KindHashImport    Kind = "hash_import"
	KindHashUnknown   Kind = "hash_unknown"
	KindUnrecoverable Kind = "unrecoverable"
	KindFixed         Kind = "fixed"
	KindParityFixed   Kind = "parity_fixed"
	KindStatus        Kind = "status"
)

// Status is the per-stripe outcome reported under KindStatus.
type Status string

const (
	StatusCorrect     Status = "correct"
	StatusDamaged     Status = "damaged"
	StatusRecoverable Status = "recoverable"
	StatusRecovered   Status = "recovered"
	StatusUnrecover   Status = "unrecoverable"
)

// Logger emits one structured line per tagged record: kind:stripe:disk:sub
// plus any extra fields, mirroring spec.md #6's "structured single-line
// records" description. It wraps a *logrus.Logger the same way the
// teacher's dependency list carries logrus without using it, giving that
// dependency a concrete home.
type Logger struct {
	l *logrus.Logger
}

// New returns a Logger writing to stderr at Info level, JSON-free text
// formatting (one line per record, fields appended).
func New() *Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return &Logger{l: l}
}

// Record emits one tagged line. extra carries any kind-specific fields
// (e.g. "error" for the underlying I/O error, "combination" for the
// parity set repair_step tried).
func (lg *Logger) Record(kind Kind, stripe int, disk, sub string, extra map[string]interface{}) {
	fields := logrus.Fields{"kind": string(kind), "stripe": stripe, "disk": disk, "sub": sub}
	for k, v := range extra {
		fields[k] = v
	}
	entry := lg.l.WithFields(fields)
	switch kind {
	case KindError, KindParityError, KindHashError, KindUnrecoverable:
		entry.Error(kind)
	case KindHashUnknown:
		entry.Warn(kind)
	default:
		entry.Info(kind)
	}
}

// Status emits a KindStatus record for a stripe's final outcome.
func (lg *Logger) Status(stripe int, status Status) {
	lg.Record(KindStatus, stripe, "", "", map[string]interface{}{"status": string(status)})
}
