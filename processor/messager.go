package processor

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// DiagnosticKind is the severity of a diagnostic message.
type DiagnosticKind int

const (
	Note DiagnosticKind = iota
	Warning
	MandatoryWarning
	Error
	Other
)

func (k DiagnosticKind) String() string {
	switch k {
	case Note:
		return "NOTE"
	case Warning:
		return "WARNING"
	case MandatoryWarning:
		return "MANDATORY_WARNING"
	case Error:
		return "ERROR"
	case Other:
		return "OTHER"
	default:
		return fmt.Sprintf("?%d?", int(k))
	}
}

// Messager is the diagnostic sink supplied by the host. Generators report
// human-readable messages through it.
type Messager interface {
	PrintMessage(kind DiagnosticKind, msg string)
}

// Log field names used by the messager.
const (
	fieldSubsys    = "subsys"
	fieldProcessor = "processor"
	fieldKind      = "kind"
)

type logMessager struct {
	log logrus.FieldLogger
}

// NewLogMessager returns a Messager that forwards diagnostics to the given
// logger. Notes are logged at info level, warnings at warn level and errors at
// error level. A nil logger means the standard logrus logger.
func NewLogMessager(log logrus.FieldLogger) Messager {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &logMessager{log: log.WithField(fieldSubsys, "pregen")}
}

func (m *logMessager) PrintMessage(kind DiagnosticKind, msg string) {
	entry := m.log.WithField(fieldKind, kind.String())
	switch kind {
	case Note:
		entry.Info(msg)
	case Warning, MandatoryWarning:
		entry.Warn(msg)
	case Error:
		entry.Error(msg)
	default:
		entry.Debug(msg)
	}
}

// kindMessager tags every diagnostic with the processor kind.
type kindMessager struct {
	kind string
	Messager
}

func (m kindMessager) PrintMessage(kind DiagnosticKind, msg string) {
	if lm, ok := m.Messager.(*logMessager); ok {
		(&logMessager{log: lm.log.WithField(fieldProcessor, m.kind)}).PrintMessage(kind, msg)
		return
	}
	m.Messager.PrintMessage(kind, msg)
}

func printf(m Messager, kind DiagnosticKind, format string, args ...interface{}) {
	m.PrintMessage(kind, fmt.Sprintf(format, args...))
}
