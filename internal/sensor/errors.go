package sensor

import "errors"

// ErrTransient marks a recoverable bus failure (bad checksum, missed
// edge, short frame). Callers log it and try again on the next cycle.
var ErrTransient = errors.New("sensor: transient read failure")

type Outcome int

const (
	OK Outcome = iota
	Transient
	Fatal
)

func (o Outcome) String() string {
	switch o {
	case OK:
		return "ok"
	case Transient:
		return "transient"
	default:
		return "fatal"
	}
}

// Classify maps the error returned by Reader.Read to an Outcome. Anything
// not wrapping ErrTransient is fatal.
func Classify(err error) Outcome {
	switch {
	case err == nil:
		return OK
	case errors.Is(err, ErrTransient):
		return Transient
	default:
		return Fatal
	}
}
