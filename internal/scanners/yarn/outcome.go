package yarn

import (
	"bytes"
	"io"
)

// Outcome classifies one finished audit attempt.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeToolError
	OutcomeNetworkError
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeToolError:
		return "tool error"
	case OutcomeNetworkError:
		return "network error"
	default:
		return "unknown"
	}
}

// ToolErrorExitCode is the exit status yarn uses for its own failures.
const ToolErrorExitCode = 1

// ClassifyOutcome inspects the exit code and the captured output of an
// attempt. A network-failure signature anywhere in the output wins over the
// exit code; exit code 1 is a tool error; everything else is a success.
// signature depends on yarn's undocumented error wording and may stop
// matching if yarn changes it.
func ClassifyOutcome(exitCode int, captured io.Reader, signature string) (Outcome, error) {
	if signature != "" {
		found, err := containsStream(captured, []byte(signature))
		if err != nil {
			return OutcomeToolError, err
		}
		if found {
			return OutcomeNetworkError, nil
		}
	}
	if exitCode == ToolErrorExitCode {
		return OutcomeToolError, nil
	}
	return OutcomeSuccess, nil
}

// containsStream searches r for sig without loading r into memory. The tail
// of each chunk is carried over so matches spanning chunks are found.
func containsStream(r io.Reader, sig []byte) (bool, error) {
	const chunk = 32 << 10
	keep := len(sig) - 1
	buf := make([]byte, 0, chunk+keep)
	tmp := make([]byte, chunk)
	for {
		n, err := r.Read(tmp)
		if n > 0 {
			buf = append(buf, tmp[:n]...)
			if bytes.Contains(buf, sig) {
				return true, nil
			}
			if len(buf) > keep {
				buf = append(buf[:0], buf[len(buf)-keep:]...)
			}
		}
		if err == io.EOF {
			return false, nil
		}
		if err != nil {
			return false, err
		}
	}
}
