package crinex

import "fmt"

// Warning stores a recoverable decoding problem and the line number where it was raised.
type Warning struct {
	Line int
	Msg  string
}

func (w Warning) String() string {
	if w.Line > 0 {
		return fmt.Sprintf("line %d: %s", w.Line, w.Msg)
	}
	return w.Msg
}

// WarningList collects the Warnings of a decoding session.
type WarningList []*Warning

// Add appends a Warning with the given line number and message.
func (p *WarningList) Add(line int, msg string) {
	*p = append(*p, &Warning{Line: line, Msg: msg})
}
