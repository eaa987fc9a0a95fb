package transit

import (
	"github.com/quillback/quillback/internal/buffer"
)

// DefaultMessageFormatter substitutes positional "{}" placeholders in
// left-to-right order with stringified argument values, the reference
// stand-in for the out-of-scope placeholder-expansion engine. Surplus
// placeholders are left empty; surplus arguments are ignored.
type DefaultMessageFormatter struct{}

// Format implements MessageFormatter.
func (DefaultMessageFormatter) Format(messageFormat string, args []string) (string, error) {
	b := buffer.GetStringBuilder()
	defer buffer.PutStringBuilder(b)
	b.Grow(len(messageFormat))
	argIdx := 0
	i := 0
	n := len(messageFormat)
	for i < n {
		if messageFormat[i] == '{' && i+1 < n && messageFormat[i+1] == '}' {
			if argIdx < len(args) {
				b.WriteString(args[argIdx])
				argIdx++
			}
			i += 2
			continue
		}
		b.WriteByte(messageFormat[i])
		i++
	}
	return b.String(), nil
}
