package xfl

import (
	"fmt"
	"os"
)

// logf writes one trace line to stderr, unbuffered, the same shape as
// cznic/memory's trace-gated fmt.Fprintf calls.
func logf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Stderr.Sync()
}
