package identifier

import "fmt"

// InvalidFormatError reports a malformed identifier. It is a caller input
// error and is never retried.
type InvalidFormatError struct {
	Value    string
	Expected string
}

func (e *InvalidFormatError) Error() string {
	return fmt.Sprintf("invalid identifier format %q: expected %s", e.Value, e.Expected)
}
