package payload

import "fmt"

// MissingKeyError reports a read of a key that is not present in the node.
type MissingKeyError struct {
	Key string
}

func (e *MissingKeyError) Error() string {
	return fmt.Sprintf("payload: key %q not present", e.Key)
}

// TypeError reports a read of a present key whose declared type differs
// from the requested one.
type TypeError struct {
	Key  string
	Want Type
	Got  Type
}

func (e *TypeError) Error() string {
	return fmt.Sprintf("payload: key %q holds %s, read as %s", e.Key, e.Got, e.Want)
}
