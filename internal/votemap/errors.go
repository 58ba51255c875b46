package votemap

import "fmt"

// PreconditionError reports a programmer error (spec §7): enabling the
// processor without weighting parameters configured, or any other call made
// out of the documented state-machine order.
type PreconditionError struct {
	Op     string
	Reason string
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("votemap: precondition violated calling %s: %s", e.Op, e.Reason)
}
