package container

import (
	"fmt"
	"sync"

	sqerrors "github.com/sqskit/sqskit-go/errors"
	"github.com/sqskit/sqskit-go/ports"
)

// ackCapability is the concrete ports.Acknowledgement handed to a
// listener. It is required under AcknowledgementConfig.Mode == MANUAL and
// is the only resolution path under NEVER; under the other modes
// Container.handle resolves from the handler's return value unless the
// handler already called Ack/Nack, in which case that first resolution
// stands. Double
// resolution is rejected regardless of mode, matching the teacher's
// treatment of a duplicate MQTT ack as a caller bug to surface rather
// than swallow.
type ackCapability struct {
	mu      sync.Mutex
	done    bool
	outcome func(ack bool)
}

var _ ports.Acknowledgement = (*ackCapability)(nil)

func (a *ackCapability) Ack() error  { return a.resolve(true) }
func (a *ackCapability) Nack() error { return a.resolve(false) }

func (a *ackCapability) resolve(ack bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.done {
		return sqerrors.Listener(fmt.Errorf("message already acknowledged"))
	}
	a.done = true
	a.outcome(ack)
	return nil
}

func (a *ackCapability) resolved() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.done
}
