package transport

import "strings"

// Capabilities describes the delivery guarantees of a record transport. The
// gateway's log defines total order; a transport without ordered delivery
// can reorder fan-out, which the subscriber manager repairs from the ring
// where possible.
type Capabilities struct {
	// GuaranteedOrder reports whether the transport preserves publish order
	// end to end for a single consumer.
	GuaranteedOrder bool
	// Persistent reports whether records survive a broker restart.
	Persistent bool
	// External reports whether records leave the process (the transport
	// doubles as an export stream).
	External bool
}

var capabilityIndex = map[string]Capabilities{
	"channel":  {GuaranteedOrder: true, Persistent: false, External: false},
	"nats":     {GuaranteedOrder: true, Persistent: false, External: true},
	"kafka":    {GuaranteedOrder: true, Persistent: true, External: true},
	"rabbitmq": {GuaranteedOrder: true, Persistent: true, External: true},
	"http":     {GuaranteedOrder: true, Persistent: false, External: true},
	"aws":      {GuaranteedOrder: false, Persistent: true, External: true},
}

// GetCapabilities returns the capabilities for a transport by name. Unknown
// names get the most conservative set.
func GetCapabilities(transportName string) Capabilities {
	name := strings.ToLower(transportName)
	if name == "" || name == "gochannel" {
		name = "channel"
	}
	if caps, ok := capabilityIndex[name]; ok {
		return caps
	}
	return Capabilities{}
}
