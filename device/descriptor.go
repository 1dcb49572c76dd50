package device

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/kbukum/plcstream/errors"
)

// ProtocolModbus is the only protocol the client speaks.
const ProtocolModbus = "modbus"

var transports = map[string]bool{
	"tcp":        true,
	"udp":        true,
	"rtuovertcp": true,
	"rtuoverudp": true,
}

// Descriptor is a parsed connection descriptor.
type Descriptor struct {
	Protocol  string
	Transport string
	Host      string
	Port      int
}

// ParseDescriptor parses "<protocol>:<transport>://<host>:<port>".
func ParseDescriptor(s string) (Descriptor, error) {
	protocol, rest, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok || protocol == "" {
		return Descriptor{}, errors.InvalidAddress(s, "missing protocol")
	}
	protocol = strings.ToLower(protocol)
	if protocol != ProtocolModbus {
		return Descriptor{}, errors.InvalidAddress(s, fmt.Sprintf("unsupported protocol %q", protocol))
	}

	transport, hostport, ok := strings.Cut(rest, "://")
	if !ok {
		return Descriptor{}, errors.InvalidAddress(s, "missing transport")
	}
	transport = strings.ToLower(transport)
	if !transports[transport] {
		return Descriptor{}, errors.InvalidAddress(s, fmt.Sprintf("unsupported transport %q", transport))
	}

	host, portStr, err := net.SplitHostPort(hostport)
	if err != nil {
		return Descriptor{}, errors.InvalidAddress(s, "expected host:port").WithCause(err)
	}
	if host == "" {
		return Descriptor{}, errors.InvalidAddress(s, "missing host")
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port < 1 || port > 65535 {
		return Descriptor{}, errors.InvalidAddress(s, fmt.Sprintf("invalid port %q", portStr))
	}

	return Descriptor{Protocol: protocol, Transport: transport, Host: host, Port: port}, nil
}

// URL returns the transport URL understood by the Modbus library,
// e.g. "tcp://127.0.0.1:502".
func (d Descriptor) URL() string {
	return d.Transport + "://" + net.JoinHostPort(d.Host, strconv.Itoa(d.Port))
}

// String returns the descriptor in its original form.
func (d Descriptor) String() string {
	return d.Protocol + ":" + d.URL()
}
