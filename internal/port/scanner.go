package port

import (
	"fmt"
	"net"
)

// Scanner checks whether specific ports are available on the host machine.
//
// It binds the port and immediately releases it. This is more reliable than
// parsing /proc/net/* or shelling out to lsof/ss, which may need elevated
// permissions.
type Scanner struct{}

// NewScanner creates a new Scanner instance.
func NewScanner() *Scanner {
	return &Scanner{}
}

// IsPortAvailable checks whether a single port is free on the host machine.
//
// We bind to all interfaces (":port") because both Docker-published ports and
// the portal's own HTTP server listen on 0.0.0.0.
func (s *Scanner) IsPortAvailable(port int, protocol string) bool {
	if port < 1 || port > maxPort {
		return false
	}
	addr := fmt.Sprintf(":%d", port)

	switch protocol {
	case "tcp", "":
		listener, err := net.Listen("tcp", addr)
		if err != nil {
			return false
		}
		_ = listener.Close()
		return true

	case "udp":
		conn, err := net.ListenPacket("udp", addr)
		if err != nil {
			return false
		}
		_ = conn.Close()
		return true

	default:
		// Unknown protocol; fail safe.
		return false
	}
}

// FindAvailablePort returns the first available port in [startPort, endPort].
func (s *Scanner) FindAvailablePort(startPort, endPort int, protocol string) (int, error) {
	for port := startPort; port <= endPort; port++ {
		if s.IsPortAvailable(port, protocol) {
			return port, nil
		}
	}
	return 0, fmt.Errorf("no available %s port found in range %d-%d", protocol, startPort, endPort)
}
