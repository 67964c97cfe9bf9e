package port

import (
	"fmt"
)

const (
	// maxPort is the highest valid TCP/UDP port number.
	maxPort = 65535

	// searchWindow is how far above the preferred port Pick looks before
	// falling back to the dynamic range. 27017 → 27017..27116.
	searchWindow = 100

	// dynamicRangeStart and dynamicRangeEnd bound the IANA dynamic/private range.
	dynamicRangeStart = 49152
	dynamicRangeEnd   = 65535
)

// availabilityChecker is the subset of Scanner the Allocator needs.
type availabilityChecker interface {
	IsPortAvailable(port int, protocol string) bool
}

// Allocator picks a host TCP port, avoiding both ports in use on the host
// and ports reserved by other managed containers.
type Allocator struct {
	scanner  availabilityChecker
	reserved map[int]bool
}

// NewAllocator creates an Allocator backed by scanner.
func NewAllocator(scanner *Scanner) *Allocator {
	return &Allocator{scanner: scanner, reserved: make(map[int]bool)}
}

// Reserve marks ports as taken even if the OS reports them free. Stopped
// managed containers keep their published port; handing it out again would
// collide as soon as they restart.
func (a *Allocator) Reserve(ports ...int) {
	for _, p := range ports {
		a.reserved[p] = true
	}
}

// Pick returns preferred if it is free, otherwise the next free port within
// searchWindow above it, otherwise the first free port in the dynamic range.
func (a *Allocator) Pick(preferred int) (int, error) {
	if preferred < 1 || preferred > maxPort {
		return 0, fmt.Errorf("preferred port %d out of range (1-%d)", preferred, maxPort)
	}

	end := preferred + searchWindow - 1
	if end > maxPort {
		end = maxPort
	}
	for candidate := preferred; candidate <= end; candidate++ {
		if a.isFree(candidate) {
			return candidate, nil
		}
	}

	for candidate := dynamicRangeStart; candidate <= dynamicRangeEnd; candidate++ {
		if a.isFree(candidate) {
			return candidate, nil
		}
	}

	return 0, fmt.Errorf("no free tcp port near %d or in range %d-%d", preferred, dynamicRangeStart, dynamicRangeEnd)
}

func (a *Allocator) isFree(port int) bool {
	if a.reserved[port] {
		return false
	}
	return a.scanner.IsPortAvailable(port, "tcp")
}
