// Package port probes host ports and picks a free host port for the
// local development database.
//
// The Scanner asks the OS directly via net.Listen/net.ListenPacket. The
// Allocator layers reserved ports on top (ports recorded on stopped managed
// containers, which the OS would report as free) and searches upward from
// a preferred port before falling back to the IANA dynamic range.
package port
