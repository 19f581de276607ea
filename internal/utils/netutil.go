package utils

import (
	"net"
	"strconv"
	"time"
)

// PortInUse reports whether something already accepts TCP connections on host:port.
func PortInUse(host string, port int) bool {
	if host == "" {
		host = "localhost"
	}
	conn, err := net.DialTimeout("tcp", net.JoinHostPort(host, strconv.Itoa(port)), 300*time.Millisecond)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}
