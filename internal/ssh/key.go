package ssh

import "fmt"

// connectionKey computes the Pool's cache key for a direct connection:
// "host:port:user".
func connectionKey(host string, port int, user string) string {
	return fmt.Sprintf("%s:%d:%s", normalizeHost(host), port, user)
}

// tunneledKey computes the cache key for a session reached through a jump
// host: "via_jump/host:port:user".
func tunneledKey(host string, port int, user string) string {
	return "via_jump/" + connectionKey(host, port, user)
}

// jumpKey computes the cache key for the bastion session itself:
// "jump/host:port:user".
func jumpKey(host string, port int, user string) string {
	return "jump/" + connectionKey(host, port, user)
}
