package server

import "net"

// IPBlacklist rejects control connections from a static set of CIDR
// ranges, configured once at startup (SPEC_FULL.md Open Question (b)).
// Unlike the teacher's violation-tracking IPBanManager, nothing here
// is learned at runtime: an operator edits the server config and
// restarts.
type IPBlacklist struct {
	nets []*net.IPNet
}

// NewIPBlacklist parses cidrs, which must already have passed
// config.ServerConfig.Validate.
func NewIPBlacklist(cidrs []string) *IPBlacklist {
	b := &IPBlacklist{}
	for _, cidr := range cidrs {
		_, ipnet, err := net.ParseCIDR(cidr)
		if err != nil {
			continue
		}
		b.nets = append(b.nets, ipnet)
	}
	return b
}

// Blocked reports whether addr falls inside any blacklisted range.
func (b *IPBlacklist) Blocked(addr net.Addr) bool {
	host, _, err := net.SplitHostPort(addr.String())
	if err != nil {
		host = addr.String()
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return false
	}
	for _, ipnet := range b.nets {
		if ipnet.Contains(ip) {
			return true
		}
	}
	return false
}
