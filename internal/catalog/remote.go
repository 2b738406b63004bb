package catalog

import "strings"

// IsRemoteSpec reports whether a driver specification names a remote
// driver in driver@host[:port] form rather than a catalog label.
func IsRemoteSpec(spec string) bool {
	return strings.Contains(spec, "@")
}

// SplitRemoteSpec splits a remote driver spec into its driver and
// host[:port] halves. The driver half may be empty ("@host" requests
// all drivers on the remote server).
func SplitRemoteSpec(spec string) (driver, host string) {
	driver, host, _ = strings.Cut(spec, "@")
	return driver, host
}
