//go:build !windows

package cmd

import "errors"

func run(host string, opts *options) error {
	return errors.New("wping requires Windows: it pings through the iphlpapi ICMP helper driver")
}
