//go:build windows

package cmd

import (
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/icmpdrv/wping/core"
)

func run(host string, opts *options) error {
	ipaddr, err := net.ResolveIPAddr("ip", host)
	if err != nil {
		return fmt.Errorf("could not resolve %s: %w", host, err)
	}

	addr, err := core.AddressFromIP(ipaddr.IP)
	if err != nil {
		return fmt.Errorf("%s resolved to an unusable address %s: %w", host, ipaddr, err)
	}

	settings := core.DefaultSettings()
	settings.TTL = opts.ttl
	settings.DontFragment = opts.dontFragment
	settings.Timeout = opts.timeout
	settings.SlotCapacity = core.MinSlotCapacity() + opts.size
	settings.BlockOnExhaustion = true
	if opts.concurrent > 1 {
		settings.PoolSize = opts.concurrent
	}
	if opts.verbose {
		settings.LoggingLevel = uint32(logrus.DebugLevel)
	}

	pinger, err := core.NewPinger(settings)
	if err != nil {
		return err
	}
	defer pinger.Close()

	// Same repeating payload the classic ping uses.
	payload := make([]byte, opts.size)
	for i := range payload {
		payload[i] = byte('a' + i%23)
	}

	sigch := make(chan os.Signal, 1)
	signal.Notify(sigch, os.Interrupt, syscall.SIGTERM)

	stats := core.NewStatistics()
	stats.RunStarted()
	printOnStart(host, addr, len(payload))

	if opts.concurrent > 1 {
		runAsync(pinger, addr, payload, opts, stats, sigch)
	} else {
		runSync(pinger, addr, payload, opts, stats, sigch)
	}

	stats.RunEnded()
	printSummary(host, stats)
	return nil
}

// runSync sends one blocking request at a time, the classic ping loop.
func runSync(pinger *core.Pinger, addr core.Address, payload []byte, opts *options, stats *core.Statistics, sigch <-chan os.Signal) {
	for seq := 1; opts.count == 0 || seq <= opts.count; seq++ {
		stats.EchoRequested()
		reply, err := pinger.Ping(addr, payload)
		record(stats, seq, reply, err)

		if opts.count != 0 && seq == opts.count {
			return
		}
		select {
		case <-sigch:
			return
		case <-time.After(opts.interval):
		}
	}
}

// runAsync keeps up to the pool size of requests in flight; the blocking
// pool policy paces issuance once every slot is leased.
func runAsync(pinger *core.Pinger, addr core.Address, payload []byte, opts *options, stats *core.Statistics, sigch <-chan os.Signal) {
	var wg sync.WaitGroup
	var mu sync.Mutex // serializes output lines

	for seq := 1; opts.count == 0 || seq <= opts.count; seq++ {
		stats.EchoRequested()
		pending, err := pinger.PingAsync(addr, payload)
		if err != nil {
			record(stats, seq, nil, err)
		} else {
			wg.Add(1)
			go func(seq int) {
				defer wg.Done()
				reply, err := pending.Wait()
				mu.Lock()
				record(stats, seq, reply, err)
				mu.Unlock()
			}(seq)
		}

		if opts.count != 0 && seq == opts.count {
			break
		}
		select {
		case <-sigch:
			wg.Wait()
			return
		case <-time.After(opts.interval):
		}
	}
	wg.Wait()
}

func record(stats *core.Statistics, seq int, reply *core.EchoReply, err error) {
	switch {
	case err == nil:
		stats.EchoReplied(reply.RTT)
		printReply(seq, reply)
	case errors.Is(err, core.ErrTimeout):
		stats.EchoTimedOut()
		printFailure(seq, err)
	default:
		stats.EchoFailed()
		printFailure(seq, err)
	}
}
