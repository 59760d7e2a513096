package cmd

import (
	"fmt"
	"time"

	"github.com/icmpdrv/wping/core"
)

func printOnStart(host string, addr core.Address, size int) {
	fmt.Printf("PING %s (%s) with %d bytes of data\n", host, addr, size)
}

func printReply(seq int, reply *core.EchoReply) {
	if reply.TTL > 0 {
		fmt.Printf("%d bytes from %s: icmp_seq=%d ttl=%d time=%s\n",
			len(reply.Data), reply.From, seq, reply.TTL, reply.RTT)
		return
	}
	fmt.Printf("%d bytes from %s: icmp_seq=%d time=%s\n",
		len(reply.Data), reply.From, seq, reply.RTT)
}

func printFailure(seq int, err error) {
	fmt.Printf("icmp_seq=%d %v\n", seq, err)
}

func printSummary(host string, stats *core.Statistics) {
	fmt.Println()
	fmt.Printf("--- %s ping statistics ---\n", host)

	var total string
	if start, ok := stats.GetStartTime(); ok {
		if end, ok := stats.GetEndTime(); ok {
			total = fmt.Sprintf(", time %s", end.Sub(start).Round(time.Millisecond))
		}
	}

	fmt.Printf("%d packets transmitted, %d received, %.0f%% packet loss%s\n",
		stats.GetTotalSent(), stats.GetTotalRecv(), stats.GetPktLoss()*100, total)

	if stats.GetTotalRecv() > 0 {
		fmt.Printf("rtt min/avg/max/mdev = %d/%d/%d/%d ms\n",
			stats.GetRTTMin(), stats.GetRTTAvg(), stats.GetRTTMax(), stats.GetRTTMDev())
	}
}
