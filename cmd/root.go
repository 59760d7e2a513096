package cmd

import (
	"time"

	"github.com/spf13/cobra"
)

type options struct {
	count        int
	interval     time.Duration
	timeout      time.Duration
	ttl          int
	size         int
	concurrent   int
	dontFragment bool
	verbose      bool
}

var opts options

var rootCmd = &cobra.Command{
	Use:   "wping <host>",
	Short: "wping pings through the Windows ICMP helper driver",
	Long: "wping is a ping utility that uses the iphlpapi ICMP helper driver,\n" +
		"so it needs no raw sockets and no administrative privileges.",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		return run(args[0], &opts)
	},
}

func init() {
	flags := rootCmd.Flags()
	flags.IntVarP(&opts.count, "count", "c", 4, "number of echo requests to send, 0 for unlimited")
	flags.DurationVarP(&opts.interval, "interval", "i", time.Second, "interval between requests")
	flags.DurationVarP(&opts.timeout, "timeout", "W", 2*time.Second, "time to wait for each reply")
	flags.IntVarP(&opts.ttl, "ttl", "t", 255, "IP Time to Live")
	flags.IntVarP(&opts.size, "size", "s", 32, "payload size in bytes")
	flags.IntVarP(&opts.concurrent, "concurrent", "a", 1, "pipeline depth; above 1 requests are sent asynchronously")
	flags.BoolVarP(&opts.dontFragment, "dont-fragment", "f", false, "set the IP Don't Fragment bit")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "verbose engine logging")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
