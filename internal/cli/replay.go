package cli

import (
	"time"

	"github.com/spf13/cobra"
)

var (
	replayInterval time.Duration
	replayLoop     bool
)

var replayCmd = &cobra.Command{
	Use:   "replay <capture>",
	Short: "Replay a recorded capture through the pipeline",
	Long:  `Replay feeds a file of newline-delimited JSON through the same line, decode and filter stages as the live stream. With --loop the capture restarts each time it ends, exercising the reconnect path.`,
	Args:  cobra.ExactArgs(1),
	Run:   runReplay,
}

func init() {
	replayCmd.Flags().DurationVar(&replayInterval, "interval", 0, "delay between emitted lines (0 = as fast as possible)")
	replayCmd.Flags().BoolVar(&replayLoop, "loop", false, "restart the capture when it ends")
	rootCmd.AddCommand(replayCmd)
}

func runReplay(cmd *cobra.Command, args []string) {
	cfg := loadConfig(cmd)

	cfg.Replay.Path = args[0]
	if cmd.Flags().Changed("interval") {
		cfg.Replay.Interval = replayInterval
	}
	if cmd.Flags().Changed("loop") {
		cfg.Replay.Loop = replayLoop
	}

	run(controlConfig(cfg))
}
