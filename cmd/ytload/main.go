// Command ytload extracts YouTube channel and video statistics to object
// storage and loads them into Snowflake through staging tables.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "ytload",
	Short: "YouTube statistics staged loader",
	Long: `ytload pulls channel and video statistics from the YouTube Data API,
writes one Parquet file per record set to S3 and loads each file into
Snowflake: COPY into a staging table, then reconcile staging into the core
table by full replace or key-based merge.

Record sets: channel_md, channel_stats, video_md, video_stats.`,
	SilenceUsage: true,
}

var rootFlags struct {
	pipelineFile string
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&rootFlags.pipelineFile, "pipeline", "p", "", "Pipeline YAML file (overrides PIPELINE_CONFIG)")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
