package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"text/tabwriter"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/spf13/cobra"

	"github.com/subhajitsr/data-assignment-SPH/internal/handler"
	"github.com/subhajitsr/data-assignment-SPH/internal/model"
	"github.com/subhajitsr/data-assignment-SPH/internal/router"
	"github.com/subhajitsr/data-assignment-SPH/internal/service"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one extract and load cycle",
	Args:  cobra.NoArgs,
	RunE:  runOnce,
}

var runFlags struct {
	dryRun bool
}

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Run a cycle at the top of every interval and serve health and metrics",
	Args:  cobra.NoArgs,
	RunE:  runSchedule,
}

var scheduleFlags struct {
	runAtStart bool
}

var loadCmd = &cobra.Command{
	Use:   "load <record-set> [file]",
	Short: "Re-run the staged load of one record set",
	Long: `Re-run the staged load of one record set from a file already in object
storage. The file is the name below the record set's stage, e.g.
video_data_1723100400.parquet. Without a file every file under the stage is
copied and Snowflake skips files already in its load history, so the file is
required for FULL record sets (channel_md).`,
	Args:      cobra.RangeArgs(1, 2),
	ValidArgs: []string{"channel_md", "channel_stats", "video_md", "video_stats"},
	RunE:      runLoad,
}

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Extract from the YouTube API and upload the Parquet files only",
	Args:  cobra.NoArgs,
	RunE:  runExtract,
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective pipeline configuration",
	Args:  cobra.NoArgs,
	RunE:  runConfig,
}

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recent load units from the run ledger",
	Args:  cobra.NoArgs,
	RunE:  runRuns,
}

var runsFlags struct {
	limit int
}

func init() {
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "Use in-memory storage and warehouse and print the SQL")
	scheduleCmd.Flags().BoolVar(&scheduleFlags.runAtStart, "run-at-start", false, "Run one cycle immediately")
	runsCmd.Flags().IntVarP(&runsFlags.limit, "limit", "n", 20, "Number of rows")

	rootCmd.AddCommand(runCmd, scheduleCmd, loadCmd, extractCmd, configCmd, runsCmd)
}

func runOnce(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx, need{store: true, warehouse: true, ledger: true, dryRun: runFlags.dryRun})
	if err != nil {
		return err
	}
	defer a.Close()

	extract, err := a.extractor(ctx)
	if err != nil {
		return err
	}
	report, err := a.newPipeline(extract).Run(ctx)
	a.printDryRun()
	return summarize(report, err)
}

func runSchedule(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx, need{store: true, warehouse: true, ledger: true})
	if err != nil {
		return err
	}
	defer a.Close()

	extract, err := a.extractor(ctx)
	if err != nil {
		return err
	}
	worker := service.NewPipelineWorker(a.newPipeline(extract), a.cache, a.cfg.ScheduleInterval, scheduleFlags.runAtStart, a.log)

	deps := []handler.Dependency{{Name: "warehouse", Check: a.wh.Ping, Required: true}}
	if rdb := a.cache.Client(); rdb != nil {
		deps = append(deps, handler.Dependency{Name: "redis", Check: func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}})
	} else {
		deps = append(deps, handler.Dependency{Name: "redis"})
	}
	h := &router.Handlers{}
	if a.runs != nil {
		deps = append(deps, handler.Dependency{Name: "ledger", Check: a.runs.Ping})
		h.Runs = handler.NewRunsHandler(a.runs)
	} else {
		deps = append(deps, handler.Dependency{Name: "ledger"})
	}
	h.Health = handler.NewHealthHandler(worker.Running, deps...)

	srv := fiber.New(fiber.Config{AppName: "ytload"})
	router.Setup(srv, h, a.reg, a.log)

	ln, err := net.Listen("tcp", ":"+a.cfg.Port)
	if err != nil {
		return fmt.Errorf("listen on :%s: %w", a.cfg.Port, err)
	}
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.Listener(ln, fiber.ListenConfig{DisableStartupMessage: true})
	}()
	a.log.Info().Str("port", a.cfg.Port).Msg("ops server listening")

	done := make(chan struct{})
	go func() {
		worker.Start(ctx)
		close(done)
	}()

	select {
	case <-done:
	case err = <-serveErr:
		worker.Stop()
		<-done
	}

	if shutdownErr := srv.ShutdownWithTimeout(10 * time.Second); shutdownErr != nil {
		a.log.Warn().Err(shutdownErr).Msg("ops server shutdown")
	}
	return err
}

func runLoad(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	rs, err := model.ParseRecordSet(args[0])
	if err != nil {
		return err
	}
	file := ""
	if len(args) == 2 {
		file = args[1]
	}

	a, err := newApp(ctx, need{store: true, warehouse: true, ledger: true})
	if err != nil {
		return err
	}
	defer a.Close()

	u, err := a.newPipeline(nil).LoadUnit(ctx, rs, file)
	if err != nil {
		return err
	}
	fmt.Printf("%s: %s in %s\n", u.RecordSet, u.Status, u.Duration.Round(time.Millisecond))
	return nil
}

func runExtract(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx, need{store: true})
	if err != nil {
		return err
	}
	defer a.Close()

	extract, err := a.extractor(ctx)
	if err != nil {
		return err
	}
	snap, err := extract.Extract(ctx, a.pipeline.Channels)
	if err != nil {
		return err
	}
	files, err := service.NewExportService(a.store, a.cfg.S3BasePrefix, a.log).Export(ctx, snap)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RECORD SET\tROWS\tKEY")
	for _, rs := range model.RecordSets {
		f := files[rs]
		fmt.Fprintf(tw, "%s\t%d\t%s\n", rs, f.Rows, f.Key)
	}
	return tw.Flush()
}

func runConfig(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd.Context(), need{})
	if err != nil {
		return err
	}
	defer a.Close()
	return a.pipeline.Encode(os.Stdout)
}

func runRuns(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx, need{ledger: true})
	if err != nil {
		return err
	}
	defer a.Close()
	if a.runs == nil {
		return errors.New("run ledger disabled: DATABASE_URL is not set")
	}

	runs, err := a.runs.Recent(ctx, runsFlags.limit)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tRECORD SET\tSTATUS\tSTARTED\tERROR")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", r.RunID, r.RecordSet, r.Status, r.StartedAt.Format(time.DateTime), r.Error)
	}
	return tw.Flush()
}
