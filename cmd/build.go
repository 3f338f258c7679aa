package cmd

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/conneroisu/jah/internal/build"
	"github.com/conneroisu/jah/internal/watcher"
)

var buildCmd = &cobra.Command{
	Use:     "build",
	Aliases: []string{"b"},
	Short:   "Write the project bundles and resources to the build directory",
	Long: `Bundle the project, the jah runtime and every declared library into script
bundles, mirror the public directory and copy remote resources. Every run
regenerates the whole build directory.

Examples:
  jah build                       # Build into ./build
  jah build --build-dir dist      # Build into ./dist
  jah build --watch               # Rebuild whenever a source changes`,
	RunE: runBuild,
}

func init() {
	rootCmd.AddCommand(buildCmd)

	buildCmd.Flags().StringP("build-dir", "o", "build", "build directory, relative to the project")
	buildCmd.Flags().BoolP("watch", "w", false, "rebuild when sources change")
}

func runBuild(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	p, err := loadProject()
	if err != nil {
		return err
	}

	metrics := build.NewBuildMetrics()
	b, err := buildOnce(ctx, cmd.OutOrStdout(), p, metrics)
	if err != nil {
		return err
	}
	if !viper.GetBool("watch") {
		return nil
	}

	return watchAndRebuild(ctx, cmd.OutOrStdout(), b, p, metrics)
}

// buildOnce runs a full build of p and prints its summary. The build is
// counted in metrics, which outlives the bundler.
func buildOnce(ctx context.Context, out io.Writer, p *project, metrics *build.BuildMetrics) (*build.Bundler, error) {
	buildDir, err := p.settings.BuildPath()
	if err != nil {
		metrics.RecordBuild(nil, 0, err)
		return nil, err
	}

	b, err := build.NewBundler(p.queue, build.Options{
		BuildDir: buildDir,
		Output:   p.fs,
		Logger:   p.logger,
		Metrics:  metrics,
	})
	if err != nil {
		metrics.RecordBuild(nil, 0, err)
		return nil, err
	}

	result, err := b.Build(ctx)
	if err != nil {
		return nil, err
	}
	printSummary(out, result)

	return b, nil
}

func printSummary(out io.Writer, result *build.Result) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	for _, a := range result.Bundles {
		fmt.Fprintf(w, "%s\t%s\t%s\n", a.Name, formatSize(a.Size), a.Path)
	}
	_ = w.Flush()
	fmt.Fprintf(out, "Built %d bundle(s), copied %d file(s) in %s\n",
		len(result.Bundles), len(result.Copies), result.Duration.Round(time.Millisecond))
}

// printTotals prints the counters of every build run by this process.
func printTotals(out io.Writer, metrics *build.BuildMetrics) {
	snap := metrics.GetSnapshot()
	fmt.Fprintf(out, "Builds: %d (%.0f%% successful), %d bundle(s), %s written, average %s\n",
		snap.TotalBuilds, metrics.GetSuccessRate(), snap.BundlesWritten,
		formatSize(snap.BytesWritten), snap.AverageDuration.Round(time.Millisecond))
}

func formatSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}

	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

// watchAndRebuild rebuilds the project whenever one of its source trees or
// its public directory changes, until ctx is done. The project is reloaded
// on each change so config edits are picked up.
func watchAndRebuild(ctx context.Context, out io.Writer, b *build.Bundler, p *project, metrics *build.BuildMetrics) error {
	buildDir, err := p.settings.BuildPath()
	if err != nil {
		return err
	}

	fw, err := watcher.NewFileWatcher(200*time.Millisecond, p.logger)
	if err != nil {
		return fmt.Errorf("file watcher: %w", err)
	}
	fw.AddFilter(watcher.NoHiddenFilter)
	fw.AddFilter(watcher.NoEditorTempFilter)
	fw.AddFilter(watcher.NotUnder(buildDir))
	fw.AddHandler(func(ctx context.Context, changes []watcher.ChangeEvent) error {
		p.logger.Info(ctx, "Sources changed, rebuilding", "files", len(changes))
		rebuild(ctx, out, p, metrics, loadProject)

		return nil
	})

	trees, err := b.Resolver().Trees()
	if err != nil {
		return err
	}
	roots := []string{p.queue.Primary().Root}
	for _, t := range trees {
		roots = append(roots, t.Dir)
	}
	for _, root := range roots {
		if err := fw.AddRecursive(root); err != nil {
			p.logger.Warn(ctx, err, "Unable to watch directory", "path", root)
		}
	}

	if err := fw.Start(ctx); err != nil {
		_ = fw.Stop()
		return err
	}
	p.logger.Info(ctx, "Watching for changes", "directories", len(fw.WatchList()))

	<-ctx.Done()

	return fw.Stop()
}

// rebuild reloads the project with load and builds it again. Failures are
// logged and counted; the totals are printed either way.
func rebuild(ctx context.Context, out io.Writer, p *project, metrics *build.BuildMetrics, load func() (*project, error)) {
	next, err := load()
	if err != nil {
		metrics.RecordBuild(nil, 0, err)
		p.logger.Error(ctx, err, "Reloading project failed")
	} else if _, err := buildOnce(ctx, out, next, metrics); err != nil {
		p.logger.Error(ctx, err, "Rebuild failed")
	}
	printTotals(out, metrics)
}
