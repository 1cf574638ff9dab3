// Package cli wires the cobra command tree: run, build, publish, init,
// and create. Every pipeline command loads the manifest, hands it to
// the orchestrator, prints the per-job summary, and maps any failure
// to a non-zero process exit.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/airlift-cli/airlift/internal/logging"
	"github.com/airlift-cli/airlift/internal/manifest"
	"github.com/airlift-cli/airlift/internal/orchestrator"
	"github.com/airlift-cli/airlift/internal/scaffold"
	"github.com/airlift-cli/airlift/internal/tui"
)

// ErrRunFailed marks a run where at least one job failed. The commands
// return it so main can exit non-zero without reprinting anything; the
// summary already told the full story.
var ErrRunFailed = errors.New("cli: run failed")

type rootFlags struct {
	manifestPath string
	verbose      bool
	concurrency  int
	logFile      string
}

// New builds the airlift command tree.
func New() *cobra.Command {
	flags := &rootFlags{}
	root := &cobra.Command{
		Use:           "airlift",
		Short:         "Build and publish mobile app packages from a declarative manifest",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&flags.manifestPath, "manifest", "m", scaffold.DefaultManifestName, "path to the pipeline manifest")
	root.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "show debug output, including subprocess stdout")
	root.PersistentFlags().IntVar(&flags.concurrency, "concurrency", 1, "how many independent tasks may run at once")
	root.PersistentFlags().StringVar(&flags.logFile, "log-file", "", "mirror subprocess output to this file")

	root.AddCommand(
		newRunCmd(flags),
		newBuildCmd(flags),
		newPublishCmd(flags),
		newInitCmd(flags),
		newCreateCmd(flags),
	)
	return root
}

// Execute runs the command tree and returns the process exit code.
func Execute() int {
	if err := New().Execute(); err != nil {
		if !errors.Is(err, ErrRunFailed) {
			fmt.Fprintln(os.Stderr, "airlift:", err)
		}
		return 1
	}
	return 0
}

func newRunCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run every task in the manifest",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipeline(cmd.Context(), flags, orchestrator.Selection{}, orchestrator.PhaseAll)
		},
	}
}

func newBuildCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "build <key>",
		Short: "Run the build phase of one task or job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipeline(cmd.Context(), flags, orchestrator.Selection{Key: args[0]}, orchestrator.PhaseBuild)
		},
	}
}

func newPublishCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "publish <key>",
		Short: "Run the publish phase of one task or job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipeline(cmd.Context(), flags, orchestrator.Selection{Key: args[0]}, orchestrator.PhasePublish)
		},
	}
}

func newInitCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write a commented starter manifest",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := scaffold.WriteDefault(flags.manifestPath); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", flags.manifestPath)
			return nil
		},
	}
}

func newCreateCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "create",
		Short: "Build a manifest interactively",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			answers, err := tui.Collect()
			if err != nil {
				return err
			}
			if err := scaffold.WriteFromAnswers(flags.manifestPath, answers); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", flags.manifestPath)
			return nil
		},
	}
}

// runPipeline is the shared body of run/build/publish.
func runPipeline(parent context.Context, flags *rootFlags, sel orchestrator.Selection, phase orchestrator.Phase) error {
	logger := logging.NewConsole(flags.verbose)

	var sink *logging.FileSink
	if flags.logFile != "" {
		var err error
		sink, err = logging.NewFileSink(flags.logFile)
		if err != nil {
			return err
		}
		defer sink.Close()
	}

	m, err := manifest.Load(flags.manifestPath, manifest.WithLogger(logger))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	orch := orchestrator.New(orchestrator.Options{
		Logger:      logger,
		Sink:        sink,
		MaxParallel: flags.concurrency,
	})
	report, runErr := orch.Run(ctx, m, sel, phase)
	if report != nil {
		fmt.Fprintln(os.Stdout, renderReport(report))
	}
	if runErr != nil {
		return runErr
	}
	if report.Failed() {
		return ErrRunFailed
	}
	return nil
}
