package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"golang.org/x/term"

	"github.com/ehamiter/arkv"
	"github.com/ehamiter/arkv/internal/config"
	"github.com/ehamiter/arkv/internal/setup"
	"github.com/ehamiter/arkv/internal/ui"
)

var (
	// Version information set at build time.
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var (
	setupFlag   bool
	interactive bool
	verbose     bool
	log         *logrus.Logger
)

func main() {
	log = logrus.New()
	log.SetOutput(os.Stderr)
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "arkv [path]",
	Short: "Archive files to remote servers via SFTP",
	Long: `arkv uploads a file or folder to one or more configured remote
destinations over SFTP. Destinations are managed with 'arkv setup'.`,
	Args:          cobra.MaximumNArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if verbose {
			log.SetLevel(logrus.DebugLevel)
		} else {
			log.SetLevel(logrus.WarnLevel)
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		if setupFlag {
			return runSetup()
		}
		if len(args) == 0 {
			return cmd.Help()
		}
		return runUpload(cmd.Context(), args[0])
	},
}

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Run the configuration wizard",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSetup()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("arkv %s\n", version)
		fmt.Printf("  commit: %s\n", commit)
		fmt.Printf("  built:  %s\n", date)
	},
}

func init() {
	rootCmd.Flags().BoolVar(&setupFlag, "setup", false, "re-run the setup wizard")
	rootCmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "select destination interactively")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")

	rootCmd.AddCommand(setupCmd)
	rootCmd.AddCommand(versionCmd)
}

func runSetup() error {
	wizard := setup.NewWizard(setup.NewDefaultPrompter(), os.Stdout)
	_, err := wizard.Run()
	return err
}

// loadConfig reads the configuration, running first-time setup when none
// exists yet.
func loadConfig() (*config.Config, error) {
	if !config.Exists() {
		fmt.Println("No configuration found. Running setup...")
		wizard := setup.NewWizard(setup.NewDefaultPrompter(), os.Stdout)
		return wizard.Run()
	}
	return config.Load()
}

func runUpload(parent context.Context, localPath string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if len(cfg.Destinations) == 0 {
		return fmt.Errorf("no destinations configured; run 'arkv setup' to add one")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	destinations := cfg.Destinations
	if interactive {
		chosen, err := selectDestination(cfg)
		if err != nil {
			return err
		}
		destinations = []config.Destination{chosen}
	}

	if len(destinations) > 1 {
		fmt.Printf("\nArchiving to %d destinations\n\n", len(destinations))
	} else {
		fmt.Printf("\nArchiving to %s (%s)\n\n", destinations[0].Name, destinations[0].Host)
	}

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Fancy rendering only works for one destination on a terminal;
	// concurrent uploads interleave, so they get prefixed line output.
	fancy := len(destinations) == 1 && term.IsTerminal(int(os.Stdout.Fd()))

	var (
		g         errgroup.Group
		mu        sync.Mutex
		summaries []string
		failed    bool
	)

	for _, d := range destinations {
		d := d
		g.Go(func() error {
			dest := cfg.Resolve(d)

			plan, err := arkv.BuildPlan(localPath, dest.RemoteBase)
			if err != nil {
				return fmt.Errorf("%s: %w", d.Name, err)
			}

			prefix := d.Name
			if fancy {
				prefix = ""
			}
			sink := ui.NewSink(os.Stdout, prefix, plan, fancy)

			sm := arkv.NewSessionManager(dest, arkv.WithSessionLogger(log))
			engine := arkv.NewEngine(sm, arkv.WithSink(sink), arkv.WithLogger(log))

			summary, err := engine.Execute(ctx, plan)
			if err != nil {
				return fmt.Errorf("upload to %s: %w", d.Name, err)
			}

			mu.Lock()
			summaries = append(summaries, ui.FormatSummary(d.Name, summary))
			if summary.HasFailures() {
				failed = true
			}
			mu.Unlock()

			fmt.Printf("Completed upload to %s\n", d.Name)
			return nil
		})
	}

	uploadErr := g.Wait()

	fmt.Println()
	for _, s := range summaries {
		fmt.Println(s)
	}

	if uploadErr != nil {
		return uploadErr
	}
	if ctx.Err() != nil {
		return fmt.Errorf("upload cancelled")
	}
	if failed {
		return fmt.Errorf("some entries failed to upload")
	}

	fmt.Println("\nDone.")
	return nil
}

func selectDestination(cfg *config.Config) (config.Destination, error) {
	labels := make([]string, len(cfg.Destinations))
	for i, d := range cfg.Destinations {
		labels[i] = fmt.Sprintf("%s (%s)", d.Name, d.Host)
	}

	prompter := setup.NewDefaultPrompter()
	idx, err := prompter.Select("Select destination", labels)
	if err != nil {
		return config.Destination{}, err
	}
	return cfg.Destinations[idx], nil
}
