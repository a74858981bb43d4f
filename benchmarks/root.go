package benchmarks

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	episodes int
	horizon  int
	saveFile string
	runs     int
	logLevel string
)

func GetRootCommand() *cobra.Command {
	rootCommand := &cobra.Command{
		Use:           "building-rl-env",
		Short:         "Reinforcement learning experiments over simulated buildings",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level, err := logrus.ParseLevel(logLevel)
			if err != nil {
				return fmt.Errorf("parsing log level: %w", err)
			}
			logrus.SetLevel(level)
			return nil
		},
	}
	rootCommand.PersistentFlags().IntVarP(&episodes, "episodes", "e", 500, "Number of episodes to run")
	rootCommand.PersistentFlags().IntVar(&horizon, "horizon", 48, "Horizon of each episode")
	rootCommand.PersistentFlags().StringVarP(&saveFile, "save", "s", "results", "Save the result data in the specified folder")
	rootCommand.PersistentFlags().IntVar(&runs, "runs", 1, "Number of experiment runs")
	rootCommand.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (panic, fatal, error, warn, info, debug, trace)")
	// adding the subcommands here
	rootCommand.AddCommand(CrawlspaceCommand())
	rootCommand.AddCommand(ComfortCommand())
	rootCommand.AddCommand(EndpointsCommand())
	rootCommand.AddCommand(ExploreCommand())
	rootCommand.AddCommand(SchemaCommand())
	return rootCommand
}
