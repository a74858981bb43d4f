package benchmarks

import (
	"context"
	"os"
	"os/signal"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/zeu5/building-rl-env/energy"
	"github.com/zeu5/building-rl-env/policies"
	"github.com/zeu5/building-rl-env/schema"
	"github.com/zeu5/building-rl-env/telemetry"
	"github.com/zeu5/building-rl-env/types"
)

// Crawlspace compares exploration policies end to end on the bundled
// three-zone house: thermal engine, bridge, gym environment and the agent
// machinery on top.
func Crawlspace(episodes, horizon int, saveFile string, runs int, building, weather string, ctx context.Context) {
	stack := &envStack{
		building: building,
		weather:  weather,
		sections: []section{
			schema.AutoAddTime,
			schema.AutoAddTemperature,
			schema.AutoAddSetpoints,
			schema.AutoAddEnergy,
		},
		maxSteps: horizon,
		saveDir:  saveFile,
	}
	if err := stack.check(); err != nil {
		logrus.Fatalf("invalid setup: %v", err)
	}
	keys, err := stack.keys()
	if err != nil {
		logrus.Fatalf("resolving observation keys: %v", err)
	}

	band := energy.Band{Low: 20, High: 24}
	reward := energy.EnergyReward(band, 1e-7)
	actions := setpointActions([]float64{16, 18, 20, 22, 24}, 4)

	pub := telemetry.StartPublisher("crawlspace-benchmark")
	defer pub.Close()

	c := types.NewComparison(&types.ComparisonConfig{
		Runs:       runs,
		Episodes:   episodes,
		Horizon:    horizon,
		RecordPath: saveFile,
		Timeout:    5 * time.Minute,
		// record flags
		RecordTraces:  false,
		RecordReports: false,
		RecordPolicy:  true,
	})
	c.AddAnalysis("Reward", types.NewRewardAnalyzer(), allOf(
		types.RewardPlotter(saveFile),
		types.RewardSummaryComparator(saveFile),
	))
	c.AddAnalysis("Coverage", types.NewCoverageAnalyzer(""), types.CoveragePlotter(saveFile))
	c.AddAnalysis("Comfort", types.NewViolationAnalyzer(saveFile,
		comfortViolations(keys, band, []string{"living_unit1"})...,
	), types.ViolationComparator(saveFile))

	experiments := []struct {
		name   string
		policy types.Policy
	}{
		{"Random", types.NewRandomPolicy()},
		{"SoftMax", policies.NewSoftMaxPolicy(0.3, 0.7, 1)},
		{"EpsilonGreedy", policies.NewEpsilonGreedyPolicy(0.1, 0.99, 0.05)},
	}
	envs := make([]*energy.ControlEnvironment, 0, len(experiments))
	for _, e := range experiments {
		env, err := stack.controlEnvironment(reward, actions, stepPublisher(pub, "buildings/crawlspace/"+e.name))
		if err != nil {
			logrus.Fatalf("building environment for %s: %v", e.name, err)
		}
		envs = append(envs, env)
		c.AddExperiment(types.NewExperiment(e.name, e.policy, env))
	}

	c.Run(ctx)

	for _, env := range envs {
		if err := env.Close(); err != nil {
			logrus.Errorf("closing environment: %v", err)
		}
	}
}

// comfortViolations flags traces where a zone leaves the comfort band,
// one violation per zone.
func comfortViolations(keys []string, band energy.Band, zones []string) []types.ViolationDesc {
	descs := make([]types.ViolationDesc, 0, len(zones))
	for _, zone := range zones {
		idx := keyIndex(keys, "temperature/"+zone)
		if idx < 0 {
			continue
		}
		name := zone + "_outside_band"
		descs = append(descs, types.ViolationDesc{
			Name: name,
			Check: func(t *types.Trace) (bool, int) {
				for step := 0; step < t.Len(); step++ {
					_, _, next, ok := t.Get(step)
					if !ok {
						continue
					}
					cs, ok := next.(*energy.ControlState)
					if !ok {
						continue
					}
					obs := cs.Observation()
					if idx < len(obs) && (obs[idx] < band.Low || obs[idx] > band.High) {
						return true, step
					}
				}
				return false, 0
			},
		})
	}
	return descs
}

func CrawlspaceCommand() *cobra.Command {
	var building string
	var weather string

	cmd := &cobra.Command{
		Use:   "crawlspace",
		Short: "Compare exploration policies on the bundled crawlspace house",
		Run: func(cmd *cobra.Command, args []string) {
			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, os.Interrupt)

			doneCh := make(chan struct{})

			ctx, cancel := context.WithCancel(context.Background())
			go func() {
				select {
				case <-sigCh:
				case <-doneCh:
				}
				cancel()
			}()

			Crawlspace(episodes, horizon, saveFile, runs, building, weather, ctx)

			close(doneCh)
		},
	}
	cmd.PersistentFlags().StringVar(&building, "building", defaultBuilding, "Building description file")
	cmd.PersistentFlags().StringVar(&weather, "weather", defaultWeather, "Hourly weather csv")
	return cmd
}
