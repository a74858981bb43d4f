package benchmarks

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/zeu5/building-rl-env/energy"
	"github.com/zeu5/building-rl-env/policies"
	"github.com/zeu5/building-rl-env/telemetry"
	"github.com/zeu5/building-rl-env/types"
	"gopkg.in/yaml.v3"
)

// comfortPolicy selects and parameterizes one policy of the comparison.
// Omitted parameters fall back to per-policy defaults.
type comfortPolicy struct {
	Name        string  `yaml:"name"`
	Label       string  `yaml:"label"`
	Alpha       float64 `yaml:"alpha"`
	Gamma       float64 `yaml:"gamma"`
	Epsilon     float64 `yaml:"epsilon"`
	Temperature float64 `yaml:"temperature"`
}

// comfortConfig is the YAML layout of the --config file.
type comfortConfig struct {
	Building         string          `yaml:"building"`
	Weather          string          `yaml:"weather"`
	Band             energy.Band     `yaml:"band"`
	Zones            []string        `yaml:"zones"`
	HoldSteps        int             `yaml:"hold_steps"`
	Parallelism      int             `yaml:"parallelism"`
	HeatingSchedule  string          `yaml:"heating_schedule"`
	CoolingSchedule  string          `yaml:"cooling_schedule"`
	HeatingSetpoints []float64       `yaml:"heating_setpoints"`
	CoolingMargin    float64         `yaml:"cooling_margin"`
	Policies         []comfortPolicy `yaml:"policies"`
}

func loadComfortConfig(path string) (*comfortConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	cfg := &comfortConfig{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if cfg.Building == "" {
		cfg.Building = defaultBuilding
	}
	if cfg.Weather == "" {
		cfg.Weather = defaultWeather
	}
	if cfg.Band.High <= cfg.Band.Low {
		return nil, fmt.Errorf("band wants low < high, got [%v, %v]", cfg.Band.Low, cfg.Band.High)
	}
	if len(cfg.Zones) == 0 {
		return nil, fmt.Errorf("config names no zones")
	}
	if cfg.HoldSteps <= 0 {
		cfg.HoldSteps = 3
	}
	if len(cfg.HeatingSetpoints) == 0 {
		cfg.HeatingSetpoints = []float64{16, 18, 20, 22, 24}
	}
	if cfg.CoolingMargin <= 0 {
		cfg.CoolingMargin = 4
	}
	if len(cfg.Policies) == 0 {
		cfg.Policies = []comfortPolicy{{Name: "random"}, {Name: "negfreq"}}
	}
	return cfg, nil
}

// buildPolicy constructs the named policy.
func buildPolicy(p comfortPolicy) (types.Policy, error) {
	switch p.Name {
	case "random":
		return types.NewRandomPolicy(), nil
	case "softmax":
		return policies.NewSoftMaxPolicy(orDefault(p.Alpha, 0.3), orDefault(p.Gamma, 0.7), orDefault(p.Temperature, 1)), nil
	case "egreedy":
		return policies.NewEpsilonGreedyPolicy(orDefault(p.Alpha, 0.1), orDefault(p.Gamma, 0.99), orDefault(p.Epsilon, 0.05)), nil
	case "negfreq":
		return policies.NewNegativeFrequencyPolicy(orDefault(p.Alpha, 0.3), orDefault(p.Gamma, 0.7), orDefault(p.Temperature, 1)), nil
	}
	return nil, fmt.Errorf("unknown policy %q", p.Name)
}

func orDefault(v, def float64) float64 {
	if v == 0 {
		return def
	}
	return v
}

// comfortMonitor accepts traces where the zone temperature reaches the
// band and holds it for holdSteps consecutive steps. Falling out of the
// band resets the count.
func comfortMonitor(idx int, band energy.Band, holdSteps int) *types.Monitor {
	inBand := types.MonitorCondition(func(_ types.State, _ types.Action, next types.State) bool {
		cs, ok := next.(*energy.ControlState)
		if !ok {
			return false
		}
		obs := cs.Observation()
		return idx >= 0 && idx < len(obs) && obs[idx] >= band.Low && obs[idx] <= band.High
	})

	m := types.NewMonitor()
	b := m.Build()
	for i := 1; i <= holdSteps; i++ {
		next := b.On(inBand, fmt.Sprintf("in_band_%d", i))
		next.On(inBand.Not(), types.InitState)
		b = next
	}
	b.MarkSuccess()
	return m
}

// Comfort runs the comfort-band property experiment described by the
// config file: every policy drives its own copy of the building and a
// monitor per zone counts the episodes where the zone settled in the band.
func Comfort(episodes, horizon int, saveFile string, runs int, configPath string, ctx context.Context) {
	cfg, err := loadComfortConfig(configPath)
	if err != nil {
		logrus.Fatalf("loading config: %v", err)
	}

	stack := &envStack{
		building:        cfg.Building,
		weather:         cfg.Weather,
		sections:        allSections(),
		heatingSchedule: cfg.HeatingSchedule,
		coolingSchedule: cfg.CoolingSchedule,
		maxSteps:        horizon,
		saveDir:         saveFile,
	}
	if err := stack.check(); err != nil {
		logrus.Fatalf("invalid setup: %v", err)
	}
	keys, err := stack.keys()
	if err != nil {
		logrus.Fatalf("resolving observation keys: %v", err)
	}

	reward := energy.ComfortReward(cfg.Band)
	actions := setpointActions(cfg.HeatingSetpoints, cfg.CoolingMargin)

	pub := telemetry.StartPublisher("comfort-benchmark")
	defer pub.Close()

	c := types.NewParallelComparison(&types.ParallelComparisonConfig{
		ComparisonConfig: types.ComparisonConfig{
			Runs:       runs,
			Episodes:   episodes,
			Horizon:    horizon,
			RecordPath: saveFile,
			Timeout:    5 * time.Minute,
			// record flags
			RecordTraces:  false,
			RecordReports: false,
			RecordPolicy:  true,
		},
		Parallelism:    cfg.Parallelism,
		PrintFrequency: 2,
	})
	c.AddAnalysis("Reward", func() types.Analyzer { return types.NewRewardAnalyzer() }, allOf(
		types.RewardPlotter(saveFile),
		types.RewardSummaryComparator(saveFile),
	))
	for _, zone := range cfg.Zones {
		idx := keyIndex(keys, "temperature/"+zone)
		if idx < 0 {
			logrus.Fatalf("zone %s has no temperature key in the resolved template", zone)
		}
		name := "Comfort-" + zone
		c.AddAnalysis(name, func() types.Analyzer {
			return types.NewMonitorAnalyzer(comfortMonitor(idx, cfg.Band, cfg.HoldSteps))
		}, types.MonitorPlotter(saveFile, name))
	}

	envs := make([]*energy.ControlEnvironment, 0, len(cfg.Policies))
	for _, p := range cfg.Policies {
		policy, err := buildPolicy(p)
		if err != nil {
			logrus.Fatalf("building policy: %v", err)
		}
		label := p.Label
		if label == "" {
			label = p.Name
		}
		env, err := stack.controlEnvironment(reward, actions, stepPublisher(pub, "buildings/comfort/"+label))
		if err != nil {
			logrus.Fatalf("building environment for %s: %v", label, err)
		}
		envs = append(envs, env)
		c.AddExperiment(types.NewExperiment(label, policy, env))
	}

	c.Run(ctx)

	for _, env := range envs {
		if err := env.Close(); err != nil {
			logrus.Errorf("closing environment: %v", err)
		}
	}
}

func ComfortCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "comfort",
		Short: "Run the comfort-band property experiment from a config file",
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

			Comfort(episodes, horizon, saveFile, runs, configPath, ctx)

			close(doneCh)
		},
	}
	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Experiment config file (yaml)")
	cmd.MarkPersistentFlagRequired("config")
	return cmd
}
