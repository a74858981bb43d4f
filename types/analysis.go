package types

import (
	"encoding/json"
	"fmt"
	"os"
	"path"
	"strconv"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

// RewardAnalyzer collects the total reward of every episode.
type RewardAnalyzer struct {
	rewards []float64
}

var _ Analyzer = &RewardAnalyzer{}

func NewRewardAnalyzer() *RewardAnalyzer {
	return &RewardAnalyzer{rewards: make([]float64, 0)}
}

func (r *RewardAnalyzer) Analyze(_ int, _ int, _ string, t *Trace) {
	r.rewards = append(r.rewards, t.TotalReward())
}

func (r *RewardAnalyzer) DataSet() DataSet {
	out := make([]float64, len(r.rewards))
	copy(out, r.rewards)
	return out
}

func (r *RewardAnalyzer) Reset() {
	r.rewards = make([]float64, 0)
}

// CoverageAnalyzer tracks how many distinct states each experiment has
// visited after every episode, backed by a visit graph.
type CoverageAnalyzer struct {
	graph      *VisitGraph
	perEpisode []int
	recordPath string // when set, the visit graph is recorded on DataSet
}

var _ Analyzer = &CoverageAnalyzer{}

// NewCoverageAnalyzer returns a coverage analyzer. recordPath may be empty
// to skip recording the visit graph.
func NewCoverageAnalyzer(recordPath string) *CoverageAnalyzer {
	return &CoverageAnalyzer{
		graph:      NewVisitGraph(),
		perEpisode: make([]int, 0),
		recordPath: recordPath,
	}
}

func (c *CoverageAnalyzer) Analyze(_ int, _ int, _ string, t *Trace) {
	for i := 0; i < t.Len(); i++ {
		s, a, ns, _ := t.Get(i)
		c.graph.Update(s, a, ns)
	}
	c.perEpisode = append(c.perEpisode, c.graph.Len())
}

func (c *CoverageAnalyzer) DataSet() DataSet {
	if c.recordPath != "" {
		os.MkdirAll(c.recordPath, 0777)
		c.graph.Record(path.Join(c.recordPath, "visit_graph.json"))
	}
	out := make([]int, len(c.perEpisode))
	copy(out, c.perEpisode)
	return out
}

func (c *CoverageAnalyzer) Reset() {
	c.graph = NewVisitGraph()
	c.perEpisode = make([]int, 0)
}

// MonitorAnalyzer counts the episodes whose trace satisfies the monitor.
type MonitorAnalyzer struct {
	monitor   *Monitor
	satisfied []int
	count     int
}

var _ Analyzer = &MonitorAnalyzer{}

func NewMonitorAnalyzer(monitor *Monitor) *MonitorAnalyzer {
	return &MonitorAnalyzer{
		monitor:   monitor,
		satisfied: make([]int, 0),
	}
}

func (m *MonitorAnalyzer) Analyze(_ int, _ int, _ string, t *Trace) {
	if _, ok := m.monitor.Check(t); ok {
		m.count += 1
	}
	m.satisfied = append(m.satisfied, m.count)
}

func (m *MonitorAnalyzer) DataSet() DataSet {
	out := make([]int, len(m.satisfied))
	copy(out, m.satisfied)
	return out
}

func (m *MonitorAnalyzer) Reset() {
	m.satisfied = make([]int, 0)
	m.count = 0
}

// RewardPlotter plots the per-episode rewards of every experiment on one
// chart per run.
func RewardPlotter(plotPath string) Comparator {
	if _, err := os.Stat(plotPath); err != nil {
		os.MkdirAll(plotPath, os.ModePerm)
	}
	return func(run int, _ int, s []string, ds []DataSet) {
		p := plot.New()
		p.Title.Text = "Episode reward"
		p.X.Label.Text = "Episode"
		p.Y.Label.Text = "Total reward"
		for i := 0; i < len(s); i++ {
			rewards, ok := ds[i].([]float64)
			if !ok || len(rewards) == 0 {
				continue
			}
			points := make(plotter.XYs, len(rewards))
			for j, v := range rewards {
				points[j] = plotter.XY{X: float64(j), Y: v}
			}
			line, err := plotter.NewLine(points)
			if err != nil {
				continue
			}
			line.Color = plotutil.Color(i)
			p.Add(line)
			p.Legend.Add(s[i], line)
		}
		p.Save(8*vg.Inch, 8*vg.Inch, path.Join(plotPath, strconv.Itoa(run)+"_rewards.png"))
	}
}

// CoveragePlotter plots the cumulative number of unique states per episode.
func CoveragePlotter(plotPath string) Comparator {
	if _, err := os.Stat(plotPath); err != nil {
		os.MkdirAll(plotPath, os.ModePerm)
	}
	return func(run int, _ int, s []string, ds []DataSet) {
		p := plot.New()
		p.Title.Text = "State coverage"
		p.X.Label.Text = "Episode"
		p.Y.Label.Text = "States covered"
		for i := 0; i < len(s); i++ {
			uniqueStates, ok := ds[i].([]int)
			if !ok || len(uniqueStates) == 0 {
				continue
			}
			points := make(plotter.XYs, len(uniqueStates))
			for j, v := range uniqueStates {
				points[j] = plotter.XY{X: float64(j), Y: float64(v)}
			}
			line, err := plotter.NewLine(points)
			if err != nil {
				continue
			}
			line.Color = plotutil.Color(i)
			p.Add(line)
			p.Legend.Add(s[i], line)
			fmt.Printf("Number of unique states: %d for experiment: %s\n", uniqueStates[len(uniqueStates)-1], s[i])
		}
		p.Save(8*vg.Inch, 8*vg.Inch, path.Join(plotPath, strconv.Itoa(run)+"_coverage.png"))
	}
}

// MonitorPlotter plots how many episodes had satisfied the named property
// after each episode.
func MonitorPlotter(plotPath string, property string) Comparator {
	if _, err := os.Stat(plotPath); err != nil {
		os.MkdirAll(plotPath, os.ModePerm)
	}
	return func(run int, _ int, s []string, ds []DataSet) {
		p := plot.New()
		p.Title.Text = property
		p.X.Label.Text = "Episode"
		p.Y.Label.Text = "Episodes satisfying property"
		for i := 0; i < len(s); i++ {
			satisfied, ok := ds[i].([]int)
			if !ok || len(satisfied) == 0 {
				continue
			}
			points := make(plotter.XYs, len(satisfied))
			for j, v := range satisfied {
				points[j] = plotter.XY{X: float64(j), Y: float64(v)}
			}
			line, err := plotter.NewLine(points)
			if err != nil {
				continue
			}
			line.Color = plotutil.Color(i)
			p.Add(line)
			p.Legend.Add(s[i], line)
			fmt.Printf("Property %s satisfied in %d/%d episodes for experiment: %s\n", property, satisfied[len(satisfied)-1], len(satisfied), s[i])
		}
		p.Save(8*vg.Inch, 8*vg.Inch, path.Join(plotPath, strconv.Itoa(run)+"_"+property+".png"))
	}
}

// RewardSummaryComparator prints the mean and standard deviation of the
// episode rewards per experiment and records them as JSON.
func RewardSummaryComparator(savePath string) Comparator {
	if _, err := os.Stat(savePath); err != nil {
		os.MkdirAll(savePath, os.ModePerm)
	}
	return func(run int, _ int, s []string, ds []DataSet) {
		summary := make(map[string]map[string]float64)
		for i, name := range s {
			rewards, ok := ds[i].([]float64)
			if !ok || len(rewards) == 0 {
				continue
			}
			mean, std := stat.MeanStdDev(rewards, nil)
			fmt.Printf("Experiment %s: reward mean %.3f, std %.3f over %d episodes\n", name, mean, std, len(rewards))
			summary[name] = map[string]float64{
				"mean":     mean,
				"std":      std,
				"episodes": float64(len(rewards)),
			}
		}
		bs, err := json.Marshal(summary)
		if err != nil {
			return
		}
		os.WriteFile(path.Join(savePath, strconv.Itoa(run)+"_reward_summary.json"), bs, 0644)
	}
}
