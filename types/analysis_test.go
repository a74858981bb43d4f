package types

import (
	"encoding/json"
	"math"
	"os"
	"path"
	"testing"
)

func TestRewardAnalyzer(t *testing.T) {
	a := NewRewardAnalyzer()
	a.Analyze(0, 0, "exp", chainTrace([]string{"x", "y"}, []float64{1, 2}))
	a.Analyze(0, 1, "exp", chainTrace([]string{"x"}, []float64{-1}))

	ds, ok := a.DataSet().([]float64)
	if !ok {
		t.Fatalf("dataset has type %T", a.DataSet())
	}
	if len(ds) != 2 || ds[0] != 3 || ds[1] != -1 {
		t.Errorf("dataset %v, want [3 -1]", ds)
	}

	a.Reset()
	if ds := a.DataSet().([]float64); len(ds) != 0 {
		t.Errorf("dataset %v after reset", ds)
	}
}

func TestCoverageAnalyzer(t *testing.T) {
	a := NewCoverageAnalyzer("")

	// first episode covers s0, s1, s2; the second only revisits them
	a.Analyze(0, 0, "exp", chainTrace([]string{"x", "y"}, []float64{0, 0}))
	a.Analyze(0, 1, "exp", chainTrace([]string{"x"}, []float64{0}))

	ds, ok := a.DataSet().([]int)
	if !ok {
		t.Fatalf("dataset has type %T", a.DataSet())
	}
	if len(ds) != 2 || ds[0] != 3 || ds[1] != 3 {
		t.Errorf("dataset %v, want [3 3]", ds)
	}

	a.Reset()
	a.Analyze(0, 0, "exp", chainTrace([]string{"x"}, []float64{0}))
	if ds := a.DataSet().([]int); len(ds) != 1 || ds[0] != 2 {
		t.Errorf("dataset %v after reset, want [2]", ds)
	}
}

func TestCoverageAnalyzerRecordsVisitGraph(t *testing.T) {
	dir := path.Join(t.TempDir(), "coverage")
	a := NewCoverageAnalyzer(dir)
	a.Analyze(0, 0, "exp", chainTrace([]string{"x"}, []float64{0}))
	a.DataSet()

	bs, err := os.ReadFile(path.Join(dir, "visit_graph.json"))
	if err != nil {
		t.Fatalf("visit graph not recorded: %v", err)
	}
	var graph VisitGraph
	if err := json.Unmarshal(bs, &graph); err != nil {
		t.Fatalf("visit graph is not valid JSON: %v", err)
	}
	if len(graph.Nodes) != 2 {
		t.Errorf("recorded graph has %d nodes, want 2", len(graph.Nodes))
	}
}

func TestMonitorAnalyzer(t *testing.T) {
	m := NewMonitor()
	m.Build().On(sawAction("win"), "done").MarkSuccess()
	a := NewMonitorAnalyzer(m)

	a.Analyze(0, 0, "exp", chainTrace([]string{"win"}, []float64{0}))
	a.Analyze(0, 1, "exp", chainTrace([]string{"idle"}, []float64{0}))
	a.Analyze(0, 2, "exp", chainTrace([]string{"idle", "win"}, []float64{0, 0}))

	ds, ok := a.DataSet().([]int)
	if !ok {
		t.Fatalf("dataset has type %T", a.DataSet())
	}
	if len(ds) != 3 || ds[0] != 1 || ds[1] != 1 || ds[2] != 2 {
		t.Errorf("dataset %v, want [1 1 2]", ds)
	}
}

func TestRewardPlotterWritesChart(t *testing.T) {
	dir := path.Join(t.TempDir(), "plots")
	plotFn := RewardPlotter(dir)

	plotFn(0, 2, []string{"exp"}, []DataSet{[]float64{1, 2}})

	if _, err := os.Stat(path.Join(dir, "0_rewards.png")); err != nil {
		t.Errorf("reward chart not written: %v", err)
	}
}

func TestCoveragePlotterWritesChart(t *testing.T) {
	dir := path.Join(t.TempDir(), "plots")
	plotFn := CoveragePlotter(dir)

	plotFn(1, 2, []string{"exp"}, []DataSet{[]int{1, 3}})

	if _, err := os.Stat(path.Join(dir, "1_coverage.png")); err != nil {
		t.Errorf("coverage chart not written: %v", err)
	}
}

func TestMonitorPlotterWritesChart(t *testing.T) {
	dir := path.Join(t.TempDir(), "plots")
	plotFn := MonitorPlotter(dir, "comfort")

	plotFn(0, 2, []string{"exp"}, []DataSet{[]int{0, 1}})

	if _, err := os.Stat(path.Join(dir, "0_comfort.png")); err != nil {
		t.Errorf("monitor chart not written: %v", err)
	}
}

func TestRewardSummaryComparator(t *testing.T) {
	dir := path.Join(t.TempDir(), "summary")
	compare := RewardSummaryComparator(dir)

	compare(0, 2, []string{"exp"}, []DataSet{[]float64{1, 3}})

	bs, err := os.ReadFile(path.Join(dir, "0_reward_summary.json"))
	if err != nil {
		t.Fatalf("summary not written: %v", err)
	}
	var summary map[string]map[string]float64
	if err := json.Unmarshal(bs, &summary); err != nil {
		t.Fatalf("summary is not valid JSON: %v", err)
	}
	exp := summary["exp"]
	if math.Abs(exp["mean"]-2) > 1e-9 {
		t.Errorf("mean %v, want 2", exp["mean"])
	}
	if math.Abs(exp["std"]-math.Sqrt2) > 1e-9 {
		t.Errorf("std %v, want sqrt(2)", exp["std"])
	}
	if exp["episodes"] != 2 {
		t.Errorf("episodes %v, want 2", exp["episodes"])
	}
}
