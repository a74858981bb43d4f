package types

import (
	"encoding/json"
	"fmt"
	"os"
	"path"
	"strconv"
)

// ViolationDesc is a named property violation detectable on a trace. Check
// returns whether the trace violates the property and at which step.
type ViolationDesc struct {
	Name  string
	Check func(*Trace) (bool, int)
}

// ViolationAnalyzer checks every trace against the given violations and
// remembers the first episode each one showed up in. Violating traces are
// recorded for inspection.
type ViolationAnalyzer struct {
	savePath        string
	violations      []ViolationDesc
	firstOccurrence map[string]int
}

var _ Analyzer = &ViolationAnalyzer{}

func NewViolationAnalyzer(savePath string, violations ...ViolationDesc) *ViolationAnalyzer {
	os.MkdirAll(savePath, 0777)
	return &ViolationAnalyzer{
		savePath:        savePath,
		violations:      violations,
		firstOccurrence: make(map[string]int),
	}
}

func (v *ViolationAnalyzer) Analyze(run int, episode int, experiment string, t *Trace) {
	for _, desc := range v.violations {
		found, step := desc.Check(t)
		if !found {
			continue
		}
		if _, ok := v.firstOccurrence[desc.Name]; !ok {
			v.firstOccurrence[desc.Name] = episode
		}
		tracePath := path.Join(v.savePath,
			strconv.Itoa(run)+"_"+experiment+"_"+desc.Name+"_ep"+strconv.Itoa(episode)+"_step"+strconv.Itoa(step)+".json")
		t.Record(tracePath)
	}
}

func (v *ViolationAnalyzer) DataSet() DataSet {
	out := make(map[string]int, len(v.firstOccurrence))
	for name, ep := range v.firstOccurrence {
		out[name] = ep
	}
	return out
}

func (v *ViolationAnalyzer) Reset() {
	v.firstOccurrence = make(map[string]int)
}

// ViolationComparator prints the first occurrence of every violation per
// experiment and records the table as JSON.
func ViolationComparator(savePath string) Comparator {
	if _, err := os.Stat(savePath); err != nil {
		os.MkdirAll(savePath, os.ModePerm)
	}
	return func(run int, _ int, s []string, ds []DataSet) {
		data := make(map[string]map[string]int)
		for i, exp := range s {
			occurrences, ok := ds[i].(map[string]int)
			if !ok {
				continue
			}
			fmt.Printf("For run:%d, experiment: %s\n", run, exp)
			for name, ep := range occurrences {
				fmt.Printf("\tViolation: %s, first episode: %d\n", name, ep)
			}
			data[exp] = occurrences
		}

		bs, err := json.Marshal(data)
		if err == nil {
			os.WriteFile(path.Join(savePath, strconv.Itoa(run)+"_violations.json"), bs, 0644)
		}
	}
}
