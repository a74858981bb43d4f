package types

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/gosuri/uilive"
)

// ParallelComparisonConfig extends the comparison configuration with the
// number of experiments allowed to run at once and the progress redraw
// frequency.
type ParallelComparisonConfig struct {
	ComparisonConfig
	Parallelism    int
	PrintFrequency int // seconds between progress redraws
}

// parallelUnit is one experiment together with its own analyzer instances,
// so concurrent experiments never share analyzer state.
type parallelUnit struct {
	exp       *Experiment
	analyzers map[string]Analyzer
	output    *ParallelOutput
}

// ParallelComparison runs its experiments concurrently, each with a live
// progress line on the terminal. Analyzers are built per experiment from
// factories; comparators still see the datasets in experiment order.
type ParallelComparison struct {
	units       []*parallelUnit
	factories   map[string]func() Analyzer
	comparators map[string]Comparator
	config      *ParallelComparisonConfig
	comparison  *Comparison // reuses the record directory layout
}

func NewParallelComparison(config *ParallelComparisonConfig) *ParallelComparison {
	if config.Parallelism <= 0 {
		config.Parallelism = 2
	}
	if config.PrintFrequency <= 0 {
		config.PrintFrequency = 1
	}
	return &ParallelComparison{
		units:       make([]*parallelUnit, 0),
		factories:   make(map[string]func() Analyzer),
		comparators: make(map[string]Comparator),
		config:      config,
		comparison:  NewComparison(&config.ComparisonConfig),
	}
}

// AddAnalysis registers an analyzer factory and the comparator for its
// datasets. Each experiment gets its own analyzer instance.
func (p *ParallelComparison) AddAnalysis(name string, factory func() Analyzer, comparator Comparator) {
	p.factories[name] = factory
	p.comparators[name] = comparator
}

func (p *ParallelComparison) AddExperiment(e *Experiment) {
	p.units = append(p.units, &parallelUnit{
		exp:    e,
		output: NewParallelOutput(),
	})
}

// Run executes the configured number of runs, each running every experiment
// once with at most Parallelism of them in flight.
func (p *ParallelComparison) Run(ctx context.Context) {
	outputs := make([]*ParallelOutput, len(p.units))
	for i, u := range p.units {
		outputs[i] = u.output
	}

	for run := 0; run < p.config.Runs; run++ {
		fmt.Printf("Run %d\n", run+1)

		for _, u := range p.units {
			u.analyzers = make(map[string]Analyzer, len(p.factories))
			for name, factory := range p.factories {
				u.analyzers[name] = factory()
			}
		}

		printer := NewTerminalPrinter(ctx, outputs, p.config.PrintFrequency)
		printer.Start()

		longestNameLen := 0
		for _, u := range p.units {
			if len(u.exp.Name) > longestNameLen {
				longestNameLen = len(u.exp.Name)
			}
		}

		sem := make(chan struct{}, p.config.Parallelism)
		var wg sync.WaitGroup
		for _, u := range p.units {
			wg.Add(1)
			go func(u *parallelUnit) {
				defer wg.Done()
				sem <- struct{}{}
				defer func() { <-sem }()

				u.output.Running = true
				rCfg := p.comparison.prepareRunConfig(ctx, run, longestNameLen, u.output)
				rCfg.Analyzers = rCfg.Analyzers[:0]
				for _, a := range u.analyzers {
					rCfg.Analyzers = append(rCfg.Analyzers, a)
				}
				u.exp.Run(rCfg)
				u.exp.Reset()
				u.output.Running = false
			}(u)
		}
		wg.Wait()
		printer.Stop()

		names := make([]string, len(p.units))
		datasets := make(map[string][]DataSet)
		for name := range p.factories {
			datasets[name] = make([]DataSet, len(p.units))
		}
		for i, u := range p.units {
			names[i] = u.exp.Name
			for name, a := range u.analyzers {
				datasets[name][i] = a.DataSet()
			}
		}
		for name, comp := range p.comparators {
			comp(run, p.config.Episodes, names, datasets[name])
		}
	}
}

// TERMINAL PRINTER

// TerminalPrinter redraws one line per running experiment in place.
type TerminalPrinter struct {
	parallelOutputs []*ParallelOutput
	ctx             context.Context
	printerCtx      context.Context
	printerCancel   context.CancelFunc
	frequency       int

	writer  *uilive.Writer
	writers []io.Writer
}

func NewTerminalPrinter(ctx context.Context, parallelOutputs []*ParallelOutput, frequency int) *TerminalPrinter {
	printerCtx, cancel := context.WithCancel(ctx)
	size := len(parallelOutputs)
	writers := make([]io.Writer, size)
	writer := uilive.New()
	for i := 0; i < size-1; i++ {
		writers[i] = writer.Newline()
	}

	return &TerminalPrinter{
		parallelOutputs: parallelOutputs,
		ctx:             ctx,
		printerCtx:      printerCtx,
		printerCancel:   cancel,
		frequency:       frequency,

		writer:  writer,
		writers: writers,
	}
}

func (p *TerminalPrinter) Start() {
	go func() {
		for {
			select {
			case <-p.printerCtx.Done():
				p.writer.Stop()
				return
			case <-p.ctx.Done():
				p.writer.Stop()
				return
			case <-time.After(time.Duration(p.frequency) * time.Second):
				p.print()
			}
		}
	}()
}

func (p *TerminalPrinter) Stop() {
	p.print() // final state
	p.printerCancel()
}

func (p *TerminalPrinter) print() {
	for i, output := range p.parallelOutputs {
		s := output.Get()
		if i == 0 {
			fmt.Fprint(p.writer, s+"\n")
		} else {
			fmt.Fprint(p.writers[i-1], s+"\n")
		}
	}
	p.writer.Flush()
}

// PARALLEL OUTPUT

// used to update and print experiment outputs
type ParallelOutput struct {
	mu        sync.Mutex
	printable string

	Running bool
}

func NewParallelOutput() *ParallelOutput {
	return &ParallelOutput{
		mu:        sync.Mutex{},
		printable: "",

		Running: false,
	}
}

// Set the output string (blocking)
func (p *ParallelOutput) Set(s string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.printable = s
}

// Try to set the output string (non-blocking)
func (p *ParallelOutput) TrySet(s string) bool {
	success := p.mu.TryLock()
	if success {
		defer p.mu.Unlock()
		p.printable = s
		return true
	}
	return false
}

// Get the output string (blocking)
func (p *ParallelOutput) Get() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.printable
}
