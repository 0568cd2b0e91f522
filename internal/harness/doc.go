// Package harness runs marble tests: it owns the scheduler for a run,
// creates cold and hot sources from diagrams, materializes the streams under
// test and compares what they emitted with expected diagrams.
//
// # Writing a test in Go
//
//	h := harness.New()
//	harness.RunT(t, h, func(c *harness.Context) {
//	    src := c.Cold("-a-|", map[string]any{"a": 5})
//	    doubled := stream.Pipe(src, stream.Map(double))
//
//	    c.ExpectObservable(doubled).ToBe("-x-|", map[string]any{"x": 10})
//	    c.ExpectSubscriptions(src).ToBe("^--!")
//	})
//
// The driver function only declares things. Nothing is emitted until it
// returns and the run drains the scheduler; expectations are evaluated
// afterwards, in declaration order.
//
// # Scenario files
//
// The same test can be written as data, in YAML or CUE:
//
//	name: pipe_map
//	description: "map doubles every value"
//	sources:
//	  - name: source
//	    marbles: "-a-|"
//	    values: { a: 5 }
//	expectations:
//	  - name: doubled
//	    source: source
//	    pipe:
//	      - map: [{ from: 5, to: 10 }]
//	    marbles: "-x-|"
//	    values: { x: 10 }
//	subscriptions:
//	  - source: source
//	    marbles: ["^--!"]
//
// Source kinds are cold (default), hot and scheduled (items emitted at the
// subscribe tick). Pipe steps are delay, map, filter, error_on and
// switch_error.
//
// # Failures
//
// Run returns nil, a *Failures holding one *AssertionError per failed
// expectation, or a *RunError when the run could not finish, for example
// because a diagram does not parse. RunT reports these on a testing.TB.
//
// # Golden snapshots
//
// RunWithGolden stores the materialized frames and subscription logs of a
// scenario as canonical JSON under testdata/golden, so changes in timing
// show up as reviewable diffs.
package harness
