// Package harness runs a conformance suite against the program under test.
//
// The harness launches every fixture concurrently, compares each run's merged
// output against the fixture's annotations, and writes a compact report:
//
//	..!.
//	6
//
// One marker per completed run ('.' pass, '!' fail) in completion order, a
// line break, then the raw actual output of every failing run, each followed
// by a newline, also in completion order.
//
// # Shared State
//
// The Aggregator is the only mutable state shared between runs. Runs post
// their results on a channel drained by a single collector, and every
// mutation goes through Aggregator.Record under one lock, so the completed
// count reaches the fixture count exactly once and the report is written
// exactly once.
//
// # Limitations
//
// By default there is no concurrency cap and no timeout: a hung child stalls
// the report. Use runner.WithTimeout and WithConcurrency to opt in.
//
// # Usage
//
//	fixtures, err := fixture.Discover("test", fixture.DefaultExtension)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	h := harness.New(runner.New("node", []string{"dorp.js"}),
//	    harness.WithProgress(os.Stdout),
//	)
//	summary, err := h.Run(ctx, fixtures)
package harness
