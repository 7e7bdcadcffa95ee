/*
Package stats records the run history of event sources.

Every source iteration opens a Collector, optionally times named actions
inside the run, and finalizes the run exactly once with Success or Failure.
The resulting RunRecord is appended to the source's EventSourceStatistics,
which keeps the last MaxRunHistory records plus the latest successful and
latest failed run.

	collector := tracker.CreateCollector("build-status")
	action := collector.StartAction("download", url)
	body, err := fetch(url)
	action.Done()
	if err != nil {
		collector.Failure("download failed", err)
		return
	}
	collector.Success()

Statistics for one source are written by one iteration at a time and read by
diagnostics handlers concurrently; each EventSourceStatistics guards its state
with its own mutex.

The AutoStarted flag is set when the nightly restarter revives a source. It is
copied into each RunRecord and read by the source failure policy.
*/
package stats
