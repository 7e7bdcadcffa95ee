/*
Package source runs event producers on a fixed-delay schedule.

A Runner owns one Producer bound to one event id and frequency. Each iteration
opens a stats.Collector, calls Produce, and hands the result to a Publisher
(normally the distributor):

	success          -> stamp id and lifetime, Publish, reset failure count
	*Failure         -> Publish an error event, count the failure
	other error      -> Publish an error event, halt
	panic            -> same as other error

The lifetime stamped on events is three times the frequency unless the
producer implements LifetimeOverrider.

# Failure Policy

Policy is an explicit state machine with one counter:

	auto-started run fails          halt, counter unchanged
	counter > MaxConsecutiveFailures halt
	unexpected failure              halt

A halted runner reports StoppedBecauseOfError and calls RunnerConfig.OnHalt so
the owner can mark the source as not running. The nightly restarter later
starts it again with the auto-started flag set, and a failure during that run
halts it until the next night.

# Scheduling

The delay is measured from the end of one iteration to the start of the next,
so a slow producer never overlaps itself. Stop is cooperative: the loop exits
at the next iteration boundary and a running Produce call completes. TriggerNow
skips the remaining delay once.

	r := source.NewRunner(source.RunnerConfig{
		EventID:   "build-status",
		Frequency: 30 * time.Second,
		Producer:  producer,
		Publisher: dist,
		Stats:     tracker,
	})
	if err := r.Start(ctx); err != nil {
		return err
	}
	defer r.Wait()
	defer r.Stop()
*/
package source
