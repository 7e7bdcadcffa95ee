/*
Package manager owns the configured event sources and dashboards of a lookout
node.

The Manager persists SourceInstances and Dashboards through a storage.Store and
turns an enabled source into a running source.Runner: the producer is built by
the sources.Registry, and events flow to the distributor through the Publisher
interface.

# Lifecycle

	SaveSource   validate, build a probe producer, persist; restart if running
	StartSource  enabled and not running: build the producer, start a Runner
	StopSource   stop the Runner and wait for its in-flight iteration
	DeleteSource stop, remove from the store, the cache and the statistics

A Runner halted by its failure policy stays registered in the halted state,
so its verdict stays visible in Status until the next start. The nightly
restarter calls Start with autoStarted set; the Manager records the flag in
the statistics before the Runner is created.

Lifecycle notifications (source.started, source.halted, ...) are published on
the events.Broker when one is configured.

# Dashboards

Dashboards are cached in memory and written through to the store. ScopeFor
returns a distributor.Scope that reads the dashboard's widget set at every
check, so dashboard edits take effect for connections that are already open.
*/
package manager
