// Package nightly runs the once-a-day jobs: restarting event sources that were
// stopped by their failure policy, and broadcasting a reload event to every
// dashboard. Each job runs at the next local midnight and then every 24 hours.
//
// Sources started by the Restarter are flagged as auto-started; a failure in
// such a run halts the source again until the following night.
package nightly
