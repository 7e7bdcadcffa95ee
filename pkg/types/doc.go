// Package types defines the persisted resources of lookout: source instances,
// which bind a producer kind to an event id and frequency, and dashboards,
// whose widgets decide which event ids a scoped subscriber receives.
package types
