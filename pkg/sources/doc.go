/*
Package sources implements the built-in event producers.

Each producer kind has a Factory that turns a types.SourceInstance into a
source.Producer, validating the instance properties up front:

	http   download a URL; json bodies are published as-is, text bodies as {text, status}
	sql    run a scalar query through database/sql (pgx or sqlite driver)
	redis  read a key, or a field of an INFO section
	clock  publish the current time in a zone
	tcp    dial an address and publish the connect time

Transient problems (network errors, bad status codes, failing queries) are
returned as *source.Failure so the runner counts them toward the failure
threshold. Producers that hold connections implement io.Closer; the manager
closes them when the source stops.
*/
package sources
