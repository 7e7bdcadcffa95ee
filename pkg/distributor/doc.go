/*
Package distributor caches the latest event per id and fans events out to
subscriber connections.

# Cache

The cache holds one event per id. Data events always replace the entry. An
error event replaces it only when there is no entry, the entry is an error, or
the entry is a data event past its lifetime, so a transient failure never hides
a still valid value. Reload events are not cacheable and bypass the cache.

When a connection opens, expired data events are purged and every remaining
cached event that passes the delivery filter is queued for it.

# Delivery Filter

	non-cacheable event              deliver
	id outside the connection scope  drop
	error, cached entry is data      drop
	otherwise                        deliver

# Worker

A single goroutine drains a FIFO queue of (connection, event) tasks:

 1. skip the task if the connection closed or the event is older than the
    last error delivered to that connection for the same id
 2. wait for the connection's rate limiter, if any
 3. stamp the application id, encode and Send
 4. move the connection's other queued tasks to the back of the queue

Step 4 gives round-robin fairness across connections. Because there is one
worker, a heavily rate-limited connection delays every connection queued behind
it; the queue is unbounded. Send and encode errors are logged and counted, and
the worker moves on.

Per-connection state (rate limiter, last error timestamps) lives until
ConnectionClosed is called by the transport.
*/
package distributor
