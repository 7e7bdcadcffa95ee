/*
Package api serves lookout over HTTP with gin.

# Control API

	GET    /api/sources                 status of every source
	POST   /api/sources                 create or update a source
	GET    /api/sources/:id             status of one source
	PUT    /api/sources/:id             create or update a source
	DELETE /api/sources/:id             stop and delete a source
	POST   /api/sources/:id/:action     start, stop, restart, trigger, enable, disable
	GET    /api/events                  cached events
	GET    /api/dashboards              all dashboards
	POST   /api/dashboards              create or update a dashboard
	GET    /api/dashboards/:id          one dashboard
	PUT    /api/dashboards/:id          create or update a dashboard
	DELETE /api/dashboards/:id          delete a dashboard

Manager errors map to status codes: not found is 404; starting a disabled or
running source, and stopping or triggering an idle one, is 409.

With Config.ReadOnly set, every non-GET request under /api is rejected with 403.

# Push Endpoints

	GET /events   Server-Sent Events
	GET /ws       WebSocket

Both accept ?dashboard=<id> to restrict the stream to the dashboard's sources
and ?rate=<events per second> to override the default rate limit. Cached
events are replayed when the connection opens.

# Probes

/health, /ready and /live report the component registry of the metrics
package; /metrics serves Prometheus metrics.
*/
package api
