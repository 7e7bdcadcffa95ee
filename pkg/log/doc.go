/*
Package log provides structured logging for Lookout using zerolog.

The package wraps a single global zerolog.Logger with helpers that attach the
fields Lookout components care about: the component name, the event id a
source is bound to, and the subscriber connection id.

# Configuration

	log.Init(log.Config{
		Level:      log.InfoLevel,
		JSONOutput: false,
		File: &log.FileConfig{
			Path:      "/var/log/lookout/lookout.log",
			MaxSizeMB: 50,
		},
	})

Console output is human readable unless JSONOutput is set. When File is
configured, every record is also written as JSON to a lumberjack-rotated file.

# Component Loggers

	sourceLog := log.WithComponent("source")
	sourceLog.Info().Str("event_id", "cpu").Msg("iteration finished")

	connLog := log.WithConnectionID(conn.ID())
	connLog.Warn().Err(err).Msg("send failed")

Loggers derived with the With* helpers capture the global logger at call time,
so long-lived components should derive theirs after Init has run.
*/
package log
