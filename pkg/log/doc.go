/*
Package log provides the structured logging used across the ingestor:
a global zerolog.Logger configured once via Init, plus a handful of
child-logger constructors for attaching component, queue, and item
context to a stream of related log lines.

# Usage

	log.Init(log.Config{
		Level:      log.InfoLevel,
		JSONOutput: true,
		Output:     os.Stdout,
	})

	schedulerLog := log.WithComponent("scheduler")
	schedulerLog.Info().Msg("dispatch loop started")

	itemLog := log.WithItem("primary", "292564")
	itemLog.Warn().Err(err).Msg("fetch failed, retrying")

WithComponent, WithQueue, and WithItem each return a zerolog.Logger
derived from the package's global Logger, carrying the given fields on
every subsequent log line. There are no bare package-level Info/Warn/
Error wrappers: every call site gets a scoped child logger first, since
every log line in this worker belongs to a component, a queue, or a
specific item.
*/
package log
