/*
Package log provides structured logging for the agency runtime using
zerolog.

The log package wraps zerolog to provide JSON or console structured
logging with component-specific child loggers, configurable levels, and
a small set of helper functions for the common one-line case.

# Usage

Initializing the logger:

	import "github.com/cuemby/agency/pkg/log"

	log.Init(log.Config{
		Level:      log.InfoLevel,
		JSONOutput: true,
		Output:     os.Stdout,
	})

Simple logging:

	log.Info("environment started")
	log.Debug("checking agent queue depth")
	log.Warn("deadletter fallback fired")
	log.Error("handler returned an error")

Component and context loggers:

	dispatchLog := log.WithComponent("dispatch")
	dispatchLog.Info().Str("dispatcher", "one-thread").Msg("started")

	agentLog := log.WithAgentID("ponger-1")
	agentLog.Debug().Msg("on_start running")

	coopLog := log.WithCoopName("chat-room")
	coopLog.Warn().Msg("deregistering after unhandled exception")

Context loggers exist for the identities most often worth filtering logs
by: the owning agent, cooperation, or mailbox. Compose them with
WithComponent via .With() when a log site needs more than one:

	taskLog := log.WithComponent("registry").
		With().Str("coop_name", "chat-room").Logger()

# Design notes

A single package-level Logger is initialized once via Init and read from
every other package through WithComponent and the identity-scoped
helpers; nothing else in the module constructs a zerolog.Logger from
scratch, so changing the global level or output format takes effect
everywhere at once. Never log message payloads verbatim: application
data can be arbitrarily large or sensitive, so handlers should log a
type name or a summary field, not the payload itself.
*/
package log
