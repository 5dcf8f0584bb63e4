// Package logging wires slog for the audiocard daemon.
//
// Every subsystem asks for its own logger by module name:
//
//	log := logging.GetLogger("clock")
//	log.Info("PLL locked", "freq_in", in, "freq_out", out)
//
// Module names in use are clock, dai, jack, routing, card, api and http.
// Each has an optional level override on top of the global level, set in
// the [logging] table of the config file or with --logging-<module>:
//
//	[logging]
//	level  = "info"
//	format = "text"
//	jack   = "debug"
//
// Levels can be changed at runtime with SetLevels; loggers already handed
// out pick up the new level because they share a LevelVar per module.
//
// Output goes to the systemd journal when journald is reachable, to
// stdout when it is a terminal or pipe, and to both when both are present.
// Journal records carry the module and every attribute as upper-cased
// fields, so
//
//	journalctl -t audiocard MODULE=jack
//
// shows only jack detection. Independently of the sinks, the last
// entries are kept in a ring buffer for GET /api/logs, and each entry is
// passed to the callback installed with SetLogCallback.
package logging
