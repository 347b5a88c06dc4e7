// Package logging wraps log/slog for the Omada bridge.
//
// Every record carries service and version attributes. Level, format
// (json or text), and output (stdout, stderr, or a file path) come from
// the logging section of config.yaml. Default() supplies a stdout JSON
// logger for the window before the config file is read.
//
//	log := logging.New(cfg.Logging, version)
//	log.Info("poll cycle complete", "sites", n)
//
// Never log secrets: the controller session token in particular must not
// appear in output.
package logging
