// Package log provides the logging abstraction used across serialbridge.
//
// Components depend on the [Logger] interface only. A zerolog-backed
// implementation writes human-readable lines to stderr; a no-op logger is
// provided for tests and for embedding without output.
//
//	logger, err := log.NewZerolog(os.Stderr, "debug")
//	if err != nil {
//	    return err
//	}
//	serialLog := logger.With(log.String("component", "ingest"))
//	serialLog.Info("port opened", log.String("port", "/dev/ttyUSB0"), log.Int("baud", 9600))
//
// Any other logging library can be plugged in by implementing [Logger].
package log
