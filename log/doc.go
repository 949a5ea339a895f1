// Package log provides the leveled, printf-style logging interface used by
// every hrrag component.
//
// Components accept a Logger through an option and fall back to the package
// default returned by GetDefaultLogger. Three implementations are provided:
//
//   - DefaultLogger writes through the standard library log package with a
//     "[hrrag] " prefix.
//   - GologLogger forwards to a github.com/kataras/golog logger.
//   - CharmLogger writes colored console output with github.com/charmbracelet/log.
//
// NoOpLogger discards everything and is handy in tests.
//
// # Usage
//
//	level, err := log.ParseLevel(cfg.Log.Level)
//	if err != nil {
//		return err
//	}
//	log.SetDefaultLogger(log.NewCharmLogger(log.CharmOptions{Level: level}))
//
//	idx, err := store.NewChunkIndex(embedder, store.WithLogger(log.NewDefaultLogger(log.LogLevelDebug)))
//
// The package-level default may be swapped at any time and is safe for
// concurrent use.
package log
