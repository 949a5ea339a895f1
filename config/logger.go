package config

import (
	"os"
	"strings"

	"github.com/kataras/golog"
	"github.com/smallnest/hrrag/log"
)

// NewLogger builds the logger selected by the log section
func (c *Config) NewLogger() (log.Logger, error) {
	level, err := log.ParseLevel(c.Log.Level)
	if err != nil {
		return nil, err
	}

	switch strings.ToLower(c.Log.Format) {
	case "golog":
		g := golog.New()
		g.SetOutput(os.Stderr)
		g.SetPrefix("[hrrag] ")
		l := log.NewGologLogger(g)
		l.SetLevel(level)
		return l, nil
	case "charm":
		return log.NewCharmLogger(log.CharmOptions{Level: level, ReportTimestamp: true}), nil
	default:
		return log.NewDefaultLogger(level), nil
	}
}
