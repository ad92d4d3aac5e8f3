//go:build !windows && !plan9

package log

import (
	"log/slog"
	"log/syslog"
)

func newSyslogHandler(ident string, level slog.Leveler) (slog.Handler, func() error, error) {
	w, err := syslog.New(syslog.LOG_INFO|syslog.LOG_DAEMON, ident)
	if err != nil {
		return nil, nil, err
	}

	// syslog stamps its own time
	h := slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if len(groups) == 0 && a.Key == slog.TimeKey {
				return slog.Attr{}
			}
			return replaceLevel(groups, a)
		},
	})
	return h, w.Close, nil
}
