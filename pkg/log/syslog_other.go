//go:build windows || plan9

package log

import (
	"errors"
	"log/slog"
)

func newSyslogHandler(string, slog.Leveler) (slog.Handler, func() error, error) {
	return nil, nil, errors.New("syslog is not supported on this platform")
}
