package dependr

import (
	"io"

	"github.com/inconshreveable/log15"
	"github.com/pkg/errors"
)

// NewLogger returns a log15 logger writing logfmt records at or above level
// (debug, info, warn, error, crit) to w.
func NewLogger(level string, w io.Writer) (log15.Logger, error) {
	if level == "" {
		level = "info"
	}
	lvl, err := log15.LvlFromString(level)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid log level %q", level)
	}
	l := log15.New()
	l.SetHandler(
		log15.LvlFilterHandler(
			lvl,
			log15.StreamHandler(w, log15.LogfmtFormat()),
		),
	)
	return l, nil
}
