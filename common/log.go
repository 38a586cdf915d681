package common

import (
	"os"

	"github.com/op/go-logging"
	"github.com/pkg/errors"
)

const logFormat = "%{time:2006-01-02 15:04:05.000} %{level:.4s} %{module:-20s} | %{message}"

// SetupLogging installs a stderr backend at the named level for every module.
func SetupLogging(level string) (logging.LeveledBackend, error) {
	lvl, err := logging.LogLevel(level)
	if err != nil {
		return nil, errors.Wrapf(err, "log-level %q", level)
	}
	backend := logging.NewLogBackend(os.Stderr, "", 0)
	formatted := logging.NewBackendFormatter(backend, logging.MustStringFormatter(logFormat))
	leveled := logging.AddModuleLevel(formatted)
	leveled.SetLevel(lvl, "")
	logging.SetBackend(leveled)
	return leveled, nil
}
