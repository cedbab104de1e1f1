// Package xlog configures the process-wide go-logging backend used by the
// corvid packages that log, and a locale-aware printer for human-facing
// diagnostics.
package xlog

import (
	"os"

	"github.com/op/go-logging"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var format = logging.MustStringFormatter(
	`%{time:15:04:05.000} %{level:.4s} %{module}: %{message}`,
)

func init() {
	backend := logging.NewLogBackend(os.Stderr, "", 0)
	formatted := logging.NewBackendFormatter(backend, format)
	leveled := logging.AddModuleLevel(formatted)
	leveled.SetLevel(logging.INFO, "")
	logging.SetBackend(leveled)
}

// Diag is a printer for locale-formatted diagnostics (node counts, nps)
// that are never part of the protocol's machine-parseable lines.
var Diag = message.NewPrinter(language.English)
