// File: control/logger.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Logger lets call sites depend on an interface instead of *log.Logger
// directly, so tests can substitute a recording stub.

package control

import (
	"log"
	"os"
)

// Logger is the minimal surface the fabric needs from a logger.
type Logger interface {
	Printf(format string, v ...any)
}

// Default wraps the standard library's default logger.
func Default() Logger {
	return log.New(os.Stderr, "", log.LstdFlags)
}
