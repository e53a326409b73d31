package middleware

import (
	"log"

	"github.com/gigconnect/gigconnect/internal/config"
)

// debugLog logs only when log.level is debug.
func debugLog(format string, v ...interface{}) {
	if config.DebugEnabled() {
		log.Printf(format, v...)
	}
}
