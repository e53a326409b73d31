package ticket

import "github.com/gigconnect/gigconnect/internal/config"

func debugEnabled() bool {
	return config.DebugEnabled()
}
