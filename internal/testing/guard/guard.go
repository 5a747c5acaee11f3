// Package guard switches the process into test mode when imported, so
// binaries exercised from tests return before opening real connections.
package guard

import (
	"os"
	"sync"
)

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv("SIMDESK_TEST_MODE") == "" {
			_ = os.Setenv("SIMDESK_TEST_MODE", "1")
		}
	})
}
