package guard

import (
	"os"
	"sync"
)

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv("LUMORA_TEST_MODE") == "" {
			_ = os.Setenv("LUMORA_TEST_MODE", "1")
		}
	})
}
