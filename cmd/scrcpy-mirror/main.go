// Command scrcpy-mirror drives one mirroring session against a real
// device reachable through adb, demonstrating the session coordinator
// end to end.
package main

import (
	"os"

	"github.com/scrcpygo/mirror/cmd/scrcpy-mirror/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
