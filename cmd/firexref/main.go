// Command firexref finds the OpenStreetMap features that FIRMS fire
// detections fall inside, for one place and date range.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
