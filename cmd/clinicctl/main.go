// Command clinicctl manages patient records through the clinic-records
// procedures.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
