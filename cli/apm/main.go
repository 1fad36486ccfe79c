package main

import (
	"os"

	apmcmder "github.com/papercomputeco/apm/cmd/apm"
)

func main() {
	cmd := apmcmder.NewAPMCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
