package main

import (
	"os"

	"github.com/odslabs/ridebot/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
