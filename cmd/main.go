package main

import (
	"os"
)

func main() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		// cobra has already printed the error
		os.Exit(1)
	}
}
