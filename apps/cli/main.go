package main

import (
	"fmt"
	"os"

	"github.com/Teck-Lab/teck-cloud-saas/apps/cli/root"
)

func main() {
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
