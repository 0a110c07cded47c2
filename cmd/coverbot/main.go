package main

import (
	"os"

	"github.com/holon-run/coverbot/pkg/cli"
)

func main() {
	os.Exit(cli.Main())
}
