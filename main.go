package main

import (
	"os"

	"github.com/n8nkit/n8nctl/cli"
)

func main() {
	os.Exit(cli.Run())
}
