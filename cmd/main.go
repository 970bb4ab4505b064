package main

import (
	"os"

	"github.com/corray333/backend-labs/fulfillment/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
