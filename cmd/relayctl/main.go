package main

import (
	"os"

	"avatar-relay/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
