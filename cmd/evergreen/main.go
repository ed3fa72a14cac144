package main

import (
	"os"

	"github.com/charliek/evergreen/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
