package main

import (
	"os"

	"github.com/ymzhao/logleaks/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
