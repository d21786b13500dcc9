package main

import (
	"os"

	"github.com/arloliu/go-urg/cmd/urgsim/app"
)

func main() {
	if err := app.NewCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
