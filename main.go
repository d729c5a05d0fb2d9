package main

import (
	"context"
	"os"

	"github.com/magicbird9803/Unsimplifier-master/cmd"
)

func main() {
	if err := cmd.RootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
