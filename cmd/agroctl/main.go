package main

import (
	"os"

	"github.com/ariefcatur/go-agro-market/cmd/agroctl/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
