package main

import (
	"os"

	"atlasassist/cmd/atlasassist/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
