package main

import (
	"os"

	"github.com/storyforge/go-storyforge/cmd/storyforge"
)

func main() {
	if err := storyforge.Execute(); err != nil {
		os.Exit(1)
	}
}
