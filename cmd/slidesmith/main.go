// Command slidesmith builds and revises Beamer decks from presentation plans.
package main

import "github.com/slidesmith-dev/slidesmith/internal/cli"

func main() {
	cli.Execute()
}
