package main

import "github.com/steemit/bulletin/internal/cli"

func main() {
	cli.Execute()
}
