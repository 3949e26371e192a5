package main

import "step-bridge/internal/cli"

func main() {
	cli.Execute()
}
