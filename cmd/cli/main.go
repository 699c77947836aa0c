package main

import "stockhub/cmd/cli/command"

func main() {
	command.Execute()
}
