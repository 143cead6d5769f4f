package main

import "github.com/keyfold/keyfold/cmd/keyfold/cmd"

func main() {
	cmd.Execute()
}
