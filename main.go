package main

import "github.com/crystaldolphin/hermes/cmd"

func main() {
	cmd.Execute()
}
