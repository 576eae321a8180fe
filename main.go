package main

import "github.com/kiesman99/tilesheet/cmd"

func main() {
	cmd.Execute()
}
