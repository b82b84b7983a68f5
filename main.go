package main

import "github.com/mpapenbr/racesim-engine/cmd"

func main() {
	cmd.Execute()
}
