package main

import "github.com/mselser95/polymarket-engine/cmd"

func main() {
	cmd.Execute()
}
