package main

import "github.com/jake-scott/bluestar-bridge/cmd"

func main() {
	cmd.Execute()
}
