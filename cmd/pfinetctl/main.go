// pfinetctl -- CLI client for the pfinet translator's admin HTTP surface.
package main

import "github.com/hurdlab/pfinet/cmd/pfinetctl/commands"

func main() {
	commands.Execute()
}
