// routectl -- CLI client for the routecore daemon.
package main

import "github.com/linkmesh/routecore/cmd/routectl/commands"

func main() {
	commands.Execute()
}
