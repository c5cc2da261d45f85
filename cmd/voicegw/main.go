// Command voicegw runs the Gateway Router, one Agent Runtime persona
// process, or the local tool service, selected by subcommand.
package main

import "github.com/voicegw/voicegw/cmd"

func main() {
	cmd.Execute()
}
