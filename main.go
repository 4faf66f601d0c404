// Command forge-setup merges the default answer file, the operator's answer
// file, and command-line overrides into a final configuration, then drives
// the forge-apply tool and renders its progress.
package main

import "github.com/forgeworks/forge-setup/cmd"

func main() {
	cmd.Execute()
}
