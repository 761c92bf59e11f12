package main

import "github.com/cryodata/atlstore/cmd/atlstore-tool/cmds"

func main() {
	cmds.Execute()
}
