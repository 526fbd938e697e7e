package main

import "table-merger/cmd"

func main() {
	cmd.Execute()
}
