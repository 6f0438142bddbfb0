package main

import "lore/cmd"

func main() {
	cmd.Execute()
}
