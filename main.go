package main

import "github.com/tanq16/grabd/cmd"

func main() {
	cmd.Execute()
}
