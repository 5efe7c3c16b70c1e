package main

import "github.com/mpapenbr/participant-core-go/cmd"

func main() {
	cmd.Execute()
}
