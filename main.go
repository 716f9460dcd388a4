package main

import "github.com/robotweb/nsbus/cmd"

func main() {
	cmd.Execute()
}
