package main

import "github.com/floatplane/floatchat/cmd"

func main() {
	cmd.Execute()
}
