package main

import "github.com/rbazzell/distributed-systems-project/cmd/strassenctl/cmd"

func main() {
	cmd.Execute()
}
