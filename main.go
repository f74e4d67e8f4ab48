package main

import "github.com/bankops/bankctl/cmd"

func main() {
	cmd.Execute()
}
