package main

import "github.com/smtindex/smtindex/cmd"

func main() {
	cmd.Execute()
}
