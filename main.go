package main

import "github.com/nextlevelbuilder/outreach/cmd"

func main() {
	cmd.Execute()
}
