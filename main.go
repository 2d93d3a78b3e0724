package main

import "miniature_creator/cmd"

func main() {
	cmd.Execute()
}
