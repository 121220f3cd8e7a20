package main

import "github.com/marrowlab/recall/cmd"

func main() {
	cmd.Execute()
}
