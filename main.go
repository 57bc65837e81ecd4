package main

import "github.com/notargets/gocvfem/cmd"

func main() {
	cmd.Execute()
}
