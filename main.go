package main

import "github.com/perimetra/perimetra/cmd"

func main() {
	cmd.Execute()
}
