package main

import "github.com/jmelville/sealcrate/cmd/sealcrate/cmd"

func main() {
	cmd.Execute()
}
