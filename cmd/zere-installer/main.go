package main

import "github.com/oshokin/zere-installer/cmd/zere-installer/cmd"

func main() {
	cmd.Execute()
}
