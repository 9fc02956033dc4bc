package main

import "github.com/oshokin/zere-installer/cmd/zere-packager/cmd"

func main() {
	cmd.Execute()
}
