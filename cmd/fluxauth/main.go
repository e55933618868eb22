package main

import "github.com/layer-3/fluxauth/cmd/fluxauth/cmd"

func main() {
	cmd.Execute()
}
