package main

import "github.com/meysamhadeli/codelve/cmd"

func main() {
	cmd.Execute()
}
