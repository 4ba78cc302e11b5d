package main

import (
	cmd "github.com/kerbaras/txt2epub/cmd/txt2epub"
)

func main() {
	cmd.Execute()
}
