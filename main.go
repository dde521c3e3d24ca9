package main

import (
	"github.com/daflip/daflip/cli"
)

func main() {
	cli.Main()
}
