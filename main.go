package main

import "github.com/nhirsama/Ion-Collector/cli"

func main() {
	cli.Run()
}
