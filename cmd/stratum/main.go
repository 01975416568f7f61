package main

import "stratum/internal/cli"

func main() {
	cli.Execute()
}
