package main

import "github.com/dukaan-labs/dukaan/internal/cli"

func main() {
	cli.Execute()
}
