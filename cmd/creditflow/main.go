package main

import "github.com/availops/creditflow/internal/cli"

func main() {
	cli.Execute()
}
