package main

import (
	"lecture-pipeline/internal/cli"
)

func main() {
	cli.Execute()
}
