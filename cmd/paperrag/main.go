package main

import "paperrag/internal/cli"

func main() {
	cli.Execute()
}
