package main

import "github.com/vietddude/autodev/internal/cli"

func main() {
	cli.Execute()
}
