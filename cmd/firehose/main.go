package main

import "github.com/vietddude/firehose/internal/cli"

func main() {
	cli.Execute()
}
