package main

import "github.com/ayusman/signspeak/internal/cli"

func main() {
	cli.Execute()
}
