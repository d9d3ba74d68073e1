package main

import "github.com/trackdeck/realtime/internal/cli"

func main() {
	cli.Execute()
}
