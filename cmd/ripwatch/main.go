package main

import "github.com/MeKo-Tech/ripwatch/cmd/ripwatch/cmd"

func main() {
	cmd.Execute()
}
