package main

import "github.com/KaramelBytes/qstorm-cli/cmd"

func main() {
	cmd.Execute()
}
