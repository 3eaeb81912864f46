package main

import "github.com/edgetalent/smsbot/cmd"

func main() {
	cmd.Execute()
}
