package main

import "tablebook-backend/cmd"

func main() {
	cmd.Execute()
}
