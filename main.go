package main

import "albumvault/cmd"

func main() {
	cmd.Execute()
}
