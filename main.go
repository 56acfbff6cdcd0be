package main

import "intranet-portal/cmd"

func main() {
	cmd.Execute()
}
