package main

import "github.com/dkotenko/calarm/cmd/calarm-scheduler/cmd"

func main() {
	cmd.Execute()
}
