package main

import "github.com/carsafe/carsafe/cmd"

func main() {
	cmd.Execute()
}
