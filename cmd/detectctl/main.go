package main

import "vehicledetect/internal/cli"

func main() {
	cli.Execute()
}
