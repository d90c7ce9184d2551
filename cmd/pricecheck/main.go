package main

import "mandi-pricecheck/internal/cli"

func main() {
	cli.Execute()
}
