package main

import "github.com/Brownie44l1/plate-api/internal/cli"

func main() {
	cli.Execute()
}
