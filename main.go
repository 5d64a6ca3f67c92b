package main

import "github.com/gnosis/tradingdb/cmd"

func main() {
	cmd.Execute()
}
