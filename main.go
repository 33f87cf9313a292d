package main

import "github.com/mselser95/btc15m-maker/cmd"

func main() {
	cmd.Execute()
}
