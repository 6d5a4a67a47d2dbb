package main

import "github.com/ValentinKolb/dRSC/cmd"

func main() {
	cmd.Execute()
}
