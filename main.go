package main

import "github.com/ValentinKolb/hashcons/cmd"

func main() {
	cmd.Execute()
}
