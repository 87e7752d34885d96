package main

import "github.com/jcfangc/yahoo-crawler/cmd/yahoo-crawler/cmd"

func main() {
	cmd.Execute()
}
