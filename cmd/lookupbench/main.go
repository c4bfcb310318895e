package main

import "github.com/dbsmedya/lookupbench/cmd/lookupbench/cmd"

func main() {
	cmd.Execute()
}
