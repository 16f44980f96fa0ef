package main

import "github.com/crmbridge/crmbridge/cmd/crmbridge/cmd"

func main() {
	cmd.Execute()
}
