// Copyright © 2018 One Concern

package main

import (
	"github.com/oneconcern/branchwrite/cmd/branchwrite/cmd"
)

func main() {
	cmd.Execute()
}
