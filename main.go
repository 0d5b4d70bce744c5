package main

import (
	"github.com/vznh/conviction/cmd"
)

func main() {
	cmd.Execute()
}
