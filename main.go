package main

import (
	_ "go.uber.org/automaxprocs"

	"github.com/visionvansh/clipifypost-sub001/cli"
)

func main() {
	cli.Execute()
}
