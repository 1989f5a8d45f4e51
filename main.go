package main

import (
	"fmt"
	"os"

	"github.com/PolarWolf314/syc/cmd"
)

func main() {
	if err := cmd.RootCmd.Execute(); err != nil {
		if !cmd.IsReported(err) {
			fmt.Println(err)
		}
		os.Exit(1)
	}
}
