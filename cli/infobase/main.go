package main

import (
	"os"

	infobasecmder "github.com/nrashid7/infobase/cmd/infobase"
)

func main() {
	cmd := infobasecmder.NewInfobaseCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
