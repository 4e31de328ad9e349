package main

import (
	"github.com/shiplane/shiplane/cmd"
	"github.com/shiplane/shiplane/pkg/env"
	"github.com/shiplane/shiplane/pkg/log"
)

func main() {
	if err := env.Process(); err != nil {
		log.Fatal("environment failure", "error", err)
	}

	if err := cmd.Execute(); err != nil {
		log.Fatal("shiplane failure", "error", err)
	}
}
