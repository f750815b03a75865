package main

import (
	"log"

	"github.com/casaflow/matchmaker/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
