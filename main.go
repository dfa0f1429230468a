package main

import (
	"github.com/opencountrieslist/opencountries/cmd"
)

func main() {
	cmd.Execute()
}
