package main

import (
	"os"

	"github.com/lkarlslund/winsec/modules/cli"
	"github.com/rs/zerolog/log"
)

func main() {
	err := cli.Run()

	if err != nil {
		log.Error().Msg(err.Error())
		os.Exit(1)
	}
}
