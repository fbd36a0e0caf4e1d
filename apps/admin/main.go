package main

import (
	"fmt"
	"log"
	"os"

	"github.com/anquinko/academia/core"
	logsvc "github.com/anquinko/academia/services/logger"
)

func main() {
	conf := core.NewConfig()
	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	logger.Enable(!conf.Debug)

	cli := &commandLine{conf: conf, out: os.Stdout}
	err := cli.run(os.Args[1:])
	cli.close()
	logger.Close()

	if err != nil {
		if err != errHelp {
			fmt.Fprintf(os.Stderr, "\nerror: %v\n", err)
		}
		os.Exit(1)
	}
}
