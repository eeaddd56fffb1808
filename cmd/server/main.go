package main

import (
	"github.com/worklens/backend/internal/server"
	"github.com/worklens/backend/internal/util"
	"github.com/worklens/backend/pkg/logger"
	"github.com/worklens/backend/pkg/logger/console"
)

func main() {
	util.LoadEnv()

	debug := util.GetEnvBool("DEBUG", false)
	consoleLogger := console.NewConsoleBackend(console.ConsoleBackendParams{
		Debug: debug,
	})
	logger.Init(consoleLogger)

	server.Init()
}
