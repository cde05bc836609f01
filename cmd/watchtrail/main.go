package main

import (
	"watchtrail/cmd/handlers"
	"watchtrail/internal/logger"
)

func main() {
	logger.Init() // Initialize the logger
	handlers.Execute()
}
