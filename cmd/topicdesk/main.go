package main

import (
	"topicdesk/cmd/handlers"
	"topicdesk/internal/logger"
)

func main() {
	logger.Init()
	handlers.Execute()
}
