package main

import (
	"os"

	"avatar-relay/internal/app"
)

// @title           Avatar Relay API
// @version         1.0
// @description     Relays single-provider and group chat turns from the AI chat backend.
// @host            localhost:8000
// @BasePath        /api
func main() {
	os.Exit(app.Run())
}
