package main

import (
	"csv-share-access/cmd"

	"github.com/joho/godotenv"
)

func main() {
	// Optional .env for local development
	godotenv.Load()

	cmd.Execute()
}
