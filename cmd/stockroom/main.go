package main

import (
	"log"

	"github.com/MrSnakeDoc/stockroom/internal/app"
)

func main() {
	if err := app.New().Run(); err != nil {
		log.Fatalf("❌ stockroom failed to start: %v", err)
	}
}
