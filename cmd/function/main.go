package main

import (
	"log"
	"os"

	_ "coin-tracker"

	"github.com/GoogleCloudPlatform/functions-framework-go/funcframework"
)

// Serves the functions locally. FUNCTION_TARGET selects UpdateSheet or CoinEvent.
func main() {
	port := "8080"
	if envPort := os.Getenv("PORT"); envPort != "" {
		port = envPort
	}
	if err := funcframework.Start(port); err != nil {
		log.Fatalf("funcframework.Start: %v\n", err)
	}
}
