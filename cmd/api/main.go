package main

import (
	"log"

	"github.com/Egham-7/custom-endpoint-proxy/internal/config"
	pkgconfig "github.com/Egham-7/custom-endpoint-proxy/pkg/config"

	fiberlog "github.com/gofiber/fiber/v2/log"
)

const configPath = "config.yaml"

func main() {
	envFiles := []string{".env.local", ".env.development", ".env"}
	config.LoadEnvFiles(envFiles)

	cfg, err := config.LoadFromFile(configPath)
	if err != nil {
		fiberlog.Fatalf("Failed to load config: %v", err)
	}

	proxy := pkgconfig.NewProxy(cfg).WithConfigFile(configPath)

	log.Println("Starting custom endpoint proxy server...")
	if err := proxy.Run(); err != nil {
		fiberlog.Fatalf("Server failed: %v", err)
	}
}
