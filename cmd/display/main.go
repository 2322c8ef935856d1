package main

import (
	"flag"
	"log"

	"github.com/relabs-tech/touch_panel/internal/app"
	"github.com/relabs-tech/touch_panel/internal/config"
)

func main() {
	configPath := flag.String("config", "./touch_config.txt", "path to configuration file")
	flag.Parse()

	log.Println("starting touch-panel status display (MQTT subscriber)")

	if err := config.InitGlobal(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	if err := app.RunDisplay(); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
