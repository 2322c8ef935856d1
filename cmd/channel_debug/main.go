package main

import (
	"flag"
	"log"
	"time"

	"github.com/relabs-tech/touch_panel/internal/app"
	"github.com/relabs-tech/touch_panel/internal/config"
)

func main() {
	configPath := flag.String("config", "touch_config.txt", "path to configuration file")
	useMock := flag.Bool("mock", false, "use the simulated panel instead of the SPI hardware")
	count := flag.Int("n", 5, "number of reads")
	interval := flag.Duration("interval", 500*time.Millisecond, "delay between reads")
	flag.Parse()

	log.Println("starting touch-panel channel debug")

	if err := config.InitGlobal(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	if err := app.RunChannelDebug(*useMock, *count, *interval); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
