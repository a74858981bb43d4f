package main

import (
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/zeu5/building-rl-env/benchmarks"
)

// main entry point to all the experiments
func main() {
	// optional local overrides, e.g. MQTT_URL for telemetry
	godotenv.Load()

	rootCommand := benchmarks.GetRootCommand()
	if err := rootCommand.Execute(); err != nil {
		logrus.Fatalf("%v", err)
	}
}
