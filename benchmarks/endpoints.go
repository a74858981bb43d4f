package benchmarks

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/zeu5/building-rl-env/engine"
	"github.com/zeu5/building-rl-env/thermal"
)

// printEndpoints lists everything the engine exposes for registration.
func printEndpoints(lister engine.EndpointLister) {
	fmt.Println("Variables:")
	for _, v := range lister.Variables() {
		fmt.Printf("\t%s @ %s\n", v.Name, v.Entity)
	}
	fmt.Println("Meters:")
	for _, m := range lister.Meters() {
		fmt.Printf("\t%s\n", m)
	}
	fmt.Println("Actuators:")
	for _, a := range lister.Actuators() {
		fmt.Printf("\t%s / %s @ %s\n", a.Component, a.Control, a.Entity)
	}
}

func EndpointsCommand() *cobra.Command {
	var building string
	var weather string

	cmd := &cobra.Command{
		Use:   "endpoints",
		Short: "Print the variables, meters and actuators a building exposes",
		Run: func(cmd *cobra.Command, args []string) {
			eng, err := thermal.New(building, weather)
			if err != nil {
				logrus.Fatalf("building thermal engine: %v", err)
			}
			printEndpoints(eng)
		},
	}
	cmd.PersistentFlags().StringVar(&building, "building", defaultBuilding, "Building description file")
	cmd.PersistentFlags().StringVar(&weather, "weather", defaultWeather, "Hourly weather csv")
	return cmd
}
