package benchmarks

import (
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/zeu5/building-rl-env/ontology"
	"github.com/zeu5/building-rl-env/schema"
	"github.com/zeu5/building-rl-env/util"
)

func SchemaCommand() *cobra.Command {
	var building string
	var outFile string

	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Print the resolved observation keys and actuators for a building",
		Run: func(cmd *cobra.Command, args []string) {
			g, err := ontology.FromFile(building)
			if err != nil {
				logrus.Fatalf("parsing building: %v", err)
			}
			stack := &envStack{building: building, sections: allSections()}
			tpl, err := stack.resolve()
			if err != nil {
				logrus.Fatalf("resolving template: %v", err)
			}

			lines := []string{"Observation keys:"}
			for _, key := range tpl.FlattenKeys() {
				lines = append(lines, "\t"+key)
			}
			lines = append(lines, "Actuators:")
			actuators := schema.AutoActuators(g)
			names := make([]string, 0, len(actuators))
			for name := range actuators {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				a := actuators[name]
				lines = append(lines, fmt.Sprintf("\t%s -> %s / %s @ %s", name, a.Component, a.Control, a.Entity))
			}

			for _, line := range lines {
				fmt.Println(line)
			}
			if outFile != "" {
				if err := util.WriteToFile(outFile, lines...); err != nil {
					logrus.Fatalf("writing %s: %v", outFile, err)
				}
			}
		},
	}
	cmd.PersistentFlags().StringVar(&building, "building", defaultBuilding, "Building description file")
	cmd.PersistentFlags().StringVar(&outFile, "out", "", "Also write the listing to this file")
	return cmd
}
