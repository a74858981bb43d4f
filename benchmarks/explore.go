package benchmarks

import (
	"os"
	"os/signal"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/zeu5/building-rl-env/explorer"
	"github.com/zeu5/building-rl-env/sim"
)

func ExploreCommand() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "explore",
		Short: "Serve buildings interactively over HTTP",
		Run: func(cmd *cobra.Command, args []string) {
			srv := explorer.NewServer(explorer.Config{
				Addr: addr,
				NewBridge: func(building, weather string) (*sim.Bridge, error) {
					stack := &envStack{
						building: building,
						weather:  weather,
						sections: allSections(),
						saveDir:  saveFile,
					}
					if err := stack.check(); err != nil {
						return nil, err
					}
					return stack.bridge()
				},
			})
			srv.Start()
			logrus.Infof("explorer listening on %s", addr)

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, os.Interrupt)
			<-sigCh

			srv.Shutdown()
		},
	}
	cmd.PersistentFlags().StringVar(&addr, "addr", ":8080", "Listen address of the explorer service")
	return cmd
}
