package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Test the account credentials and device connectivity",

	RunE: func(cmd *cobra.Command, args []string) error {
		if err := doCheck(); err != nil {
			return err
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

func doCheck() error {
	client, err := newClient()
	if err != nil {
		return err
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout())
	defer cancel()

	if err := client.Check(ctx); err != nil {
		return err
	}

	fmt.Println("Connection OK")
	for _, d := range client.Devices() {
		state := "disconnected"
		if client.DeviceConnected(d.ID) {
			state = "connected"
		}
		fmt.Printf("  %s (%s): %s\n", d.ID, d.Transport, state)
	}

	return nil
}
