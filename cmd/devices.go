package cmd

import (
	"context"
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var _devicesCmdOpts struct {
	output string
	all    bool
}

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "Inspect the devices on the Bluestar account",
}

var devicesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the account's devices",
	Args:  cobra.NoArgs,

	RunE: func(cmd *cobra.Command, args []string) error {
		return doDevicesList()
	},
}

var devicesStatusCmd = &cobra.Command{
	Use:   "status [device-id...]",
	Short: "Show the vendor-reported status of devices",

	// server binds its own flag to status.concurrency at init; viper keeps
	// one flag per key, so this one is bound only when status runs
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return viper.BindPFlag("status.concurrency", cmd.Flags().Lookup("concurrency"))
	},

	RunE: func(cmd *cobra.Command, args []string) error {
		return doDevicesStatus(args, viper.GetInt("status.concurrency"))
	},
}

var devicesInfoCmd = &cobra.Command{
	Use:   "info <device-id>",
	Short: "Show the vendor's details for a device",
	Args:  cobra.ExactArgs(1),

	RunE: func(cmd *cobra.Command, args []string) error {
		return doDevicesInfo(args[0])
	},
}

func init() {
	devicesCmd.PersistentFlags().StringVarP(&_devicesCmdOpts.output, "output", "o", "", "output format: table, json or yaml (default table on a terminal, json otherwise)")
	devicesStatusCmd.Flags().BoolVar(&_devicesCmdOpts.all, "all", false, "show every device on the account")
	devicesStatusCmd.Flags().Int("concurrency", 4, "maximum concurrent status lookups")

	devicesCmd.AddCommand(devicesListCmd, devicesStatusCmd, devicesInfoCmd)
	rootCmd.AddCommand(devicesCmd)
}

func doDevicesList() error {
	format, err := outputFormat(_devicesCmdOpts.output, os.Stdout)
	if err != nil {
		return err
	}

	client, err := newClient()
	if err != nil {
		return err
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout())
	defer cancel()

	devices, err := client.DiscoverDevices(ctx)
	if err != nil {
		return err
	}

	return render(os.Stdout, format, devices, func(tw *tabwriter.Writer) {
		fmt.Fprintln(tw, "ID\tNAME\tUNIQUE ID")
		for _, d := range devices {
			fmt.Fprintf(tw, "%s\t%s\t%s\n", d.ID(), d.Name(), client.Metadata(d.ID()).UniqueID)
		}
	})
}

func doDevicesStatus(ids []string, concurrency int) error {
	format, err := outputFormat(_devicesCmdOpts.output, os.Stdout)
	if err != nil {
		return err
	}

	client, err := newClient()
	if err != nil {
		return err
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout())
	defer cancel()

	if _devicesCmdOpts.all {
		for _, d := range client.ListDevices(ctx) {
			if id := d.ID(); id != "" {
				ids = append(ids, id)
			}
		}
	}
	if len(ids) == 0 {
		for _, d := range client.Devices() {
			ids = append(ids, d.ID)
		}
	}
	if len(ids) == 0 {
		return fmt.Errorf("no devices given; name some, configure some or use --all")
	}

	results := client.StatusAll(ctx, ids, concurrency)

	failed := 0
	byID := map[string]map[string]interface{}{}
	for _, r := range results {
		if !r.OK {
			failed++
			continue
		}
		byID[r.DeviceID] = r.Data
	}

	err = render(os.Stdout, format, byID, func(tw *tabwriter.Writer) {
		fmt.Fprintln(tw, "ID\tFIELD\tVALUE")
		for _, r := range results {
			if !r.OK {
				fmt.Fprintf(tw, "%s\t-\t(unavailable)\n", r.DeviceID)
				continue
			}
			keys := make([]string, 0, len(r.Data))
			for k := range r.Data {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				fmt.Fprintf(tw, "%s\t%s\t%v\n", r.DeviceID, k, r.Data[k])
			}
		}
	})
	if err != nil {
		return err
	}

	if failed > 0 {
		return fmt.Errorf("status unavailable for %d of %d devices", failed, len(results))
	}
	return nil
}

func doDevicesInfo(id string) error {
	format, err := outputFormat(_devicesCmdOpts.output, os.Stdout)
	if err != nil {
		return err
	}

	client, err := newClient()
	if err != nil {
		return err
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout())
	defer cancel()

	info, ok := client.DeviceInfo(ctx, id)
	if !ok {
		return fmt.Errorf("unable to fetch info for device %s", id)
	}

	return render(os.Stdout, format, info, func(tw *tabwriter.Writer) {
		keys := make([]string, 0, len(info))
		for k := range info {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		fmt.Fprintln(tw, "FIELD\tVALUE")
		for _, k := range keys {
			fmt.Fprintf(tw, "%s\t%v\n", k, info[k])
		}
	})
}
