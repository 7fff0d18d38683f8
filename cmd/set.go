package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/jake-scott/bluestar-bridge/internal/pkg/command"
)

var _setCmdOpts struct {
	power       bool
	temperature float64
	mode        string
	hvacMode    string
	fan         string
	fanPercent  int
	swing       string
	preset      string
	display     bool
	buzzer      bool
	output      string
}

var setCmd = &cobra.Command{
	Use:   "set <device-id>",
	Short: "Send a command to a device",
	Long: `Send one command to a device.  Every flag given is batched into a single
payload; the command is rejected as a whole if any value is invalid.`,
	Example: `  bluestar-bridge set ac-1 --hvac-mode cool --temperature 23
  bluestar-bridge set ac-1 --preset eco --swing both`,
	Args: cobra.ExactArgs(1),

	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := commandFromFlags(cmd)
		if err != nil {
			return err
		}

		return doSet(args[0], c)
	},
}

func init() {
	setCmd.Flags().BoolVar(&_setCmdOpts.power, "power", false, "turn the unit on or off")
	setCmd.Flags().Float64Var(&_setCmdOpts.temperature, "temperature", command.DefaultTemperature, "target temperature in °C (16-30)")
	setCmd.Flags().StringVar(&_setCmdOpts.mode, "mode", "", "operating mode: auto, cool, dry or fan")
	setCmd.Flags().StringVar(&_setCmdOpts.hvacMode, "hvac-mode", "", "off, or a mode to power on in")
	setCmd.Flags().StringVar(&_setCmdOpts.fan, "fan", "", "fan speed: auto, low, medium or high")
	setCmd.Flags().IntVar(&_setCmdOpts.fanPercent, "fan-percent", 0, "fan speed as a percentage, rounded to the nearest named speed")
	setCmd.Flags().StringVar(&_setCmdOpts.swing, "swing", "", "louvre swing: off, horizontal, vertical or both")
	setCmd.Flags().StringVar(&_setCmdOpts.preset, "preset", "", "preset: none, eco, turbo or sleep")
	setCmd.Flags().BoolVar(&_setCmdOpts.display, "display", true, "turn the unit's display on or off")
	setCmd.Flags().BoolVar(&_setCmdOpts.buzzer, "buzzer", true, "turn the unit's buzzer on or off")
	setCmd.Flags().StringVarP(&_setCmdOpts.output, "output", "o", "", "output format: table, json or yaml")

	setCmd.MarkFlagsMutuallyExclusive("hvac-mode", "power")
	setCmd.MarkFlagsMutuallyExclusive("hvac-mode", "mode")
	setCmd.MarkFlagsMutuallyExclusive("fan", "fan-percent")

	rootCmd.AddCommand(setCmd)
}

// commandFromFlags builds a command from the flags that were given
func commandFromFlags(cmd *cobra.Command) (command.Command, error) {
	flags := cmd.Flags()
	c := command.Command{}

	if flags.Changed("hvac-mode") {
		h, err := command.ParseHVACMode(_setCmdOpts.hvacMode)
		if err != nil {
			return c, err
		}
		if c, err = command.SetHVACMode(h); err != nil {
			return c, err
		}
	}
	if flags.Changed("power") {
		c = c.WithPower(_setCmdOpts.power)
	}
	if flags.Changed("mode") {
		m, err := command.ParseMode(_setCmdOpts.mode)
		if err != nil {
			return c, err
		}
		c = c.WithMode(m)
	}
	if flags.Changed("temperature") {
		c = c.WithTemperature(_setCmdOpts.temperature)
	}
	if flags.Changed("fan") {
		f, err := command.ParseFanSpeed(_setCmdOpts.fan)
		if err != nil {
			return c, err
		}
		c = c.WithFanSpeed(f)
	}
	if flags.Changed("fan-percent") {
		c = c.WithFanSpeed(command.FanSpeedForPercentage(_setCmdOpts.fanPercent))
	}
	if flags.Changed("swing") {
		s, err := command.ParseSwing(_setCmdOpts.swing)
		if err != nil {
			return c, err
		}
		c = c.WithSwing(s)
	}
	if flags.Changed("preset") {
		p, err := command.ParsePreset(_setCmdOpts.preset)
		if err != nil {
			return c, err
		}
		c = c.WithPreset(p)
	}
	if flags.Changed("display") {
		c = c.WithDisplay(_setCmdOpts.display)
	}
	if flags.Changed("buzzer") {
		c = c.WithBuzzer(_setCmdOpts.buzzer)
	}

	if c.Empty() {
		return c, fmt.Errorf("nothing to set; give at least one setting flag")
	}
	return c, c.Validate()
}

func doSet(id string, c command.Command) error {
	format, err := outputFormat(_setCmdOpts.output, os.Stdout)
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

	if err := client.Dispatch(ctx, id, c); err != nil {
		return err
	}

	st := client.AssumedState(id)
	return render(os.Stdout, format, st, func(tw *tabwriter.Writer) {
		fmt.Fprintf(tw, "Sent %s to %s\n", c, id)
		fmt.Fprintf(tw, "hvac mode\t%s\n", st.HVACMode)
		fmt.Fprintf(tw, "temperature\t%.1f\n", st.Temperature)
		fmt.Fprintf(tw, "fan\t%s (%d%%)\n", st.FanSpeed, st.FanPercent)
		fmt.Fprintf(tw, "swing\t%s\n", st.Swing)
		fmt.Fprintf(tw, "preset\t%s\n", st.Preset)
	})
}
