package cmd

import (
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jake-scott/bluestar-bridge/internal/pkg/bluestar"
	"github.com/jake-scott/bluestar-bridge/internal/pkg/dispatch"
	"github.com/jake-scott/bluestar-bridge/internal/pkg/endpoints"
	"github.com/jake-scott/bluestar-bridge/internal/pkg/session"
	"github.com/jake-scott/bluestar-bridge/internal/pkg/shadow"
	"github.com/jake-scott/bluestar-bridge/internal/pkg/transport"
)

const defaultBaseURL = "https://api.bluestarindia.com/v1"

func init() {
	def := endpoints.Default(defaultBaseURL)

	viper.SetDefault("api.base-url", def.BaseURL)
	viper.SetDefault("api.login-path", def.LoginPath)
	viper.SetDefault("api.devices-path", def.DevicesPath)
	viper.SetDefault("api.device-state-path", def.DeviceStatePath)
	viper.SetDefault("api.device-info-path", def.DeviceInfoPath)
	viper.SetDefault("api.iot-credentials-path", def.IoTCredentialsPath)
	viper.SetDefault("api.timeout", transport.DefaultTimeout)
	viper.SetDefault("api.rest-vocabulary", string(dispatch.VocabularyWire))
	viper.SetDefault("account.auth-type", "email")
	viper.SetDefault("transport.default", bluestar.TransportREST)
	viper.SetDefault("shadow.topic-template", shadow.DefaultTopicTemplate)
	viper.SetDefault("shadow.connect-timeout", shadow.DefaultConnectTimeout)
	viper.SetDefault("status.concurrency", 4)

	addAccountFlags(rootCmd)
}

// addAccountFlags registers the account flags once, on the root command,
// so each viper key has a single bound flag
func addAccountFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().String("auth-id", "", "Bluestar account email address or phone number")
	cmd.PersistentFlags().String("password", "", "Bluestar account password")
	cmd.PersistentFlags().String("auth-type", "email", "account type: email or phone")
	cmd.PersistentFlags().String("api-url", defaultBaseURL, "Bluestar cloud API base URL")
	cmd.PersistentFlags().Duration("api-timeout", transport.DefaultTimeout, "maximum duration of a Bluestar API call, eg. 1m or 10s")
	cmd.PersistentFlags().String("transport", bluestar.TransportREST, "default command transport: rest or shadow")

	errPanic(viper.GetViper().BindPFlag("account.auth-id", cmd.PersistentFlags().Lookup("auth-id")))
	errPanic(viper.GetViper().BindPFlag("account.password", cmd.PersistentFlags().Lookup("password")))
	errPanic(viper.GetViper().BindPFlag("account.auth-type", cmd.PersistentFlags().Lookup("auth-type")))
	errPanic(viper.GetViper().BindPFlag("api.base-url", cmd.PersistentFlags().Lookup("api-url")))
	errPanic(viper.GetViper().BindPFlag("api.timeout", cmd.PersistentFlags().Lookup("api-timeout")))
	errPanic(viper.GetViper().BindPFlag("transport.default", cmd.PersistentFlags().Lookup("transport")))
}

func clientConfig(v *viper.Viper) (bluestar.Config, error) {
	authType, err := session.ParseAuthType(v.GetString("account.auth-type"))
	if err != nil {
		return bluestar.Config{}, err
	}

	vocab, err := dispatch.ParseVocabulary(v.GetString("api.rest-vocabulary"))
	if err != nil {
		return bluestar.Config{}, err
	}

	var devices []bluestar.DeviceConfig
	if err := v.UnmarshalKey("devices", &devices); err != nil {
		return bluestar.Config{}, errors.Wrap(err, "parsing devices")
	}

	return bluestar.Config{
		Credentials: session.NewCredentials(
			v.GetString("account.auth-id"),
			v.GetString("account.password"),
			authType,
		),
		Endpoints: endpoints.Endpoints{
			BaseURL:            v.GetString("api.base-url"),
			LoginPath:          v.GetString("api.login-path"),
			DevicesPath:        v.GetString("api.devices-path"),
			DeviceStatePath:    v.GetString("api.device-state-path"),
			DeviceInfoPath:     v.GetString("api.device-info-path"),
			IoTCredentialsPath: v.GetString("api.iot-credentials-path"),
		},
		Timeout:          v.GetDuration("api.timeout"),
		UserAgent:        v.GetString("api.user-agent"),
		DefaultTransport: v.GetString("transport.default"),
		Vocabulary:       vocab,
		Devices:          devices,
		Shadow: shadow.Options{
			TopicTemplate:  v.GetString("shadow.topic-template"),
			ConnectTimeout: v.GetDuration("shadow.connect-timeout"),
			PublishTimeout: v.GetDuration("shadow.connect-timeout"),
		},
	}, nil
}

func newClient() (*bluestar.Client, error) {
	if err := checkRequiredFlags("account.auth-id", "account.password"); err != nil {
		return nil, err
	}

	cfg, err := clientConfig(viper.GetViper())
	if err != nil {
		return nil, err
	}

	return bluestar.New(cfg)
}

// commandTimeout bounds a one-shot CLI operation, which may need a login,
// a retry and the call itself
func commandTimeout() time.Duration {
	return viper.GetDuration("api.timeout") * 3
}
