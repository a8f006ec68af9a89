package main

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"clinic-records/client"
	"clinic-records/schema"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type app struct {
	v      *viper.Viper
	client *client.Client
}

func newRootCmd() *cobra.Command {
	a := &app{v: viper.New()}

	root := &cobra.Command{
		Use:           "clinicctl",
		Short:         "Manage clinic patient records",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd)
		},
	}

	flags := root.PersistentFlags()
	flags.String("url", "http://localhost:8080", "base URL of the records service")
	flags.String("token", "", "session token")
	flags.String("config", "", "config file (default $HOME/.clinicctl.yaml)")
	flags.Duration("timeout", 10*time.Second, "request timeout")
	_ = a.v.BindPFlag("url", flags.Lookup("url"))
	_ = a.v.BindPFlag("token", flags.Lookup("token"))
	_ = a.v.BindPFlag("timeout", flags.Lookup("timeout"))

	a.v.SetEnvPrefix("CLINIC")
	a.v.AutomaticEnv()

	root.AddCommand(a.recordsCmd(), a.transactionsCmd())
	return root
}

func (a *app) init(cmd *cobra.Command) error {
	if file, _ := cmd.Flags().GetString("config"); file != "" {
		a.v.SetConfigFile(file)
	} else {
		a.v.SetConfigName(".clinicctl")
		a.v.SetConfigType("yaml")
		a.v.AddConfigPath("$HOME")
	}
	if err := a.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("read config: %w", err)
		}
	}

	a.client = client.New(a.v.GetString("url"),
		client.WithToken(a.v.GetString("token")),
		client.WithTimeout(a.v.GetDuration("timeout")),
	)
	return nil
}

// fieldFlags declares one string flag per input field, skipping the ones
// taken as positional arguments.
func fieldFlags(fs *pflag.FlagSet, v any, positional ...string) {
	for _, f := range schema.Describe(v) {
		if slices.Contains(positional, f.Name) {
			continue
		}
		fs.String(f.Name, "", usage(f))
	}
}

func usage(f schema.Field) string {
	u := f.Label
	switch f.Kind {
	case schema.KindSelect:
		u += " (" + strings.Join(f.Options, "|") + ")"
	case schema.KindDate:
		u += " (" + schema.DateLayout + ")"
	case schema.KindNumber:
		if f.Min != "" {
			u += " (> " + f.Min + ")"
		}
	}
	return u
}

// fieldValues fills dst from the field flags plus the positional values.
func fieldValues(fs *pflag.FlagSet, dst any, positional map[string]string) error {
	values := make(map[string]string, len(positional))
	for _, f := range schema.Describe(dst) {
		if v, ok := positional[f.Name]; ok {
			values[f.Name] = v
			continue
		}
		if fs.Changed(f.Name) {
			values[f.Name], _ = fs.GetString(f.Name)
		}
	}
	return schema.FromStrings(dst, values)
}

// report prints the notification for op and passes err through.
func report(cmd *cobra.Command, op client.Operation, err error) error {
	n := client.NotificationFor(op, err)
	fmt.Fprintf(cmd.ErrOrStderr(), "%s: %s\n", n.Title, n.Message)
	return err
}
