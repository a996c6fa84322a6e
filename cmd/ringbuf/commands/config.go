package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/haivivi/ringbuf/pkg/cli"
)

var configJQ string

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management",
	Long: `Manage ringbuf buffer profiles.

Configuration is stored in ~/.ringbuf/ringbuf/config.yaml.
Each profile names a buffer layout: ring sizes, delimiter and spool directory.
Fields left unset fall back to the built-in defaults.`,
}

var configAddProfileCmd = &cobra.Command{
	Use:   "add-profile <name>",
	Short: "Add or replace a profile",
	Long: `Add or replace a profile. Only the flags given are stored.

Examples:
  ringbuf config add-profile uart --delim 0d0a --data-cap 8192
  ringbuf config add-profile hdlc --delim 7e --raw-cap 512 --spool-dir /var/lib/ringbuf`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		p := &cli.Profile{Name: name}
		for _, lf := range layoutFlags {
			f := cmd.Flags().Lookup(lf.flag)
			if f == nil || !f.Changed {
				continue
			}
			if err := p.Set(lf.key, f.Value.String()); err != nil {
				return fmt.Errorf("--%s: %w", lf.flag, err)
			}
		}
		if dir, _ := cmd.Flags().GetString("spool-dir"); dir != "" {
			p.SpoolDir = dir
		}
		if _, err := checkLayout(p.WithDefaults()); err != nil {
			return fmt.Errorf("profile %q: %w", name, err)
		}

		cfg, err := getConfig()
		if err != nil {
			return err
		}
		if err := cfg.AddProfile(name, p); err != nil {
			return err
		}
		cli.PrintSuccess(os.Stdout, "Profile '%s' added", name)
		return nil
	},
}

var configDeleteProfileCmd = &cobra.Command{
	Use:   "delete-profile <name>",
	Short: "Delete a profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := getConfig()
		if err != nil {
			return err
		}
		if err := cfg.DeleteProfile(args[0]); err != nil {
			return err
		}
		cli.PrintSuccess(os.Stdout, "Profile '%s' deleted", args[0])
		return nil
	},
}

var configUseProfileCmd = &cobra.Command{
	Use:   "use-profile <name>",
	Short: "Set the current profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := getConfig()
		if err != nil {
			return err
		}
		if err := cfg.UseProfile(args[0]); err != nil {
			return err
		}
		cli.PrintSuccess(os.Stdout, "Switched to profile '%s'", args[0])
		return nil
	},
}

var configCurrentProfileCmd = &cobra.Command{
	Use:   "current-profile",
	Short: "Show the current profile",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := getConfig()
		if err != nil {
			return err
		}
		if cfg.CurrentProfile == "" {
			fmt.Println("No current profile set")
		} else {
			fmt.Println(cfg.CurrentProfile)
		}
		return nil
	},
}

// profileList is the list-profiles result.
type profileList struct {
	Current  string         `json:"current" yaml:"current" msgpack:"current"`
	Profiles []*cli.Profile `json:"profiles" yaml:"profiles" msgpack:"profiles"`
}

func (l *profileList) TableHeader() []string {
	return []string{"", "NAME", "DATA", "INDEX", "RAW", "DELIM", "ORDER"}
}

func (l *profileList) TableRows() [][]string {
	rows := make([][]string, len(l.Profiles))
	for i, p := range l.Profiles {
		marker := ""
		if p.Name == l.Current {
			marker = "*"
		}
		rows[i] = []string{
			marker, p.Name, fmt.Sprint(p.DataCapacity), fmt.Sprint(p.IndexWords),
			fmt.Sprint(p.RawCapacity), p.Delimiter, p.ByteOrder,
		}
	}
	return rows
}

var configListProfilesCmd = &cobra.Command{
	Use:   "list-profiles",
	Short: "List all profiles with defaults applied",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := getConfig()
		if err != nil {
			return err
		}
		list := &profileList{Current: cfg.CurrentProfile, Profiles: []*cli.Profile{}}
		for _, name := range cfg.ListProfiles() {
			list.Profiles = append(list.Profiles, cfg.Profiles[name].WithDefaults())
		}
		return outputQuery(list, configJQ)
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <profile> <key> <value>",
	Short: "Set one field of a profile",
	Long: `Set one field of a profile, creating the profile if needed.

Keys: data_capacity, index_words, raw_capacity, delimiter, delimiter_size,
byte_order, keep_delimiter, spool_dir, chunk_size.`,
	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := getConfig()
		if err != nil {
			return err
		}
		name, key, value := args[0], args[1], args[2]
		p, err := cfg.GetProfile(name)
		if errors.Is(err, cli.ErrProfileNotFound) {
			p = &cli.Profile{Name: name}
		} else if err != nil {
			return err
		}
		updated := *p
		if err := updated.Set(key, value); err != nil {
			return err
		}
		if _, err := checkLayout(updated.WithDefaults()); err != nil {
			return fmt.Errorf("profile %q: %w", name, err)
		}
		if err := cfg.AddProfile(name, &updated); err != nil {
			return err
		}
		cli.PrintSuccess(os.Stdout, "Profile '%s': %s = %s", name, key, value)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show [profile]",
	Short: "Show a profile with defaults applied",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) > 0 {
			profileName = args[0]
		}
		p, err := getProfile()
		if err != nil {
			return err
		}
		return output(p)
	},
}

var configViewCmd = &cobra.Command{
	Use:   "view",
	Short: "View full configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := getConfig()
		if err != nil {
			return err
		}
		return output(cfg)
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config file path",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := getConfig()
		if err != nil {
			return err
		}
		fmt.Println(cfg.Path())
		return nil
	},
}

var configSchemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the JSON Schema of a profile",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := cli.ProfileSchema()
		if err != nil {
			return err
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(s)
	},
}

// validation is one profile's check result.
type validation struct {
	Profile string `json:"profile" yaml:"profile" msgpack:"profile"`
	Valid   bool   `json:"valid" yaml:"valid" msgpack:"valid"`
	Error   string `json:"error,omitempty" yaml:"error,omitempty" msgpack:"error,omitempty"`
}

type validationList struct {
	Results []validation `json:"results" yaml:"results" msgpack:"results"`
}

func (l *validationList) TableHeader() []string {
	return []string{"PROFILE", "VALID", "ERROR"}
}

func (l *validationList) TableRows() [][]string {
	rows := make([][]string, len(l.Results))
	for i, r := range l.Results {
		rows[i] = []string{r.Profile, fmt.Sprint(r.Valid), r.Error}
	}
	return rows
}

var configValidateCmd = &cobra.Command{
	Use:   "validate [profile...]",
	Short: "Check profiles against the schema and layout rules",
	Long: `Check profiles against the JSON Schema and the buffer layout rules
(data ring at least as large as the staging ring, delimiter fits, ...).
Without arguments every profile is checked. The exit status is 1 if any
profile is invalid.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := getConfig()
		if err != nil {
			return err
		}
		names := args
		if len(names) == 0 {
			names = cfg.ListProfiles()
		}
		list := &validationList{Results: []validation{}}
		invalid := 0
		for _, name := range names {
			v := validation{Profile: name}
			if err := validateProfile(cfg, name); err != nil {
				v.Error = err.Error()
				invalid++
			} else {
				v.Valid = true
			}
			list.Results = append(list.Results, v)
		}
		if err := outputQuery(list, configJQ); err != nil {
			return err
		}
		if invalid > 0 {
			return fmt.Errorf("%d of %d profiles invalid", invalid, len(names))
		}
		return nil
	},
}

func validateProfile(cfg *cli.Config, name string) error {
	p, err := cfg.GetProfile(name)
	if err != nil {
		return err
	}
	if err := cli.ValidateProfile(p); err != nil {
		return err
	}
	_, err = checkLayout(p.WithDefaults())
	return err
}

func init() {
	addLayoutFlags(configAddProfileCmd.Flags())
	configAddProfileCmd.Flags().String("spool-dir", "", "badger spool directory")
	configListProfilesCmd.Flags().StringVar(&configJQ, "jq", "", "jq expression applied to the result")
	configValidateCmd.Flags().StringVar(&configJQ, "jq", "", "jq expression applied to the result")

	configCmd.AddCommand(configAddProfileCmd)
	configCmd.AddCommand(configDeleteProfileCmd)
	configCmd.AddCommand(configUseProfileCmd)
	configCmd.AddCommand(configCurrentProfileCmd)
	configCmd.AddCommand(configListProfilesCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configViewCmd)
	configCmd.AddCommand(configPathCmd)
	configCmd.AddCommand(configSchemaCmd)
	configCmd.AddCommand(configValidateCmd)
	rootCmd.AddCommand(configCmd)
}
