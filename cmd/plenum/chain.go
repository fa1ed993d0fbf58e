package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"text/tabwriter"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"
)

// ChainsConfig holds all named chain profiles and tracks which one is active.
type ChainsConfig struct {
	Active string           `toml:"active"`
	Chains map[string]Chain `toml:"chains"`
}

// Chain is a named engine endpoint profile.
type Chain struct {
	URL         string `toml:"url"`
	Token       string `toml:"token,omitempty"`
	Description string `toml:"description,omitempty"`
}

func chainConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(home, ".config", "plenum")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", err
	}
	return filepath.Join(dir, "chains.toml"), nil
}

func loadChainsConfig() (ChainsConfig, error) {
	path, err := chainConfigPath()
	if err != nil {
		return ChainsConfig{}, err
	}
	var cfg ChainsConfig
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		if os.IsNotExist(err) {
			return ChainsConfig{Chains: map[string]Chain{}}, nil
		}
		return ChainsConfig{}, err
	}
	if cfg.Chains == nil {
		cfg.Chains = map[string]Chain{}
	}
	return cfg, nil
}

func saveChainsConfig(cfg ChainsConfig) error {
	path, err := chainConfigPath()
	if err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()
	return toml.NewEncoder(f).Encode(cfg)
}

// Cached active chain values, loaded once per process.
var (
	chainOnce      sync.Once
	cachedChainURL string
	cachedToken    string
)

func loadActiveChainOnce() {
	chainOnce.Do(func() {
		cfg, err := loadChainsConfig()
		if err != nil || cfg.Active == "" {
			return
		}
		c, ok := cfg.Chains[cfg.Active]
		if !ok {
			return
		}
		cachedChainURL = c.URL
		cachedToken = c.Token
	})
}

func activeChainURL() string   { loadActiveChainOnce(); return cachedChainURL }
func activeChainToken() string { loadActiveChainOnce(); return cachedToken }

var chainCmd = &cobra.Command{
	Use:     "chain",
	Short:   "Manage named chain profiles",
	GroupID: "system",
	// Skip the client setup — all chain subcommands are local file operations.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
}

var chainAddCmd = &cobra.Command{
	Use:   "add <name> <url>",
	Short: "Add or update a named chain profile",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		name, url := args[0], args[1]
		token, _ := cmd.Flags().GetString("token")
		desc, _ := cmd.Flags().GetString("description")

		cfg, err := loadChainsConfig()
		if err != nil {
			return err
		}
		cfg.Chains[name] = Chain{URL: url, Token: token, Description: desc}
		if err := saveChainsConfig(cfg); err != nil {
			return err
		}
		fmt.Printf("chain %q added (%s)\n", name, url)
		return nil
	},
}

var chainRemoveCmd = &cobra.Command{
	Use:   "remove <name>",
	Short: "Remove a named chain profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]

		cfg, err := loadChainsConfig()
		if err != nil {
			return err
		}
		if _, ok := cfg.Chains[name]; !ok {
			return fmt.Errorf("chain %q not found", name)
		}
		delete(cfg.Chains, name)
		if cfg.Active == name {
			cfg.Active = ""
		}
		if err := saveChainsConfig(cfg); err != nil {
			return err
		}
		fmt.Printf("chain %q removed\n", name)
		return nil
	},
}

var chainListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all chain profiles",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadChainsConfig()
		if err != nil {
			return err
		}
		if len(cfg.Chains) == 0 {
			fmt.Println("no chains configured")
			return nil
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "  NAME\tURL\tTOKEN\tDESCRIPTION")
		for name, c := range cfg.Chains {
			marker := "  "
			if name == cfg.Active {
				marker = "* "
			}
			token := ""
			if c.Token != "" {
				if len(c.Token) > 8 {
					token = c.Token[:8] + "..."
				} else {
					token = c.Token
				}
			}
			fmt.Fprintf(w, "%s%s\t%s\t%s\t%s\n", marker, name, c.URL, token, c.Description)
		}
		return w.Flush()
	},
}

var chainUseCmd = &cobra.Command{
	Use:   "use [name]",
	Short: "Set the active chain profile (no args clears it)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadChainsConfig()
		if err != nil {
			return err
		}
		if len(args) == 0 {
			cfg.Active = ""
			if err := saveChainsConfig(cfg); err != nil {
				return err
			}
			fmt.Println("active chain cleared")
			return nil
		}
		name := args[0]
		if _, ok := cfg.Chains[name]; !ok {
			return fmt.Errorf("chain %q not found", name)
		}
		cfg.Active = name
		if err := saveChainsConfig(cfg); err != nil {
			return err
		}
		fmt.Printf("active chain set to %q\n", name)
		return nil
	},
}

var chainShowCmd = &cobra.Command{
	Use:   "show [name]",
	Short: "Show details for a chain profile (defaults to active)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadChainsConfig()
		if err != nil {
			return err
		}

		name := cfg.Active
		if len(args) == 1 {
			name = args[0]
		}
		if name == "" {
			return fmt.Errorf("no active chain; specify a name or run 'plenum chain use <name>'")
		}

		c, ok := cfg.Chains[name]
		if !ok {
			return fmt.Errorf("chain %q not found", name)
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		active := ""
		if name == cfg.Active {
			active = " (active)"
		}
		fmt.Fprintf(w, "name:\t%s%s\n", name, active)
		if c.Description != "" {
			fmt.Fprintf(w, "description:\t%s\n", c.Description)
		}
		fmt.Fprintf(w, "url:\t%s\n", c.URL)
		if c.Token != "" {
			masked := c.Token
			if len(masked) > 8 {
				masked = masked[:8] + strings.Repeat("*", len(masked)-8)
			}
			fmt.Fprintf(w, "token:\t%s\n", masked)
		}
		return w.Flush()
	},
}

func init() {
	chainAddCmd.Flags().String("token", "", "bearer token for authentication")
	chainAddCmd.Flags().String("description", "", "human-readable description of the chain")

	chainCmd.AddCommand(chainAddCmd)
	chainCmd.AddCommand(chainRemoveCmd)
	chainCmd.AddCommand(chainListCmd)
	chainCmd.AddCommand(chainUseCmd)
	chainCmd.AddCommand(chainShowCmd)
}
