package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"
)

func newTokenCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "token [discord|slack]",
		Short: "Store chat platform credentials in the config file",
		Long: `Prompts for the platform's tokens without echoing them and writes
them into the Deskline config file, setting transport.platform as well.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTokenSet(cmd, configPath, args[0])
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "deskline.yaml", "path to Deskline config file")
	return cmd
}

func runTokenSet(cmd *cobra.Command, configPath, platform string) error {
	out := cmd.OutOrStdout()

	// Work on the raw YAML document so fields we don't touch survive.
	doc := map[string]interface{}{}
	if data, err := os.ReadFile(configPath); err == nil {
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return fmt.Errorf("parse %s: %w", configPath, err)
		}
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("read %s: %w", configPath, err)
	}

	transportDoc := ensureMap(doc, "transport")
	transportDoc["platform"] = platform

	switch platform {
	case "discord":
		token, err := promptSecret(cmd, "Discord bot token: ")
		if err != nil {
			return err
		}
		ensureMap(transportDoc, "discord")["bot_token"] = token

	case "slack":
		appToken, err := promptSecret(cmd, "Slack app token (xapp-...): ")
		if err != nil {
			return err
		}
		botToken, err := promptSecret(cmd, "Slack bot token (xoxb-...): ")
		if err != nil {
			return err
		}
		slackDoc := ensureMap(transportDoc, "slack")
		slackDoc["app_token"] = appToken
		slackDoc["bot_token"] = botToken

	default:
		return fmt.Errorf("unsupported platform %q (use discord or slack)", platform)
	}

	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("write %s: %w", configPath, err)
	}

	fmt.Fprintf(out, "Wrote %s credentials to %s\n", platform, configPath)
	return nil
}

// ensureMap returns doc[key] as a map, creating it if absent.
func ensureMap(doc map[string]interface{}, key string) map[string]interface{} {
	if m, ok := doc[key].(map[string]interface{}); ok {
		return m
	}
	m := map[string]interface{}{}
	doc[key] = m
	return m
}

// promptSecret reads a token without echo when stdin is a terminal, and
// falls back to plain line reading otherwise (tests, pipes).
func promptSecret(cmd *cobra.Command, prompt string) (string, error) {
	out := cmd.OutOrStdout()
	fmt.Fprint(out, prompt)

	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		raw, err := term.ReadPassword(fd)
		fmt.Fprintln(out)
		if err != nil {
			return "", fmt.Errorf("read token: %w", err)
		}
		return strings.TrimSpace(string(raw)), nil
	}

	scanner := bufio.NewScanner(cmd.InOrStdin())
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return "", fmt.Errorf("read token: %w", err)
		}
		return "", fmt.Errorf("read token: empty input")
	}
	return strings.TrimSpace(scanner.Text()), nil
}
