package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"igcomments/pkg/auth"
)

// authCmd represents the auth command
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage Instagram credentials",
	Long: `Manage stored Instagram credentials securely.

Credentials are stored using:
  - System keychain (when available)
  - Encrypted file with PBKDF2 key derivation
  - Environment variables (read-only fallback)

Never share your credentials or config files!`,
}

// loginCmd represents the auth login command
var loginCmd = &cobra.Command{
	Use:   "login [username]",
	Short: "Store Instagram credentials securely",
	Long: `Store Instagram credentials securely in the system keychain or encrypted file.

You will be prompted for:
  - Instagram username (if not provided)
  - Session ID (from sessionid cookie)
  - CSRF Token (from csrftoken cookie)
  - DS User ID (from ds_user_id cookie, optional)
  - User Agent (optional, press Enter to skip)

To get these values:
1. Log into Instagram in your browser
2. Open Developer Tools (F12)
3. Go to Application/Storage > Cookies
4. Copy the sessionid, csrftoken and ds_user_id values`,
	Example: `  # Interactive login
  igcomments auth login

  # Login with username
  igcomments auth login myusername`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLogin,
}

// logoutCmd represents the auth logout command
var logoutCmd = &cobra.Command{
	Use:   "logout <username>",
	Short: "Remove stored credentials",
	Args:  cobra.ExactArgs(1),
	RunE:  runLogout,
}

// listCmd represents the auth list command
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List all stored accounts",
	Long:  `List all stored Instagram accounts with sanitized credential information.`,
	RunE:  runList,
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(loginCmd)
	authCmd.AddCommand(logoutCmd)
	authCmd.AddCommand(listCmd)
}

func runLogin(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	reader := bufio.NewReader(os.Stdin)

	var username string
	if len(args) > 0 {
		username = args[0]
	} else {
		fmt.Print("Instagram username: ")
		line, err := reader.ReadString('\n')
		if err != nil {
			return err
		}
		username = strings.TrimSpace(line)
	}
	if username == "" {
		return fmt.Errorf("username is required")
	}

	sessionID, err := promptSecret("Session ID: ")
	if err != nil {
		return err
	}
	csrfToken, err := promptSecret("CSRF Token: ")
	if err != nil {
		return err
	}

	fmt.Print("DS User ID (optional): ")
	dsUserID, err := reader.ReadString('\n')
	if err != nil {
		return err
	}
	fmt.Print("User Agent (optional): ")
	userAgent, err := reader.ReadString('\n')
	if err != nil {
		return err
	}

	account := &auth.Account{
		Username:  username,
		SessionID: sessionID,
		CSRFToken: csrfToken,
		DSUserID:  strings.TrimSpace(dsUserID),
		UserAgent: strings.TrimSpace(userAgent),
	}

	if err := manager.Store(account); err != nil {
		return fmt.Errorf("failed to store credentials: %w", err)
	}

	fmt.Printf("Credentials stored for %s\n", username)
	return nil
}

func runLogout(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	username := args[0]
	if err := manager.Delete(username); err != nil {
		return err
	}

	fmt.Printf("Credentials removed for %s\n", username)
	return nil
}

func runList(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	accounts, err := manager.List()
	if err != nil {
		return err
	}
	if len(accounts) == 0 {
		fmt.Println("No stored accounts")
		return nil
	}

	for _, account := range accounts {
		sanitized := auth.SanitizeAccount(account)
		fmt.Printf("%s\n  session: %s\n  csrf: %s\n  modified: %s\n",
			sanitized.Username, sanitized.SessionID, sanitized.CSRFToken,
			sanitized.LastModified.Format("2006-01-02 15:04:05"))
	}
	return nil
}

// promptSecret reads a value without echoing it to the terminal
func promptSecret(prompt string) (string, error) {
	fmt.Print(prompt)
	data, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return "", err
	}
	value := strings.TrimSpace(string(data))
	if value == "" {
		return "", fmt.Errorf("value is required")
	}
	return value, nil
}
