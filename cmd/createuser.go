/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/booklend/apiserver/config"
	"github.com/booklend/apiserver/internal/db"
	"github.com/booklend/apiserver/internal/store"
	"github.com/booklend/apiserver/types"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/term"
)

var createUserRole string

// createUserCmd represents the create-user command.
var createUserCmd = &cobra.Command{
	Use:   "create-user <email>",
	Short: "Create a user account, prompting for the password",
	Long: `Creates a user account with the given email, reading the password
from the terminal without echo. Use --role librarian to bootstrap the
first librarian account.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		email := strings.TrimSpace(args[0])
		if email == "" {
			return errors.New("email is required")
		}

		role := types.Role(createUserRole)
		if !role.Valid() {
			return fmt.Errorf("invalid role %q", createUserRole)
		}

		fmt.Fprint(os.Stderr, "Password: ")
		password, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return fmt.Errorf("read password failed: %w", err)
		}
		if len(password) == 0 {
			return errors.New("password must not be empty")
		}

		hashed, err := bcrypt.GenerateFromPassword(password, bcrypt.DefaultCost)
		if err != nil {
			return err
		}

		cfg := config.LoadConfig()
		dbConn, err := db.Open(cmd.Context(), cfg)
		if err != nil {
			return fmt.Errorf("open database failed: %w", err)
		}
		defer dbConn.Close()

		user, err := store.NewUserRepository(dbConn).Create(cmd.Context(), types.User{
			Email:        email,
			Role:         role,
			PasswordHash: string(hashed),
		})
		if err != nil {
			if errors.Is(err, store.ErrDuplicateEmail) {
				return fmt.Errorf("user %s already exists", email)
			}
			return fmt.Errorf("create user failed: %w", err)
		}

		fmt.Printf("created %s %s (id %d)\n", user.Role, user.Email, user.ID)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(createUserCmd)
	createUserCmd.Flags().StringVar(&createUserRole, "role", string(types.RoleUser), "role for the new account (librarian or user)")
}
