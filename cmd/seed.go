/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"errors"
	"fmt"

	"github.com/booklend/apiserver/config"
	"github.com/booklend/apiserver/internal/db"
	"github.com/booklend/apiserver/internal/store"
	"github.com/booklend/apiserver/types"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
)

const seedPassword = "password123"

var seedUsers = []struct {
	email string
	role  types.Role
}{
	{"librarian@library.com", types.RoleLibrarian},
	{"user1@example.com", types.RoleUser},
	{"user2@example.com", types.RoleUser},
}

var seedBooks = []struct {
	title    string
	author   string
	quantity int
}{
	{"The Great Gatsby", "F. Scott Fitzgerald", 5},
	{"To Kill a Mockingbird", "Harper Lee", 3},
	{"1984", "George Orwell", 4},
	{"Pride and Prejudice", "Jane Austen", 2},
	{"The Hobbit", "J.R.R. Tolkien", 3},
	{"Harry Potter and the Sorcerer's Stone", "J.K. Rowling", 4},
	{"The Catcher in the Rye", "J.D. Salinger", 2},
	{"Lord of the Flies", "William Golding", 3},
	{"Animal Farm", "George Orwell", 5},
	{"Brave New World", "Aldous Huxley", 3},
}

// seedCmd represents the seed command.
var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Insert development users and sample books",
	Long: `Inserts a default librarian, two regular users (all with the
password "password123"), and ten sample books. Intended for local
development after "booklend migrate up". Users that already exist are
skipped.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()

		dbConn, err := db.Open(cmd.Context(), cfg)
		if err != nil {
			return fmt.Errorf("open database failed: %w", err)
		}
		defer dbConn.Close()

		hashed, err := bcrypt.GenerateFromPassword([]byte(seedPassword), bcrypt.DefaultCost)
		if err != nil {
			return err
		}

		userRepo := store.NewUserRepository(dbConn)
		for _, seed := range seedUsers {
			_, err := userRepo.Create(cmd.Context(), types.User{
				Email:        seed.email,
				Role:         seed.role,
				PasswordHash: string(hashed),
			})
			if err != nil {
				if errors.Is(err, store.ErrDuplicateEmail) {
					fmt.Printf("user %s already exists, skipping\n", seed.email)
					continue
				}
				return fmt.Errorf("create user %s failed: %w", seed.email, err)
			}
			fmt.Printf("created %s %s\n", seed.role, seed.email)
		}

		bookRepo := store.NewBookRepository(dbConn)
		for _, seed := range seedBooks {
			book, err := bookRepo.Create(cmd.Context(), types.Book{
				Title:    seed.title,
				Author:   seed.author,
				Quantity: seed.quantity,
			})
			if err != nil {
				return fmt.Errorf("create book %q failed: %w", seed.title, err)
			}
			fmt.Printf("created book %d: %s\n", book.ID, book.Title)
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(seedCmd)
}
