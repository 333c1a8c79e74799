package main

import (
	"fmt"
	"os"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// Prints the bcrypt hash to put in ADMIN_PASSWORD_HASH.
// Usage: go run scripts/admin_hash.go <password>
func main() {
	if len(os.Args) < 2 || strings.TrimSpace(os.Args[1]) == "" {
		fmt.Println("usage: admin_hash <password>")
		os.Exit(1)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(os.Args[1]), bcrypt.DefaultCost)
	if err != nil {
		fmt.Println("Failed to hash password:", err)
		os.Exit(1)
	}
	fmt.Println(string(hash))
}
