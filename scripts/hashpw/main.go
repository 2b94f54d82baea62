// Command hashpw derives the ADMIN_PASSWORD_HASH and ADMIN_PASSWORD_SALT
// values for a given operator password. The password is read from stdin so
// it never lands in shell history.
package main

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"log"
	"os"
	"strings"

	"textline/internal/auth"
)

func main() {
	fmt.Fprint(os.Stderr, "password: ")
	reader := bufio.NewReader(os.Stdin)
	password, err := reader.ReadString('\n')
	if err != nil {
		log.Fatalf("read password: %v", err)
	}
	password = strings.TrimRight(password, "\r\n")
	if password == "" {
		log.Fatal("empty password")
	}

	salt, err := auth.RandomBytes(16)
	if err != nil {
		log.Fatalf("generate salt: %v", err)
	}
	verifier := auth.DeriveVerifier(password, salt, auth.DefaultIterations)

	fmt.Printf("ADMIN_PASSWORD_HASH=%s\n", hex.EncodeToString(verifier))
	fmt.Printf("ADMIN_PASSWORD_SALT=%s\n", hex.EncodeToString(salt))
}
