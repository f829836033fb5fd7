package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/eringen/folio/auth"
)

// runHashPassword hashes the argument, or a line read from stdin so the
// password stays out of shell history.
func runHashPassword(args []string) error {
	var password string
	if len(args) > 0 {
		password = args[0]
	} else {
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && line == "" {
			return fmt.Errorf("reading password: %w", err)
		}
		password = strings.TrimRight(line, "\r\n")
	}
	if password == "" {
		return errors.New("password is empty")
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	fmt.Println(hash)
	return nil
}
