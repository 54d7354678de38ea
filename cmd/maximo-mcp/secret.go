package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/fieldstack/maximo-mcp/internal/secrets"
)

func cmdSecret(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: maximo-mcp secret <set|get|list|delete> [args...]")
	}

	env := loadEnv()
	enc, err := secrets.LoadOrCreateIdentity(env.AgeKeyPath)
	if err != nil {
		return fmt.Errorf("load age identity: %w", err)
	}
	sm := secrets.NewManager(env.SecretsFile, enc)

	sub := args[0]
	rest := args[1:]

	switch sub {
	case "set":
		if len(rest) < 1 {
			return fmt.Errorf("usage: maximo-mcp secret set <key> [value]")
		}
		value := ""
		if len(rest) >= 2 {
			value = rest[1]
		} else {
			// Read the value from stdin so it stays out of shell history.
			fmt.Fprintf(os.Stderr, "value for %q: ", rest[0])
			line, err := bufio.NewReader(os.Stdin).ReadString('\n')
			if err != nil {
				return fmt.Errorf("read value: %w", err)
			}
			value = strings.TrimRight(line, "\r\n")
		}
		if err := sm.Put(rest[0], []byte(value)); err != nil {
			return fmt.Errorf("set secret: %w", err)
		}
		fmt.Printf("Secret %q set\n", rest[0])

	case "get":
		if len(rest) < 1 {
			return fmt.Errorf("usage: maximo-mcp secret get <key>")
		}
		val, err := sm.Get(rest[0])
		if err != nil {
			return fmt.Errorf("get secret: %w", err)
		}
		fmt.Print(string(val))

	case "list":
		keys, err := sm.List()
		if err != nil {
			return fmt.Errorf("list secrets: %w", err)
		}
		for _, k := range keys {
			fmt.Println(k)
		}

	case "delete":
		if len(rest) < 1 {
			return fmt.Errorf("usage: maximo-mcp secret delete <key>")
		}
		if err := sm.Delete(rest[0]); err != nil {
			return fmt.Errorf("delete secret: %w", err)
		}
		fmt.Printf("Secret %q deleted\n", rest[0])

	default:
		return fmt.Errorf("unknown secret command: %s\nUsage: maximo-mcp secret <set|get|list|delete>", sub)
	}

	return nil
}
