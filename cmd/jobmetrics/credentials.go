package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/pcmops/jobmetrics/internal/config"
	"github.com/pcmops/jobmetrics/internal/es"
)

// resolveCredentials prefers config/environment credentials, then prompts on
// a terminal (without echoing the password), then falls back to reading two
// lines from piped stdin. An empty pair means an unauthenticated cluster.
func resolveCredentials(cfg *config.Config) (es.Credentials, error) {
	if cfg.ES.Username != "" {
		return es.Credentials{Username: cfg.ES.Username, Password: cfg.ES.Password}, nil
	}

	if term.IsTerminal(int(os.Stdin.Fd())) {
		return promptCredentials(os.Stdin, os.Stderr)
	}

	reader := bufio.NewReader(os.Stdin)
	username, err := readLine(reader)
	if err != nil {
		if err == io.EOF {
			return es.Credentials{}, nil
		}
		return es.Credentials{}, fmt.Errorf("read username from stdin: %w", err)
	}
	password, err := readLine(reader)
	if err != nil && err != io.EOF {
		return es.Credentials{}, fmt.Errorf("read password from stdin: %w", err)
	}
	return es.Credentials{Username: username, Password: password}, nil
}

func promptCredentials(in *os.File, out io.Writer) (es.Credentials, error) {
	fmt.Fprint(out, "Username: ")
	username, err := readLine(bufio.NewReader(in))
	if err != nil {
		return es.Credentials{}, fmt.Errorf("read username: %w", err)
	}

	fmt.Fprint(out, "Password: ")
	password, err := term.ReadPassword(int(in.Fd()))
	fmt.Fprintln(out)
	if err != nil {
		return es.Credentials{}, fmt.Errorf("read password: %w", err)
	}

	return es.Credentials{Username: username, Password: string(password)}, nil
}

func readLine(r *bufio.Reader) (string, error) {
	line, err := r.ReadString('\n')
	line = strings.TrimRight(line, "\r\n")
	if err != nil && !(err == io.EOF && line != "") {
		return line, err
	}
	return line, nil
}
