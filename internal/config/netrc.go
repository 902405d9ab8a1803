package config

import (
	"bufio"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// NetrcEntry holds the login for one machine
type NetrcEntry struct {
	Machine  string
	Login    string
	Password string
	Account  string
}

// Netrc is a parsed netrc file. Machine names are matched case-insensitively.
type Netrc struct {
	entries map[string]*NetrcEntry
	Default *NetrcEntry
}

// NetrcPath returns the default netrc location: ~/.netrc, or %USERPROFILE%\_netrc on Windows
func NetrcPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	if runtime.GOOS == "windows" {
		return filepath.Join(home, "_netrc")
	}
	return filepath.Join(home, ".netrc")
}

// LoadNetrc parses the netrc file at NetrcPath
func LoadNetrc() (*Netrc, error) {
	path := NetrcPath()
	if path == "" {
		return nil, fmt.Errorf("cannot determine netrc path")
	}
	return ParseNetrc(path)
}

// ParseNetrc parses the netrc file at path
func ParseNetrc(path string) (*Netrc, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening netrc file: %w", err)
	}
	defer file.Close()

	n, err := readNetrc(file)
	if err != nil {
		return nil, fmt.Errorf("reading netrc file %s: %w", path, err)
	}
	return n, nil
}

func readNetrc(r io.Reader) (*Netrc, error) {
	n := &Netrc{entries: make(map[string]*NetrcEntry)}

	var tokens []string
	scanner := bufio.NewScanner(r)
	inMacro := false
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		// macdef bodies run until the next blank line
		if inMacro {
			inMacro = line != ""
			continue
		}
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		lineTokens := tokenizeLine(line)
		for i, tok := range lineTokens {
			if strings.EqualFold(tok, "macdef") {
				lineTokens = lineTokens[:i]
				inMacro = true
				break
			}
		}
		tokens = append(tokens, lineTokens...)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	var current *NetrcEntry
	next := func(i *int) (string, bool) {
		if *i+1 >= len(tokens) {
			return "", false
		}
		*i++
		return tokens[*i], true
	}

	for i := 0; i < len(tokens); i++ {
		switch strings.ToLower(tokens[i]) {
		case "machine":
			host, ok := next(&i)
			if !ok {
				return nil, fmt.Errorf("machine without a name")
			}
			current = &NetrcEntry{Machine: host}
			n.entries[strings.ToLower(host)] = current
		case "default":
			current = &NetrcEntry{}
			n.Default = current
		case "login", "password", "account":
			key := strings.ToLower(tokens[i])
			value, ok := next(&i)
			if !ok || current == nil {
				continue
			}
			switch key {
			case "login":
				current.Login = value
			case "password":
				current.Password = value
			case "account":
				current.Account = value
			}
		}
	}

	return n, nil
}

// tokenizeLine splits a line on blanks, keeping quoted values together
func tokenizeLine(line string) []string {
	var tokens []string
	var current strings.Builder
	var quote byte

	for i := 0; i < len(line); i++ {
		ch := line[i]

		if quote != 0 {
			if ch == quote {
				quote = 0
				tokens = append(tokens, current.String())
				current.Reset()
			} else {
				current.WriteByte(ch)
			}
			continue
		}

		switch ch {
		case '"', '\'':
			quote = ch
		case ' ', '\t':
			if current.Len() > 0 {
				tokens = append(tokens, current.String())
				current.Reset()
			}
		default:
			current.WriteByte(ch)
		}
	}

	if current.Len() > 0 {
		tokens = append(tokens, current.String())
	}
	return tokens
}

// FindEntry returns the entry for host, falling back to the default entry
func (n *Netrc) FindEntry(host string) *NetrcEntry {
	if n == nil {
		return nil
	}
	if entry, ok := n.entries[strings.ToLower(host)]; ok {
		return entry
	}
	return n.Default
}

// Lookup returns the login for host. Its signature matches protocol.CredentialFunc.
func (n *Netrc) Lookup(host string) (login, password string, ok bool) {
	entry := n.FindEntry(host)
	if entry == nil {
		return "", "", false
	}
	return entry.Login, entry.Password, true
}

// GetCredentials returns the login for the host of rawURL
func (n *Netrc) GetCredentials(rawURL string) (login, password string, found bool) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", "", false
	}
	return n.Lookup(parsed.Hostname())
}

// HasEntries reports whether any machine or default entry was parsed
func (n *Netrc) HasEntries() bool {
	if n == nil {
		return false
	}
	return len(n.entries) > 0 || n.Default != nil
}

// String lists the machines with passwords masked
func (n *Netrc) String() string {
	if n == nil {
		return "<nil>"
	}

	var sb strings.Builder
	sb.WriteString("Netrc{\n")
	for host, entry := range n.entries {
		fmt.Fprintf(&sb, "  machine %s login %s password ***\n", host, entry.Login)
	}
	if n.Default != nil {
		fmt.Fprintf(&sb, "  default login %s password ***\n", n.Default.Login)
	}
	sb.WriteString("}")
	return sb.String()
}
