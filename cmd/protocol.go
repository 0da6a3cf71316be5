package cmd

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"credhelper/internal/cred"
	"credhelper/internal/target"
)

// credentialRequest is one parsed git-credential protocol message.
type credentialRequest struct {
	Protocol string
	Host     string
	Path     string
	Username string
	Password string
	URL      string
}

// parseRequest reads "key=value" lines up to a blank line or EOF. Unknown
// keys are ignored; Git is allowed to send attributes we do not use.
func parseRequest(r io.Reader) (*credentialRequest, error) {
	req := &credentialRequest{}
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			break
		}
		key, value, found := strings.Cut(line, "=")
		if !found {
			return nil, fmt.Errorf("malformed credential request line %q", line)
		}
		switch key {
		case "protocol":
			req.Protocol = value
		case "host":
			req.Host = value
		case "path":
			req.Path = value
		case "username":
			req.Username = value
		case "password":
			req.Password = value
		case "url":
			req.URL = value
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read credential request: %w", err)
	}
	return req, nil
}

// toTarget converts the request into a target. The url attribute, when
// present, wins over the split attributes.
func (r *credentialRequest) toTarget() (*target.Target, error) {
	if r.URL != "" {
		return target.Parse(r.URL)
	}
	host := r.Host
	if r.Username != "" {
		host = r.Username + "@" + host
	}
	return target.FromComponents(r.Protocol, host, r.Path)
}

// writeCredential emits the response Git expects on stdout.
func writeCredential(w io.Writer, c cred.Credential) error {
	if _, err := fmt.Fprintf(w, "username=%s\n", c.Username); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "password=%s\n", c.Password); err != nil {
		return err
	}
	return nil
}
