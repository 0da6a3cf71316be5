package cred

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"fmt"
)

// Persisted token encoding: a little-endian uint32 kind tag followed by the
// UTF-8 token bytes. The explicit tagged form replaces any struct-layout
// assumptions and survives round trips through string-only secret stores
// via base64.

// EncodeToken serializes a token to its tagged binary form.
func EncodeToken(t *Token) ([]byte, error) {
	if t == nil {
		return nil, fmt.Errorf("cannot encode nil token")
	}
	if t.Kind == KindUnknown {
		return nil, fmt.Errorf("cannot encode token of unknown kind")
	}

	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.LittleEndian, uint32(t.Kind)); err != nil {
		return nil, fmt.Errorf("failed to write token tag: %w", err)
	}
	buf.WriteString(t.Value)

	return buf.Bytes(), nil
}

// DecodeToken parses the tagged binary form back into a token.
func DecodeToken(data []byte) (*Token, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("token encoding truncated: %d bytes", len(data))
	}

	tag := binary.LittleEndian.Uint32(data[:4])
	kind := TokenKind(tag)
	switch kind {
	case KindAccess, KindRefresh, KindPersonal, KindFederated:
	default:
		return nil, fmt.Errorf("unrecognized token tag %d", tag)
	}

	return &Token{Value: string(data[4:]), Kind: kind}, nil
}

// EncodeTokenString serializes a token for storage in a string-valued
// secret store.
func EncodeTokenString(t *Token) (string, error) {
	data, err := EncodeToken(t)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// DecodeTokenString reverses EncodeTokenString.
func DecodeTokenString(s string) (*Token, error) {
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("token encoding is not valid base64: %w", err)
	}
	return DecodeToken(data)
}
