package identity

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// CanonicalizeJSON rebuilds the JSON value encoded in raw with object keys
// sorted lexicographically at every depth, drops any key literally named
// "signature" at any depth, preserves array order, and re-serializes to
// the minimal (compact, unescaped-where-possible) JSON form produced by
// encoding/json. Numbers are decoded as json.Number so their original
// textual form survives the round trip unchanged, keeping this bit-
// identical to whatever the server's verifier does with the same bytes.
func CanonicalizeJSON(raw []byte) ([]byte, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var value any
	if err := dec.Decode(&value); err != nil {
		return nil, fmt.Errorf("identity: decode for canonicalization: %w", err)
	}

	return canonicalizeValue(value)
}

// canonicalizeValue strips "signature" keys and re-marshals. encoding/json
// already sorts map[string]any keys lexicographically when marshaling, so
// the only manual work is the recursive filter.
func canonicalizeValue(v any) ([]byte, error) {
	filtered := stripSignature(v)
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(filtered); err != nil {
		return nil, fmt.Errorf("identity: marshal canonical form: %w", err)
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

func stripSignature(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			if k == "signature" {
				continue
			}
			out[k] = stripSignature(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = stripSignature(val)
		}
		return out
	default:
		return v
	}
}

// SignCanonical canonicalizes jsonValue (anything json.Marshal can
// produce, typically a map[string]any or a struct) and signs the
// resulting bytes, returning the base64-encoded 64-byte signature.
func (kp *KeyPair) SignCanonical(jsonValue any) (string, error) {
	raw, err := json.Marshal(jsonValue)
	if err != nil {
		return "", fmt.Errorf("identity: marshal for signing: %w", err)
	}
	canonical, err := CanonicalizeJSON(raw)
	if err != nil {
		return "", err
	}
	sig := kp.Sign(canonical)
	return base64.StdEncoding.EncodeToString(sig), nil
}

// VerifyCanonical re-derives the canonical form of jsonValue and checks
// signatureB64 against it for publicKeyB64.
func VerifyCanonical(publicKeyB64 string, jsonValue any, signatureB64 string) (bool, error) {
	publicKey, err := base64.StdEncoding.DecodeString(publicKeyB64)
	if err != nil {
		return false, fmt.Errorf("identity: decode public key: %w", err)
	}
	signature, err := base64.StdEncoding.DecodeString(signatureB64)
	if err != nil {
		return false, fmt.Errorf("identity: decode signature: %w", err)
	}

	raw, err := json.Marshal(jsonValue)
	if err != nil {
		return false, fmt.Errorf("identity: marshal for verification: %w", err)
	}
	canonical, err := CanonicalizeJSON(raw)
	if err != nil {
		return false, err
	}

	return Verify(publicKey, canonical, signature), nil
}
