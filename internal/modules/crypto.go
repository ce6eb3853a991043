package modules

import (
	"context"
	"crypto/hmac"
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"hash"

	"github.com/google/uuid"
)

// CryptoModules returns the utilities.crypto operations.
func CryptoModules() []Descriptor {
	return []Descriptor{
		Object("utilities.crypto.hash", "Hex digest of data (sha256, sha384, sha512, sha1, md5)",
			[]string{"data", "algorithm"},
			func(_ context.Context, opts map[string]any) (any, error) {
				data, err := toString(opts["data"])
				if err != nil {
					return nil, fmt.Errorf("data: %w", err)
				}
				algorithm := stringParam(opts, "algorithm", "sha256")
				newHash, err := hashFunc(algorithm)
				if err != nil {
					return nil, err
				}
				h := newHash()
				h.Write([]byte(data))
				return map[string]any{
					"hash":      hex.EncodeToString(h.Sum(nil)),
					"algorithm": algorithm,
				}, nil
			}),

		Object("utilities.crypto.hmac", "Hex HMAC of data under key",
			[]string{"data", "key", "algorithm"},
			func(_ context.Context, opts map[string]any) (any, error) {
				data, err := toString(opts["data"])
				if err != nil {
					return nil, fmt.Errorf("data: %w", err)
				}
				key, err := toString(opts["key"])
				if err != nil {
					return nil, fmt.Errorf("key: %w", err)
				}
				algorithm := stringParam(opts, "algorithm", "sha256")
				newHash, err := hashFunc(algorithm)
				if err != nil {
					return nil, err
				}
				mac := hmac.New(newHash, []byte(key))
				mac.Write([]byte(data))
				return map[string]any{
					"hmac":      hex.EncodeToString(mac.Sum(nil)),
					"algorithm": algorithm,
				}, nil
			}),

		NoArgs("utilities.crypto.uuid", "Generate a v4 UUID",
			func(context.Context) (any, error) {
				return uuid.NewString(), nil
			}),
	}
}

func hashFunc(algorithm string) (func() hash.Hash, error) {
	switch algorithm {
	case "sha256":
		return sha256.New, nil
	case "sha512":
		return sha512.New, nil
	case "sha384":
		return sha512.New384, nil
	case "md5":
		return md5.New, nil
	case "sha1":
		return sha1.New, nil
	default:
		return nil, fmt.Errorf("unsupported hash algorithm: %s", algorithm)
	}
}
