package secrets

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/seanmmay/b0t-sub000/internal/logging"
	"github.com/seanmmay/b0t-sub000/internal/store"
	"github.com/seanmmay/b0t-sub000/pkg/schema"
)

// CredentialLoader turns a user's stored credentials into the variables
// exposed to workflows under "user".
type CredentialLoader struct {
	store  store.CredentialStore
	cipher *Cipher
	logger *slog.Logger
}

// NewCredentialLoader creates a loader. A nil logger uses slog.Default.
func NewCredentialLoader(s store.CredentialStore, c *Cipher, logger *slog.Logger) *CredentialLoader {
	if logger == nil {
		logger = slog.Default()
	}
	return &CredentialLoader{store: s, cipher: c, logger: logger}
}

// LoadUserCredentials returns platform -> value for userID. It never fails:
// unreadable or undecryptable entries are logged and left out.
//
// Values that decrypt to a JSON object are exposed as maps so workflows can
// reference {{user.slack.token}}; everything else is a plain string.
func (l *CredentialLoader) LoadUserCredentials(ctx context.Context, userID string) map[string]any {
	out := map[string]any{}
	if userID == "" {
		return out
	}
	log := logging.LogWith(ctx, l.logger)

	creds, err := l.store.ListCredentials(ctx, userID)
	if err != nil {
		log.Warn("credential load failed", "error", err)
		return out
	}
	for _, c := range creds {
		plain, err := l.cipher.Decrypt(c.Ciphertext, credentialAAD(c.UserID, c.Platform))
		if err != nil {
			log.Warn("credential decrypt failed", "platform", c.Platform, "error", err)
			continue
		}
		out[c.Platform] = decodeCredential(plain)
	}
	return out
}

// ReservedPlatform is the credential map key that carries the user's own id
// at run time ({{user.id}}), so no credential may be stored under it.
const ReservedPlatform = "id"

// Store encrypts value and saves it for (userID, platform).
func (l *CredentialLoader) Store(ctx context.Context, userID, platform, value string) error {
	platform = normalizePlatform(platform)
	if userID == "" || platform == "" {
		return schema.NewError(schema.ErrCodeValidation, "user id and platform are required")
	}
	if platform == ReservedPlatform {
		return schema.NewErrorf(schema.ErrCodeValidation, "platform name %q is reserved for the user's id", platform)
	}
	ct, err := l.cipher.Encrypt([]byte(value), credentialAAD(userID, platform))
	if err != nil {
		return err
	}
	return l.store.PutCredential(ctx, &store.Credential{UserID: userID, Platform: platform, Ciphertext: ct})
}

// Delete removes the credential for (userID, platform).
func (l *CredentialLoader) Delete(ctx context.Context, userID, platform string) error {
	return l.store.DeleteCredential(ctx, userID, normalizePlatform(platform))
}

// Platforms lists the platforms userID has credentials for, without decrypting.
func (l *CredentialLoader) Platforms(ctx context.Context, userID string) ([]string, error) {
	creds, err := l.store.ListCredentials(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(creds))
	for _, c := range creds {
		out = append(out, c.Platform)
	}
	return out, nil
}

// credentialAAD binds a ciphertext to its row so values cannot be swapped
// between users or platforms.
func credentialAAD(userID, platform string) []byte {
	return []byte(userID + "/" + platform)
}

func normalizePlatform(p string) string {
	return strings.ToLower(strings.TrimSpace(p))
}

func decodeCredential(plain []byte) any {
	var obj map[string]any
	if err := json.Unmarshal(plain, &obj); err == nil && obj != nil {
		return obj
	}
	return string(plain)
}
