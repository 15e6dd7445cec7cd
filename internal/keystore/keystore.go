// Package keystore loads wallet private keys from a plain text file, one key per line.
package keystore

import (
	"crypto/ecdsa"
	"fmt"
	"math/rand/v2"
	"os"
	"regexp"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	gethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"

	"github.com/ligun0805/somnia-runner/internal/progress"
)

var (
	ErrKeyFileMissing = errors.New("key file not found")
	ErrNoValidKeys    = errors.New("no valid private keys found")
)

// Template is written when the key file does not exist.
const Template = "# Add private keys here, one per line\n# Example: 0x1234567890abcdef1234567890abcdef1234567890abcdef1234567890abcdef\n"

var hexKeyRe = regexp.MustCompile(`^[a-fA-F0-9]{64}$`)

// Wallet is one signing identity loaded from the key file.
type Wallet struct {
	Index   int // 1-based position among valid keys
	Line    int // line number in the key file
	KeyHex  string
	Key     *ecdsa.PrivateKey
	Address common.Address
}

// IsValidPrivateKey reports whether s is 64 hex chars, with or without 0x,
// and returns the 0x-prefixed form.
func IsValidPrivateKey(s string) (string, bool) {
	s = strings.TrimSpace(s)
	clean := strings.TrimPrefix(s, "0x")
	if !hexKeyRe.MatchString(clean) {
		return "", false
	}
	return "0x" + clean, true
}

// Load parses the key file at path. A missing file is recreated from Template.
func Load(path string, log progress.ProgressLog) ([]Wallet, error) {
	if log == nil {
		log = progress.Stdout()
	}
	logf := func(l progress.Level, format string, a ...any) {
		log.Log(progress.Format(l, fmt.Sprintf(format, a...)))
	}

	logf(progress.Info, "Checking %s", path)
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		logf(progress.Error, "Error: %s file not found", path)
		if werr := os.WriteFile(path, []byte(Template), 0o600); werr != nil {
			logf(progress.Warn, "Could not create template %s: %v", path, werr)
		}
		return nil, errors.Wrap(ErrKeyFileMissing, path)
	}
	if err != nil {
		logf(progress.Error, "Error: Failed to read %s: %v", path, err)
		return nil, errors.Wrapf(err, "read %s", path)
	}

	content := strings.ReplaceAll(string(raw), "\r\n", "\n")
	content = strings.ReplaceAll(content, "\r", "\n")

	var wallets []Wallet
	for idx, line := range strings.Split(content, "\n") {
		key := strings.TrimSpace(line)
		if key == "" {
			continue
		}
		if strings.HasPrefix(key, "#") {
			logf(progress.Info, "Skipping comment line %d", idx+1)
			continue
		}
		norm, ok := IsValidPrivateKey(key)
		if !ok {
			logf(progress.Warn, "Invalid key at line %d: length=%d, content=%s...", idx+1, len(key), head(key, 10))
			continue
		}
		prv, err := gethcrypto.HexToECDSA(norm[2:])
		if err != nil {
			// 64 hex chars that are not a valid secp256k1 scalar (zero or >= N).
			logf(progress.Warn, "Invalid key at line %d: %v", idx+1, err)
			continue
		}
		wallets = append(wallets, Wallet{
			Index:   len(wallets) + 1,
			Line:    idx + 1,
			KeyHex:  norm,
			Key:     prv,
			Address: gethcrypto.PubkeyToAddress(prv.PublicKey),
		})
		logf(progress.Success, "Valid key found at line %d: %s...", idx+1, norm[:6])
	}

	if len(wallets) == 0 {
		logf(progress.Error, "Error: No valid private keys found in %s", path)
		return nil, errors.Wrap(ErrNoValidKeys, path)
	}
	logf(progress.Info, "Loaded %d valid private keys", len(wallets))
	return wallets, nil
}

// Shuffle returns a shuffled copy. Wallet indices keep their original values.
func Shuffle(ws []Wallet, r *rand.Rand) []Wallet {
	out := make([]Wallet, len(ws))
	copy(out, ws)
	shuffle := rand.Shuffle
	if r != nil {
		shuffle = r.Shuffle
	}
	shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}

func head(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
