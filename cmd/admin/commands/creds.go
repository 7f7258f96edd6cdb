package commands

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/oksasatya/ngo-backoffice/internal/infrastructure/hosted"
)

type credsFile struct {
	Profiles map[string]hosted.Tokens `json:"profiles"`
}

func credsPath() (string, error) {
	if p := os.Getenv("ADMIN_CREDENTIALS"); p != "" {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(home, ".config", "ngo-backoffice")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", err
	}
	return filepath.Join(dir, "credentials.json"), nil
}

func loadCreds() (*credsFile, error) {
	p, err := credsPath()
	if err != nil {
		return nil, err
	}
	cf := &credsFile{Profiles: map[string]hosted.Tokens{}}
	b, err := os.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		return cf, nil
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(b, cf); err != nil {
		return nil, err
	}
	if cf.Profiles == nil {
		cf.Profiles = map[string]hosted.Tokens{}
	}
	return cf, nil
}

func writeCreds(cf *credsFile) error {
	p, err := credsPath()
	if err != nil {
		return err
	}
	b, err := json.MarshalIndent(cf, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(p, b, 0o600)
}

func loadTokens(base string) (hosted.Tokens, bool) {
	cf, err := loadCreds()
	if err != nil {
		return hosted.Tokens{}, false
	}
	t, ok := cf.Profiles[base]
	return t, ok && t.AccessToken != ""
}

func saveTokens(base string, t hosted.Tokens) error {
	cf, err := loadCreds()
	if err != nil {
		return err
	}
	cf.Profiles[base] = t
	return writeCreds(cf)
}

func forgetTokens(base string) error {
	cf, err := loadCreds()
	if err != nil {
		return err
	}
	if _, ok := cf.Profiles[base]; !ok {
		return nil
	}
	delete(cf.Profiles, base)
	return writeCreds(cf)
}
