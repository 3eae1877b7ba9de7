package ddns

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// ProviderConfig holds the GoDaddy credentials and the record to manage.
type ProviderConfig struct {
	APIKey     string `envconfig:"API_KEY" required:"true"`
	APISecret  string `envconfig:"API_SECRET" required:"true"`
	BasePath   string `envconfig:"BASE_PATH" required:"true"`
	RecordName string `envconfig:"RECORD_NAME" required:"true"`
}

// LoadConfig reads a ProviderConfig from API_KEY, API_SECRET, BASE_PATH and RECORD_NAME.
// Every variable must be set and non-empty.
func LoadConfig() (ProviderConfig, error) {
	var cfg ProviderConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return ProviderConfig{}, fmt.Errorf("%w: %w", ErrConfiguration, err)
	}
	if err := cfg.Validate(); err != nil {
		return ProviderConfig{}, err
	}
	return cfg, nil
}

func (cfg ProviderConfig) Validate() error {
	var errs []error
	for _, v := range []struct{ name, value string }{
		{"API_KEY", cfg.APIKey},
		{"API_SECRET", cfg.APISecret},
		{"BASE_PATH", cfg.BasePath},
		{"RECORD_NAME", cfg.RecordName},
	} {
		if v.value == "" {
			errs = append(errs, fmt.Errorf("%s cannot be empty", v.name))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("%w: %w", ErrConfiguration, err)
	}
	return nil
}

// CloudflareConfig is the configuration used when Cloudflare manages the record.
type CloudflareConfig struct {
	APIToken   string `envconfig:"CLOUDFLARE_API_TOKEN" required:"true"`
	ZoneID     string `envconfig:"CLOUDFLARE_ZONE_ID"`
	RecordName string `envconfig:"RECORD_NAME" required:"true"`
}

func LoadCloudflareConfig() (CloudflareConfig, error) {
	var cfg CloudflareConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return CloudflareConfig{}, fmt.Errorf("%w: %w", ErrConfiguration, err)
	}
	if cfg.APIToken == "" || cfg.RecordName == "" {
		return CloudflareConfig{}, fmt.Errorf("%w: CLOUDFLARE_API_TOKEN and RECORD_NAME cannot be empty", ErrConfiguration)
	}
	return cfg, nil
}

// LoadEnvFile loads variables from a dotenv file into the environment.
// Variables which are already set are not overridden.
//
// The file holds credentials, so it must not be readable by anyone but its owner.
func LoadEnvFile(path string) error {
	if err := VerifyPermissions(path); err != nil {
		return fmt.Errorf("%w: %w", ErrConfiguration, err)
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("%w: error loading %q: %w", ErrConfiguration, path, err)
	}
	return nil
}

// WriteEnvFile creates a new dotenv file at path containing env.
// It refuses to overwrite an existing file.
func WriteEnvFile(path string, env map[string]string) error {
	content, err := godotenv.Marshal(env)
	if err != nil {
		return fmt.Errorf("error encoding env file: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("unable to create \"%s\": %w", path, err)
	}
	if _, err := fmt.Fprintln(f, content); err != nil {
		f.Close()
		return fmt.Errorf("unable to write \"%s\": %w", path, err)
	}
	return f.Close()
}

// VerifyPermissions returns an error unless path has mode 0600 or 0400.
func VerifyPermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("error checking file permissions: %w", err)
	}

	perms := info.Mode().Perm()
	// Error messages will state that we want 0600,
	// but we'll also accept 0400 which is even more restricted.
	// The file might be provided by some secrets managing software as readonly.
	if perms != 0600 && perms != 0400 {
		return fmt.Errorf("invalid permissions for \"%s\": expected file permissions \"-rw-------\"; found \"%s\"", path, fs.FileMode(perms))
	}
	return nil
}
