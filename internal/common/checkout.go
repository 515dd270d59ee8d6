package common

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"campaign-funding-go/internal/models"

	"go.uber.org/zap"
	"gopkg.in/yaml.v2"
)

type checkoutFile struct {
	Checkout models.CheckoutConfig `yaml:"checkout"`
}

// LoadCheckoutConfig reads hosted checkout settings. A missing file yields the
// zero config, which the engine fills with its defaults.
func LoadCheckoutConfig(checkoutFilePath string) (*models.CheckoutConfig, error) {
	if strings.TrimSpace(checkoutFilePath) == "" {
		return &models.CheckoutConfig{}, nil
	}

	var path string
	if filepath.IsAbs(checkoutFilePath) {
		path = checkoutFilePath
	} else {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		path = filepath.Join(wd, checkoutFilePath)
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		zap.L().Info("No checkout file found, using defaults", zap.String("path", path))
		return &models.CheckoutConfig{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("unable to read %s: %w", checkoutFilePath, err)
	}

	var config checkoutFile
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("unable to parse %s: %w", checkoutFilePath, err)
	}

	c := config.Checkout
	if c.Currency != "" && len(strings.TrimSpace(c.Currency)) != 3 {
		return nil, fmt.Errorf("checkout currency %q must be a three-letter ISO code", c.Currency)
	}
	for name, path := range map[string]string{"success_path": c.SuccessPath, "cancel_path": c.CancelPath} {
		if path != "" && !strings.HasPrefix(path, "/") {
			return nil, fmt.Errorf("checkout %s %q must start with /", name, path)
		}
	}

	return &c, nil
}
