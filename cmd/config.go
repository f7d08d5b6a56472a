package cmd

import (
	"fmt"

	"github.com/BioHazard786/Warpcall/internal/config"
)

func LoadConfig(opts config.Options) (*config.Config, error) {
	cfg, err := config.Load(opts)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}
