package cmd

import (
	"go.uber.org/dig"

	"github.com/nextver/nextver/application"
	"github.com/nextver/nextver/config"
	"github.com/nextver/nextver/infrastructure/github"
	"github.com/nextver/nextver/infrastructure/registry"
)

// registerProviders registers the infrastructure clients and the check
// service with the DIG container, bottom-up.
func registerProviders(container *dig.Container, cfg *config.Config, projectDir string) error {
	if err := container.Provide(func() *registry.Npmrc {
		return registry.LoadNpmrc(projectDir)
	}); err != nil {
		return err
	}

	if err := container.Provide(func(npmrc *registry.Npmrc) application.CatalogClient {
		return registry.NewClient(cfg.Registry, npmrc)
	}); err != nil {
		return err
	}

	if err := container.Provide(func() application.ReferenceClient {
		token := cfg.GitHubToken
		if token == "" {
			token = github.TokenFromEnv()
		}
		return github.NewClient(token)
	}); err != nil {
		return err
	}

	return container.Provide(application.NewCheckService)
}

// injectCheckService builds the fully wired check service for one run.
func injectCheckService(cfg *config.Config, projectDir string) (*application.CheckService, error) {
	container := dig.New()

	if err := registerProviders(container, cfg, projectDir); err != nil {
		return nil, err
	}

	var service *application.CheckService
	if err := container.Invoke(func(s *application.CheckService) {
		service = s
	}); err != nil {
		return nil, err
	}

	return service, nil
}
