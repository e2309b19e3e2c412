package commitsource

import "go.uber.org/fx"

var Module = fx.Module("commitsource",
	fx.Provide(
		NewGitHubClient,
		func(c *GitHubClient) Source { return c },
	),
)
