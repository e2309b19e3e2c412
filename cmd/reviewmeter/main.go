package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/reviewmeter/internal/auth"
	"github.com/smallbiznis/reviewmeter/internal/authorization"
	"github.com/smallbiznis/reviewmeter/internal/clock"
	"github.com/smallbiznis/reviewmeter/internal/commitsource"
	"github.com/smallbiznis/reviewmeter/internal/config"
	"github.com/smallbiznis/reviewmeter/internal/events"
	"github.com/smallbiznis/reviewmeter/internal/migration"
	"github.com/smallbiznis/reviewmeter/internal/observability"
	"github.com/smallbiznis/reviewmeter/internal/plan"
	"github.com/smallbiznis/reviewmeter/internal/progress"
	"github.com/smallbiznis/reviewmeter/internal/quota"
	"github.com/smallbiznis/reviewmeter/internal/ratelimit"
	"github.com/smallbiznis/reviewmeter/internal/reviewer"
	"github.com/smallbiznis/reviewmeter/internal/reviewjob"
	"github.com/smallbiznis/reviewmeter/internal/scheduler"
	"github.com/smallbiznis/reviewmeter/internal/server"
	"github.com/smallbiznis/reviewmeter/internal/subscription"
	"github.com/smallbiznis/reviewmeter/pkg/db"
	"go.uber.org/fx"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "token" {
		if err := issueToken(os.Args[2:]); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	app := fx.New(
		// Core infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		db.RedisModule,
		clock.Module,
		migration.Module,

		// Metering
		plan.Module,
		quota.Module,
		subscription.Module,
		events.Module,

		// Review pipeline
		commitsource.Module,
		reviewer.Module,
		progress.Module,
		ratelimit.Module,
		reviewjob.Module,

		// Access control
		auth.Module,
		authorization.Module,

		scheduler.Module,
		server.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}

// issueToken mints a bearer token signed with AUTH_JWT_SECRET for local use.
func issueToken(args []string) error {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	subject := fs.String("subscriber", "", "subscriber id placed in the sub claim")
	role := fs.String("role", auth.RoleSubscriber, "role claim")
	ttl := fs.Duration("ttl", 24*time.Hour, "token lifetime")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *subject == "" {
		return fmt.Errorf("token: -subscriber is required")
	}

	verifier := auth.NewVerifier(config.Load())
	token, err := verifier.Issue(*subject, *role, *ttl, time.Now().UTC())
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}
