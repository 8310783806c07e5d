package main

import (
	"context"
	stdlog "log"

	"github.com/aws/aws-lambda-go/lambda"

	"retainer/internal/app"
	"retainer/internal/config"
	"retainer/internal/handlers"
	"retainer/internal/intake"
	"retainer/internal/logging"
)

func main() {
	ctx := context.Background()

	s, awsCfg, err := app.Bootstrap(ctx)
	if err != nil {
		stdlog.Fatalf("bootstrap: %v", err)
	}
	if err := s.RequireShopify(); err != nil {
		stdlog.Fatalf("config: %v", err)
	}

	api := &handlers.API{
		Intake: intake.NewService(app.ShopifyClient(s), intake.Options{
			Namespace:      s.Namespace,
			MappingVersion: s.MappingVersion,
			InviteMode:     s.InviteMode,
		}),
		CORS: handlers.CORS{
			AllowedOrigins: s.AllowedOrigins,
			Debug:          s.CORSMode == config.CORSDebug,
		},
	}

	if recs, err := app.RecordService(ctx, s, awsCfg); err != nil {
		logging.Warn("record route disabled", "backend", s.RecordsBackend, "err", err)
	} else {
		api.Records = recs
	}

	lambda.Start(api.Handle)
}
