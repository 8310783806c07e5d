package main

import (
	"context"
	stdlog "log"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/service/athena"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"retainer/internal/app"
	"retainer/internal/export"
)

func main() {
	ctx := context.Background()

	s, awsCfg, err := app.Bootstrap(ctx)
	if err != nil {
		stdlog.Fatalf("bootstrap: %v", err)
	}
	recs, err := app.RecordService(ctx, s, awsCfg)
	if err != nil {
		stdlog.Fatalf("records: %v", err)
	}

	e := &export.Exporter{
		Records:  recs,
		S3:       s3.NewFromConfig(awsCfg),
		Bucket:   s.ExportBucket,
		Prefix:   s.ExportPrefix,
		DaysBack: s.ExportDaysBack,
	}
	if s.AthenaDatabase != "" && s.AthenaTable != "" {
		e.Repair = &export.PartitionRepairer{
			Athena:    athena.NewFromConfig(awsCfg),
			Database:  s.AthenaDatabase,
			Table:     s.AthenaTable,
			Workgroup: s.AthenaWorkgroup,
			Output:    s.AthenaOutput,
		}
	}

	lambda.Start(func(ctx context.Context, _ events.CloudWatchEvent) (*export.Result, error) {
		return e.Run(ctx)
	})
}
