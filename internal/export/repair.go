package export

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/athena"
	athenatypes "github.com/aws/aws-sdk-go-v2/service/athena/types"

	"retainer/internal/logging"
)

type QueryAPI interface {
	StartQueryExecution(ctx context.Context, params *athena.StartQueryExecutionInput, optFns ...func(*athena.Options)) (*athena.StartQueryExecutionOutput, error)
	GetQueryExecution(ctx context.Context, params *athena.GetQueryExecutionInput, optFns ...func(*athena.Options)) (*athena.GetQueryExecutionOutput, error)
}

// PartitionRepairer runs MSCK REPAIR TABLE so Athena sees new dt= partitions.
type PartitionRepairer struct {
	Athena    QueryAPI
	Database  string
	Table     string
	Workgroup string
	Output    string

	Timeout      time.Duration
	PollInterval time.Duration
}

func (r *PartitionRepairer) validate() error {
	if r.Database == "" || r.Table == "" || r.Output == "" {
		return fmt.Errorf("missing env: ATHENA_DATABASE, ATHENA_TABLE, ATHENA_OUTPUT are required")
	}
	if !strings.HasPrefix(r.Output, "s3://") {
		return fmt.Errorf("ATHENA_OUTPUT must start with s3://")
	}
	return nil
}

// Run starts the repair and waits for it to finish. It returns the query id.
func (r *PartitionRepairer) Run(ctx context.Context) (string, error) {
	if err := r.validate(); err != nil {
		return "", err
	}
	workgroup := r.Workgroup
	if workgroup == "" {
		workgroup = "primary"
	}
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	poll := r.PollInterval
	if poll <= 0 {
		poll = 2 * time.Second
	}

	startOut, err := r.Athena.StartQueryExecution(ctx, &athena.StartQueryExecutionInput{
		QueryString: aws.String(fmt.Sprintf("MSCK REPAIR TABLE %s;", r.Table)),
		QueryExecutionContext: &athenatypes.QueryExecutionContext{
			Database: aws.String(r.Database),
		},
		WorkGroup: aws.String(workgroup),
		ResultConfiguration: &athenatypes.ResultConfiguration{
			OutputLocation: aws.String(r.Output),
		},
	})
	if err != nil {
		return "", fmt.Errorf("StartQueryExecution: %w", err)
	}

	qid := aws.ToString(startOut.QueryExecutionId)
	logging.Info("repair started", "qid", qid, "db", r.Database, "table", r.Table, "wg", workgroup)

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		st, err := r.Athena.GetQueryExecution(ctx, &athena.GetQueryExecutionInput{
			QueryExecutionId: aws.String(qid),
		})
		if err != nil {
			return qid, fmt.Errorf("GetQueryExecution: %w", err)
		}
		switch st.QueryExecution.Status.State {
		case athenatypes.QueryExecutionStateSucceeded:
			logging.Info("repair succeeded", "qid", qid)
			return qid, nil
		case athenatypes.QueryExecutionStateFailed, athenatypes.QueryExecutionStateCancelled:
			return qid, fmt.Errorf("repair %s: %s", st.QueryExecution.Status.State, aws.ToString(st.QueryExecution.Status.StateChangeReason))
		}

		select {
		case <-ctx.Done():
			return qid, ctx.Err()
		case <-time.After(poll):
		}
	}
	return qid, fmt.Errorf("repair timed out waiting for qid=%s", qid)
}
