package export

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/athena"
	athenatypes "github.com/aws/aws-sdk-go-v2/service/athena/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"retainer/internal/intake"
	"retainer/internal/records"
)

type listerMock struct {
	mock.Mock
}

func (m *listerMock) ListUpdatedSince(ctx context.Context, since time.Time) ([]records.Record, error) {
	args := m.Called(ctx, since)
	recs, _ := args.Get(0).([]records.Record)
	return recs, args.Error(1)
}

type s3Mock struct {
	mock.Mock
}

func (m *s3Mock) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*s3.PutObjectOutput)
	return out, args.Error(1)
}

type athenaMock struct {
	mock.Mock
}

func (m *athenaMock) StartQueryExecution(ctx context.Context, in *athena.StartQueryExecutionInput, _ ...func(*athena.Options)) (*athena.StartQueryExecutionOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*athena.StartQueryExecutionOutput)
	return out, args.Error(1)
}

func (m *athenaMock) GetQueryExecution(ctx context.Context, in *athena.GetQueryExecutionInput, _ ...func(*athena.Options)) (*athena.GetQueryExecutionOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*athena.GetQueryExecutionOutput)
	return out, args.Error(1)
}

func queryState(s athenatypes.QueryExecutionState) *athena.GetQueryExecutionOutput {
	return &athena.GetQueryExecutionOutput{
		QueryExecution: &athenatypes.QueryExecution{
			Status: &athenatypes.QueryExecutionStatus{State: s, StateChangeReason: aws.String("bad table")},
		},
	}
}

func TestRowDropsSealedFields(t *testing.T) {
	yes := true
	row := Row(records.Record{
		Email:          "a@b.com",
		DOB:            "enc:xyz",
		DriversLicense: "enc:abc",
		IsInsured:      &yes,
		Vehicles:       []intake.Vehicle{{Make: "Ford"}, {Make: "Kia"}},
		SignatureURL:   "https://x",
		UpdatedAt:      time.Date(2024, 5, 1, 8, 30, 0, 0, time.UTC),
	})
	assert.Equal(t, "a@b.com", row.Email)
	assert.Equal(t, "true", row.IsInsured)
	assert.Equal(t, "", row.HasPriorClaims)
	assert.Equal(t, int64(2), row.VehiclesCount)
	assert.True(t, row.HasSignature)
	assert.Equal(t, "2024-05-01T08:30:00Z", row.UpdatedAt)
}

func TestGroupByDay(t *testing.T) {
	groups := GroupByDay([]records.Record{
		{Email: "a", UpdatedAt: time.Date(2024, 5, 1, 23, 0, 0, 0, time.UTC)},
		{Email: "b", UpdatedAt: time.Date(2024, 5, 2, 1, 0, 0, 0, time.UTC)},
		{Email: "c", UpdatedAt: time.Date(2024, 5, 2, 3, 0, 0, 0, time.UTC)},
	})
	assert.Len(t, groups["2024-05-01"], 1)
	assert.Len(t, groups["2024-05-02"], 2)
}

func TestEncodeParquet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rows.parquet")
	data, err := EncodeParquet(path, []RecordRow{{Email: "a@b.com", VehiclesCount: 1}})
	require.NoError(t, err)
	require.Greater(t, len(data), 8)
	assert.Equal(t, "PAR1", string(data[:4]))
	assert.Equal(t, "PAR1", string(data[len(data)-4:]))
}

func TestExporterRun(t *testing.T) {
	ctx := context.Background()
	lister, s3c, ath := &listerMock{}, &s3Mock{}, &athenaMock{}
	now := time.Date(2024, 5, 2, 6, 0, 0, 0, time.UTC)

	lister.On("ListUpdatedSince", ctx, time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)).Return([]records.Record{
		{Email: "a@b.com", UpdatedAt: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)},
		{Email: "c@d.com", UpdatedAt: time.Date(2024, 5, 2, 1, 0, 0, 0, time.UTC)},
	}, nil)
	s3c.On("PutObject", ctx, mock.MatchedBy(func(in *s3.PutObjectInput) bool {
		return aws.ToString(in.Bucket) == "exports" && strings.HasPrefix(aws.ToString(in.Key), "retainer_records/dt=")
	})).Return(&s3.PutObjectOutput{}, nil).Twice()
	ath.On("StartQueryExecution", ctx, mock.MatchedBy(func(in *athena.StartQueryExecutionInput) bool {
		return aws.ToString(in.QueryString) == "MSCK REPAIR TABLE retainer_records;" && aws.ToString(in.WorkGroup) == "primary"
	})).Return(&athena.StartQueryExecutionOutput{QueryExecutionId: aws.String("q-1")}, nil)
	ath.On("GetQueryExecution", ctx, mock.Anything).Return(queryState(athenatypes.QueryExecutionStateSucceeded), nil)

	e := &Exporter{
		Records:  lister,
		S3:       s3c,
		Bucket:   "exports",
		Prefix:   "retainer_records",
		DaysBack: 2,
		Now:      func() time.Time { return now },
		Repair: &PartitionRepairer{
			Athena: ath, Database: "analytics", Table: "retainer_records", Output: "s3://athena-out/",
		},
	}
	res, err := e.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Records)
	require.Len(t, res.Files, 2)
	assert.True(t, strings.HasPrefix(res.Files[0], "retainer_records/dt=2024-05-01/part-"))
	assert.True(t, strings.HasPrefix(res.Files[1], "retainer_records/dt=2024-05-02/part-"))
	assert.Equal(t, "q-1", res.QueryID)
	s3c.AssertExpectations(t)
}

func TestExporterNoRecordsSkipsRepair(t *testing.T) {
	ctx := context.Background()
	lister, ath := &listerMock{}, &athenaMock{}
	lister.On("ListUpdatedSince", ctx, mock.Anything).Return([]records.Record{}, nil)

	e := &Exporter{Records: lister, S3: &s3Mock{}, Bucket: "b", Repair: &PartitionRepairer{Athena: ath}}
	res, err := e.Run(ctx)
	require.NoError(t, err)
	assert.Empty(t, res.Files)
	ath.AssertNotCalled(t, "StartQueryExecution", mock.Anything, mock.Anything)
}

func TestExporterRequiresBucket(t *testing.T) {
	_, err := (&Exporter{}).Run(context.Background())
	assert.EqualError(t, err, "missing env EXPORT_BUCKET")
}

func TestRepairFailure(t *testing.T) {
	ctx := context.Background()
	ath := &athenaMock{}
	ath.On("StartQueryExecution", ctx, mock.Anything).Return(&athena.StartQueryExecutionOutput{QueryExecutionId: aws.String("q-2")}, nil)
	ath.On("GetQueryExecution", ctx, mock.Anything).Return(queryState(athenatypes.QueryExecutionStateFailed), nil)

	r := &PartitionRepairer{Athena: ath, Database: "d", Table: "t", Output: "s3://o/", PollInterval: time.Millisecond}
	qid, err := r.Run(ctx)
	assert.Equal(t, "q-2", qid)
	assert.ErrorContains(t, err, "bad table")
}

func TestRepairValidation(t *testing.T) {
	r := &PartitionRepairer{Database: "d", Table: "t", Output: "/tmp/out"}
	_, err := r.Run(context.Background())
	assert.EqualError(t, err, "ATHENA_OUTPUT must start with s3://")

	_, err = (&PartitionRepairer{}).Run(context.Background())
	assert.Error(t, err)
}

func TestRepairListError(t *testing.T) {
	ctx := context.Background()
	lister := &listerMock{}
	lister.On("ListUpdatedSince", ctx, mock.Anything).Return(nil, errors.New("db down"))
	_, err := (&Exporter{Records: lister, Bucket: "b"}).Run(ctx)
	assert.ErrorContains(t, err, "db down")
}
