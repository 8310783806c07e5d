package export

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"
	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/writer"

	"retainer/internal/logging"
	"retainer/internal/records"
)

// RecordRow is one exported intake record. Sealed fields (dob, license) are
// never exported.
type RecordRow struct {
	Email          string `parquet:"name=email, type=BYTE_ARRAY, convertedtype=UTF8"`
	FirstName      string `parquet:"name=first_name, type=BYTE_ARRAY, convertedtype=UTF8"`
	LastName       string `parquet:"name=last_name, type=BYTE_ARRAY, convertedtype=UTF8"`
	City           string `parquet:"name=city, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	Province       string `parquet:"name=province, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	Country        string `parquet:"name=country, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	Insurer        string `parquet:"name=insurer, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	IsInsured      string `parquet:"name=is_insured, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	HasPriorClaims string `parquet:"name=has_prior_claims, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	VehiclesCount  int64  `parquet:"name=vehicles_count, type=INT64"`
	HouseholdCount int64  `parquet:"name=household_count, type=INT64"`
	RetainerPlan   string `parquet:"name=retainer_plan, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	RetainerTerm   string `parquet:"name=retainer_term, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	HasSignature   bool   `parquet:"name=has_signature, type=BOOLEAN"`
	UpdatedAt      string `parquet:"name=updated_at, type=BYTE_ARRAY, convertedtype=UTF8"`
}

func Row(r records.Record) RecordRow {
	return RecordRow{
		Email:          r.Email,
		FirstName:      r.FirstName,
		LastName:       r.LastName,
		City:           r.City,
		Province:       r.Province,
		Country:        r.Country,
		Insurer:        r.Insurer,
		IsInsured:      boolText(r.IsInsured),
		HasPriorClaims: boolText(r.HasPriorClaims),
		VehiclesCount:  int64(len(r.Vehicles)),
		HouseholdCount: int64(len(r.Household)),
		RetainerPlan:   r.RetainerPlan,
		RetainerTerm:   r.RetainerTerm,
		HasSignature:   r.SignatureURL != "",
		UpdatedAt:      r.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func boolText(b *bool) string {
	if b == nil {
		return ""
	}
	return strconv.FormatBool(*b)
}

// GroupByDay buckets rows by the UTC date of their last update.
func GroupByDay(recs []records.Record) map[string][]RecordRow {
	out := map[string][]RecordRow{}
	for _, r := range recs {
		dt := r.UpdatedAt.UTC().Format("2006-01-02")
		out[dt] = append(out[dt], Row(r))
	}
	return out
}

type RecordLister interface {
	ListUpdatedSince(ctx context.Context, since time.Time) ([]records.Record, error)
}

type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Exporter writes recently updated records to S3 as one Parquet file per day
// and then repairs the Athena partitions.
type Exporter struct {
	Records  RecordLister
	S3       ObjectPutter
	Bucket   string
	Prefix   string
	DaysBack int
	Repair   *PartitionRepairer
	Now      func() time.Time
}

type Result struct {
	OK       bool     `json:"ok"`
	Records  int      `json:"records"`
	Files    []string `json:"files"`
	DaysBack int      `json:"days_back"`
	QueryID  string   `json:"repair_query_id,omitempty"`
}

func (e *Exporter) Run(ctx context.Context) (*Result, error) {
	if strings.TrimSpace(e.Bucket) == "" {
		return nil, fmt.Errorf("missing env EXPORT_BUCKET")
	}
	daysBack := e.DaysBack
	if daysBack <= 0 {
		daysBack = 1
	}
	now := time.Now().UTC()
	if e.Now != nil {
		now = e.Now().UTC()
	}
	since := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, -(daysBack - 1))

	recs, err := e.Records.ListUpdatedSince(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}

	res := &Result{OK: true, Records: len(recs), DaysBack: daysBack, Files: []string{}}
	byDay := GroupByDay(recs)
	days := make([]string, 0, len(byDay))
	for dt := range byDay {
		days = append(days, dt)
	}
	sort.Strings(days)

	for _, dt := range days {
		key := fmt.Sprintf("%sdt=%s/part-%s.parquet", ensureTrailingSlash(e.Prefix), dt, uuid.NewString())
		if err := e.writeParquet(ctx, key, byDay[dt]); err != nil {
			return nil, fmt.Errorf("write parquet dt=%s: %w", dt, err)
		}
		res.Files = append(res.Files, key)
		logging.Info("export file written", "bucket", e.Bucket, "key", key, "rows", len(byDay[dt]))
	}

	if len(res.Files) > 0 && e.Repair != nil {
		qid, err := e.Repair.Run(ctx)
		if err != nil {
			return res, err
		}
		res.QueryID = qid
	}
	return res, nil
}

func (e *Exporter) writeParquet(ctx context.Context, key string, rows []RecordRow) error {
	localPath := filepath.Join(os.TempDir(), "retainer_records_"+uuid.NewString()+".parquet")
	defer func() { _ = os.Remove(localPath) }()

	data, err := EncodeParquet(localPath, rows)
	if err != nil {
		return err
	}

	_, err = e.S3.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(e.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/octet-stream"),
		ACL:         s3types.ObjectCannedACLPrivate,
	})
	if err != nil {
		return fmt.Errorf("s3 putobject failed: %w", err)
	}
	return nil
}

// EncodeParquet writes rows to localPath and returns the file bytes.
func EncodeParquet(localPath string, rows []RecordRow) ([]byte, error) {
	fw, err := local.NewLocalFileWriter(localPath)
	if err != nil {
		return nil, fmt.Errorf("parquet file writer: %w", err)
	}

	pw, err := writer.NewParquetWriter(fw, new(RecordRow), 1)
	if err != nil {
		_ = fw.Close()
		return nil, fmt.Errorf("parquet writer: %w", err)
	}
	pw.RowGroupSize = 128 * 1024 * 1024
	pw.PageSize = 8 * 1024
	pw.CompressionType = 0

	for _, row := range rows {
		if err := pw.Write(row); err != nil {
			_ = pw.WriteStop()
			_ = fw.Close()
			return nil, fmt.Errorf("parquet write row: %w", err)
		}
	}
	if err := pw.WriteStop(); err != nil {
		_ = fw.Close()
		return nil, fmt.Errorf("parquet write stop: %w", err)
	}
	if err := fw.Close(); err != nil {
		return nil, fmt.Errorf("parquet close: %w", err)
	}
	return os.ReadFile(localPath)
}

func ensureTrailingSlash(s string) string {
	if s == "" || strings.HasSuffix(s, "/") {
		return s
	}
	return s + "/"
}
