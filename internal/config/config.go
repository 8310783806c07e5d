package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/hashicorp/go-multierror"
)

const (
	DefaultAPIVersion = "2025-01"
	DefaultNamespace  = "retainer"

	CORSStrict = "strict"
	CORSDebug  = "debug"

	InviteGraphQL = "graphql"
	InviteREST    = "rest"
	InviteOff     = "off"

	BackendPostgres = "postgres"
	BackendDynamo   = "dynamodb"
)

// ParameterGetter is the slice of the SSM client used to resolve *_SSM_PARAM secrets.
type ParameterGetter interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// Settings is everything the functions read from the environment.
type Settings struct {
	Shop            string
	APIVersion      string
	AdminToken      string
	StorefrontToken string
	WebhookSecret   string

	AllowedOrigins []string
	CORSMode       string

	Namespace      string
	MappingVersion string
	InviteMode     string

	RecordsBackend         string
	DatabaseURL            string
	RecordsTable           string
	SignatureBucket        string
	SignaturePublicBaseURL string
	RecordEncKeyB64        string

	WebhookDedupeTable string
	AlertsTopicArn     string

	ExportBucket    string
	ExportPrefix    string
	ExportDaysBack  int
	AthenaDatabase  string
	AthenaTable     string
	AthenaOutput    string
	AthenaWorkgroup string

	LogLevel  string
	LogFormat string
}

// Load reads Settings from the environment. ssmClient may be nil when no
// *_SSM_PARAM variables are in use.
func Load(ctx context.Context, ssmClient ParameterGetter) (*Settings, error) {
	s := &Settings{
		Shop:       strings.ToLower(env("SHOPIFY_SHOP", "")),
		APIVersion: env("SHOPIFY_API_VERSION", DefaultAPIVersion),

		AllowedOrigins: splitList(os.Getenv("ALLOWED_ORIGINS")),
		CORSMode:       strings.ToLower(env("CORS_MODE", CORSStrict)),

		Namespace:      env("METAFIELD_NAMESPACE", DefaultNamespace),
		MappingVersion: strings.ToLower(env("FIELD_MAPPING_VERSION", "v2")),
		InviteMode:     strings.ToLower(env("INVITE_MODE", InviteGraphQL)),

		RecordsBackend:         strings.ToLower(env("RECORDS_BACKEND", BackendPostgres)),
		RecordsTable:           env("RECORDS_TABLE", ""),
		SignatureBucket:        env("SIGNATURE_BUCKET", ""),
		SignaturePublicBaseURL: strings.TrimRight(env("SIGNATURE_PUBLIC_BASE_URL", ""), "/"),

		WebhookDedupeTable: env("WEBHOOK_DEDUPE_TABLE", ""),
		AlertsTopicArn:     env("ALERTS_TOPIC_ARN", ""),

		ExportBucket:    env("EXPORT_BUCKET", ""),
		ExportPrefix:    env("EXPORT_PREFIX", "retainer_records/"),
		ExportDaysBack:  envInt("EXPORT_DAYS_BACK", 1, 1, 90),
		AthenaDatabase:  env("ATHENA_DATABASE", ""),
		AthenaTable:     env("ATHENA_TABLE", ""),
		AthenaOutput:    env("ATHENA_OUTPUT", ""),
		AthenaWorkgroup: env("ATHENA_WORKGROUP", "primary"),

		LogLevel:  env("LOG_LEVEL", "info"),
		LogFormat: env("LOG_FORMAT", "json"),
	}

	var errs *multierror.Error
	secrets := []struct {
		name string
		dst  *string
	}{
		{"SHOPIFY_ADMIN_TOKEN", &s.AdminToken},
		{"SHOPIFY_STOREFRONT_TOKEN", &s.StorefrontToken},
		{"SHOPIFY_WEBHOOK_SECRET", &s.WebhookSecret},
		{"DATABASE_URL", &s.DatabaseURL},
		{"RECORD_ENC_KEY_B64", &s.RecordEncKeyB64},
	}
	for _, sec := range secrets {
		v, err := resolveSecret(ctx, ssmClient, sec.name)
		if err != nil {
			errs = multierror.Append(errs, err)
			continue
		}
		*sec.dst = v
	}

	switch s.CORSMode {
	case CORSStrict, CORSDebug:
	default:
		errs = multierror.Append(errs, fmt.Errorf("CORS_MODE must be %q or %q", CORSStrict, CORSDebug))
	}
	switch s.InviteMode {
	case InviteGraphQL, InviteREST, InviteOff:
	default:
		errs = multierror.Append(errs, fmt.Errorf("INVITE_MODE must be graphql, rest or off"))
	}
	switch s.RecordsBackend {
	case BackendPostgres, BackendDynamo:
	default:
		errs = multierror.Append(errs, fmt.Errorf("RECORDS_BACKEND must be postgres or dynamodb"))
	}

	return s, errs.ErrorOrNil()
}

// RequireShopify reports the platform settings the storefront routes cannot run without.
func (s *Settings) RequireShopify() error {
	var errs *multierror.Error
	if !ValidShopDomain(s.Shop) {
		errs = multierror.Append(errs, fmt.Errorf("SHOPIFY_SHOP must look like your-store.myshopify.com"))
	}
	if s.AdminToken == "" {
		errs = multierror.Append(errs, fmt.Errorf("SHOPIFY_ADMIN_TOKEN not set"))
	}
	return errs.ErrorOrNil()
}

// RequireRecords reports the settings the record route needs for the selected backend.
func (s *Settings) RequireRecords() error {
	var errs *multierror.Error
	switch s.RecordsBackend {
	case BackendDynamo:
		if s.RecordsTable == "" {
			errs = multierror.Append(errs, fmt.Errorf("RECORDS_TABLE not set"))
		}
	default:
		if s.DatabaseURL == "" {
			errs = multierror.Append(errs, fmt.Errorf("DATABASE_URL not set"))
		}
	}
	return errs.ErrorOrNil()
}

func ValidShopDomain(shop string) bool {
	if !strings.HasSuffix(shop, ".myshopify.com") {
		return false
	}
	if strings.Contains(shop, "/") || strings.Contains(shop, " ") {
		return false
	}
	return len(shop) >= len("a.myshopify.com")
}

func resolveSecret(ctx context.Context, ssmClient ParameterGetter, name string) (string, error) {
	if v := strings.TrimSpace(os.Getenv(name)); v != "" {
		return v, nil
	}
	param := strings.TrimSpace(os.Getenv(name + "_SSM_PARAM"))
	if param == "" {
		return "", nil
	}
	if ssmClient == nil {
		return "", fmt.Errorf("%s_SSM_PARAM set but no SSM client available", name)
	}
	out, err := ssmClient.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(param),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		return "", fmt.Errorf("ssm get %s: %w", param, err)
	}
	if out.Parameter == nil {
		return "", fmt.Errorf("ssm get %s: empty parameter", param)
	}
	return strings.TrimSpace(aws.ToString(out.Parameter.Value)), nil
}

func env(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envInt(key string, def, lo, hi int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < lo || n > hi {
		return def
	}
	return n
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
