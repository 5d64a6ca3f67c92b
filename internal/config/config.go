package config

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

const ENV_PREFIX = "TRADINGDB"

// DefaultIpfsGatewayUrl serves GET /ipfs/<hash>. API endpoints (port 5001) do not.
const DefaultIpfsGatewayUrl = "https://ipfs.io"

const (
	Debug = "debug"

	DatabaseHost       = "database.host"
	DatabasePort       = "database.port"
	DatabaseUser       = "database.user"
	DatabasePassword   = "database.password"
	DatabaseDbName     = "database.db_name"
	DatabaseSchemaName = "database.schema_name"
	DatabaseSSLMode    = "database.ssl_mode"

	DatabaseMaxOpenConns    = "database.max_open_conns"
	DatabaseMaxIdleConns    = "database.max_idle_conns"
	DatabaseConnMaxLifetime = "database.conn_max_lifetime"

	NatsUrl             = "nats.url"
	NatsStream          = "nats.stream"
	NatsSubject         = "nats.subject"
	NatsConsumer        = "nats.consumer"
	NatsIssuanceSubject = "nats.issuance_subject"

	RedisUrl = "redis.url"
	RedisTTL = "redis.ttl"

	IpfsUrl     = "ipfs.url"
	IpfsTimeout = "ipfs.timeout"

	MarketsLmsrMarketMaker = "markets.lmsr_market_maker"

	TournamentTokenAddress      = "tournament.token_address"
	TournamentTokenIssuance     = "tournament.token_issuance"
	TournamentIssuanceMinAge    = "tournament.issuance_min_age"
	TournamentIssuanceBatchSize = "tournament.issuance_batch_size"
	TournamentIssueSchedule     = "tournament.issue_schedule"
	TournamentClearSchedule     = "tournament.clear_schedule"

	NotifyWebhookUrl = "notify.webhook_url"

	PrometheusEnabled = "prometheus.enabled"
	PrometheusPort    = "prometheus.port"

	DataDogStatsdEnabled    = "datadog.statsd.enabled"
	DataDogStatsdUrl        = "datadog.statsd.url"
	DataDogStatsdSampleRate = "datadog.statsd.sample_rate"

	ReplayFile   = "replay.file"
	ReplayDryRun = "replay.dry_run"
)

type Config struct {
	Debug            bool
	DatabaseConfig   DatabaseConfig
	NatsConfig       NatsConfig
	RedisConfig      RedisConfig
	IpfsConfig       IpfsConfig
	MarketsConfig    MarketsConfig
	TournamentConfig TournamentConfig
	NotifyConfig     NotifyConfig
	PrometheusConfig PrometheusConfig
	DataDogConfig    DataDogConfig
	ReplayConfig     ReplayConfig
}

type DatabaseConfig struct {
	Host        string `validate:"required"`
	Port        int    `validate:"gt=0"`
	User        string
	Password    string
	DbName      string `validate:"required"`
	SchemaName  string
	SSLMode     string
	SSLCert     string
	SSLKey      string
	SSLRootCert string

	MaxOpenConns    int `validate:"gte=0"`
	MaxIdleConns    int `validate:"gte=0"`
	ConnMaxLifetime time.Duration
}

type NatsConfig struct {
	Url             string
	Stream          string
	Subject         string
	Consumer        string
	IssuanceSubject string
}

type RedisConfig struct {
	Url string
	TTL time.Duration
}

type IpfsConfig struct {
	Url     string        `validate:"required,url"`
	Timeout time.Duration `validate:"gt=0"`
}

type MarketsConfig struct {
	// Normalized (lowercase, no 0x) address of the only market maker markets may be created with.
	LmsrMarketMaker string `validate:"required"`
}

type TournamentConfig struct {
	TokenAddress      string
	TokenIssuance     decimal.Decimal
	IssuanceMinAge    time.Duration
	IssuanceBatchSize int `validate:"gte=1"`
	IssueSchedule     string
	ClearSchedule     string

	tokenIssuanceErr error
}

type NotifyConfig struct {
	WebhookUrl string `validate:"omitempty,url"`
}

type PrometheusConfig struct {
	Enabled bool
	Port    int
}

type DataDogConfig struct {
	StatsdConfig StatsdConfig
}

type StatsdConfig struct {
	Enabled    bool
	Url        string
	SampleRate float64
}

type ReplayConfig struct {
	File   string
	DryRun bool
}

func NewConfig() *Config {
	tokenIssuance, tokenIssuanceErr := parseDecimal(viper.GetString(normalizeFlagName(TournamentTokenIssuance)))

	return &Config{
		Debug: viper.GetBool(normalizeFlagName(Debug)),

		DatabaseConfig: DatabaseConfig{
			Host:       viper.GetString(normalizeFlagName(DatabaseHost)),
			Port:       viper.GetInt(normalizeFlagName(DatabasePort)),
			User:       viper.GetString(normalizeFlagName(DatabaseUser)),
			Password:   viper.GetString(normalizeFlagName(DatabasePassword)),
			DbName:     viper.GetString(normalizeFlagName(DatabaseDbName)),
			SchemaName: viper.GetString(normalizeFlagName(DatabaseSchemaName)),
			SSLMode:    viper.GetString(normalizeFlagName(DatabaseSSLMode)),

			MaxOpenConns:    viper.GetInt(normalizeFlagName(DatabaseMaxOpenConns)),
			MaxIdleConns:    viper.GetInt(normalizeFlagName(DatabaseMaxIdleConns)),
			ConnMaxLifetime: viper.GetDuration(normalizeFlagName(DatabaseConnMaxLifetime)),
		},

		NatsConfig: NatsConfig{
			Url:             viper.GetString(normalizeFlagName(NatsUrl)),
			Stream:          viper.GetString(normalizeFlagName(NatsStream)),
			Subject:         viper.GetString(normalizeFlagName(NatsSubject)),
			Consumer:        viper.GetString(normalizeFlagName(NatsConsumer)),
			IssuanceSubject: viper.GetString(normalizeFlagName(NatsIssuanceSubject)),
		},

		RedisConfig: RedisConfig{
			Url: viper.GetString(normalizeFlagName(RedisUrl)),
			TTL: viper.GetDuration(normalizeFlagName(RedisTTL)),
		},

		IpfsConfig: IpfsConfig{
			Url:     strings.TrimSuffix(viper.GetString(normalizeFlagName(IpfsUrl)), "/"),
			Timeout: viper.GetDuration(normalizeFlagName(IpfsTimeout)),
		},

		MarketsConfig: MarketsConfig{
			LmsrMarketMaker: NormalizeAddress(viper.GetString(normalizeFlagName(MarketsLmsrMarketMaker))),
		},

		TournamentConfig: TournamentConfig{
			TokenAddress:      NormalizeAddress(viper.GetString(normalizeFlagName(TournamentTokenAddress))),
			TokenIssuance:     tokenIssuance,
			IssuanceMinAge:    viper.GetDuration(normalizeFlagName(TournamentIssuanceMinAge)),
			IssuanceBatchSize: viper.GetInt(normalizeFlagName(TournamentIssuanceBatchSize)),
			IssueSchedule:     viper.GetString(normalizeFlagName(TournamentIssueSchedule)),
			ClearSchedule:     viper.GetString(normalizeFlagName(TournamentClearSchedule)),
			tokenIssuanceErr:  tokenIssuanceErr,
		},

		NotifyConfig: NotifyConfig{
			WebhookUrl: viper.GetString(normalizeFlagName(NotifyWebhookUrl)),
		},

		PrometheusConfig: PrometheusConfig{
			Enabled: viper.GetBool(normalizeFlagName(PrometheusEnabled)),
			Port:    viper.GetInt(normalizeFlagName(PrometheusPort)),
		},

		DataDogConfig: DataDogConfig{
			StatsdConfig: StatsdConfig{
				Enabled:    viper.GetBool(normalizeFlagName(DataDogStatsdEnabled)),
				Url:        viper.GetString(normalizeFlagName(DataDogStatsdUrl)),
				SampleRate: viper.GetFloat64(normalizeFlagName(DataDogStatsdSampleRate)),
			},
		},

		ReplayConfig: ReplayConfig{
			File:   viper.GetString(normalizeFlagName(ReplayFile)),
			DryRun: viper.GetBool(normalizeFlagName(ReplayDryRun)),
		},
	}
}

// Validate checks the settings the receivers and services cannot run without.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return errors.Wrap(err, "invalid configuration")
	}
	return c.validateAddresses()
}

// ValidateWithoutDatabase is used when events are applied to the in-memory repository.
func (c *Config) ValidateWithoutDatabase() error {
	if err := validator.New().StructExcept(c, "DatabaseConfig"); err != nil {
		return errors.Wrap(err, "invalid configuration")
	}
	return c.validateAddresses()
}

func (c *Config) validateAddresses() error {
	if !common.IsHexAddress(c.MarketsConfig.LmsrMarketMaker) {
		return fmt.Errorf("invalid configuration: %s is not an address: '%s'", MarketsLmsrMarketMaker, c.MarketsConfig.LmsrMarketMaker)
	}
	if c.TournamentConfig.TokenAddress != "" && !common.IsHexAddress(c.TournamentConfig.TokenAddress) {
		return fmt.Errorf("invalid configuration: %s is not an address: '%s'", TournamentTokenAddress, c.TournamentConfig.TokenAddress)
	}
	if c.TournamentConfig.tokenIssuanceErr != nil {
		return errors.Wrapf(c.TournamentConfig.tokenIssuanceErr, "invalid configuration: %s", TournamentTokenIssuance)
	}
	if c.TournamentConfig.TokenIssuance.IsNegative() {
		return fmt.Errorf("invalid configuration: %s must not be negative", TournamentTokenIssuance)
	}
	return nil
}

// NormalizeAddress lowercases an address and strips its 0x prefix, matching how addresses
// are delivered by the event decoder and stored in every table.
func NormalizeAddress(address string) string {
	a := strings.ToLower(strings.TrimSpace(address))
	return strings.TrimPrefix(a, "0x")
}

func parseDecimal(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}

func normalizeFlagName(name string) string {
	return KebabToSnakeCase(name)
}

var kebabRegex = regexp.MustCompile(`-`)

func KebabToSnakeCase(str string) string {
	return kebabRegex.ReplaceAllString(str, "_")
}
